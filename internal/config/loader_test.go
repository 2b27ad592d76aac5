package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the dexter config dir inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "TAVILY_API_KEY", "TAVILY_MAX_SEARCHES_PER_SESSION"} {
		t.Setenv(key, "")
	}

	dir := filepath.Join(home, ".config", "dexter")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	setupTestHome(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Run.GlobalStepBudget)
	assert.Equal(t, 3, cfg.Run.PerTaskAttemptBudget)
	assert.Equal(t, 5, cfg.Run.ContextWindow)
	assert.False(t, cfg.Run.PlanFallback)
	assert.Equal(t, "openai", cfg.Reasoning.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Reasoning.Model)
	assert.Empty(t, cfg.Quotas)
	assert.True(t, cfg.Secrets.Enabled)
	assert.Equal(t, 60*time.Second, cfg.Run.ReasoningTimeout.Duration())
	assert.Zero(t, cfg.Reasoning.MaxRetries)
}

func TestLoad_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `run:
  global_step_budget: 8
  per_task_attempt_budget: 2
  timeout: 2m
  plan_fallback: true
quotas:
  search_web: 4
reasoning:
  provider: anthropic
tools:
  search:
    max_results: 3
server:
  http_port: 8080
`, 0600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Run.GlobalStepBudget)
	assert.Equal(t, 2, cfg.Run.PerTaskAttemptBudget)
	assert.Equal(t, 2*time.Minute, cfg.Run.Timeout.Duration())
	assert.True(t, cfg.Run.PlanFallback)
	assert.Equal(t, map[string]int{"search_web": 4}, cfg.Quotas)
	assert.Equal(t, "anthropic", cfg.Reasoning.Provider)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Reasoning.Model)
	assert.Equal(t, 3, cfg.Tools.Search.MaxResults)
	assert.Equal(t, 8080, cfg.Server.Port)
	// untouched sections keep their defaults
	assert.Equal(t, 5, cfg.Run.ContextWindow)
	assert.Equal(t, "https://api.tavily.com", cfg.Tools.Search.BaseURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "run:\n  global_step_budget: 8\n", 0600)

	t.Setenv("DEXTER_RUN_GLOBAL_STEP_BUDGET", "12")
	t.Setenv("DEXTER_QUOTAS_GET_STOCK_INFO", "2")
	t.Setenv("DEXTER_TOOLS_SEARCH_API_KEY", "tvly-from-env")
	t.Setenv("DEXTER_RUN_TOOL_TIMEOUT", "5s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Run.GlobalStepBudget)
	assert.Equal(t, 2, cfg.Quotas["get_stock_info"])
	assert.Equal(t, "tvly-from-env", cfg.Tools.Search.APIKey.Value())
	assert.Equal(t, 5*time.Second, cfg.Run.ToolTimeout.Duration())
}

func TestLoad_ProviderEnvFallbacks(t *testing.T) {
	setupTestHome(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TAVILY_API_KEY", "tvly-test")
	t.Setenv("TAVILY_MAX_SEARCHES_PER_SESSION", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Reasoning.APIKey.Value())
	assert.Equal(t, "tvly-test", cfg.Tools.Search.APIKey.Value())
	assert.Equal(t, 3, cfg.Quotas["search_web"])
}

func TestLoad_ExplicitQuotaWinsOverTavilyLimit(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "quotas:\n  search_web: 7\n", 0600)
	t.Setenv("TAVILY_MAX_SEARCHES_PER_SESSION", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Quotas["search_web"])
}

func TestLoad_RejectsInsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "run:\n  global_step_budget: 8\n", 0644)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoad_RejectsOversizedFile(t *testing.T) {
	dir := setupTestHome(t)
	big := make([]byte, maxConfigFileSize+1)
	for i := range big {
		big[i] = '#'
	}
	path := writeConfig(t, dir, string(big), 0600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"zero step budget", "run:\n  global_step_budget: 0\n", "global_step_budget"},
		{"negative attempt budget", "run:\n  per_task_attempt_budget: -1\n", "per_task_attempt_budget"},
		{"negative quota", "quotas:\n  search_web: -2\n", "quota"},
		{"unknown provider", "reasoning:\n  provider: llama\n", "unsupported reasoning provider"},
		{"bad log format", "logging:\n  format: xml\n", "logging.format"},
		{"anthropic base url", "reasoning:\n  provider: anthropic\n  base_url: http://localhost:8080\n", "reasoning.base_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupTestHome(t)
			path := writeConfig(t, dir, tt.yaml, 0600)

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	valid := []string{
		filepath.Join(home, ".config", "dexter", "config.yaml"),
		filepath.Join(home, ".config", "dexter", "profiles", "dev.yaml"),
		"/etc/dexter/config.yaml",
	}
	for _, p := range valid {
		assert.NoError(t, validateConfigPath(p), p)
	}

	invalid := []string{
		"/etc/passwd",
		"/tmp/config.yaml",
		"/etc/dexter../etc/passwd",
		filepath.Join(home, ".config", "dexter", "..", "..", "evil.yaml"),
	}
	for _, p := range invalid {
		assert.Error(t, validateConfigPath(p), p)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"DEXTER_RUN_GLOBAL_STEP_BUDGET": "run.global_step_budget",
		"DEXTER_QUOTAS_SEARCH_WEB":      "quotas.search_web",
		"DEXTER_TOOLS_SEARCH_BASE_URL":  "tools.search.base_url",
		"DEXTER_TOOLS_STOCK_BASE_URL":   "tools.stock.base_url",
		"DEXTER_TOOLS_HTTP_TIMEOUT":     "tools.http_timeout",
		"DEXTER_SERVER_HTTP_PORT":       "server.http_port",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestSecret_NeverRendersValue(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "sk-live")
	data, err := json.Marshal(struct{ Key Secret }{s})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-live")
	assert.Equal(t, "sk-live-123", s.Value())
	assert.False(t, Secret("").IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, d.UnmarshalText([]byte("45")))
	assert.Equal(t, 45*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("-3")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestSecret_UnmarshalTrims(t *testing.T) {
	var s Secret
	require.NoError(t, s.UnmarshalText([]byte(" tvly-abc\n")))
	assert.Equal(t, "tvly-abc", s.Value())
}

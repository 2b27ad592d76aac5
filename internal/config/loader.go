package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment variable read by the loader.
	EnvPrefix = "DEXTER_"
)

// nestedSections lists sections whose env keys carry a second level,
// e.g. DEXTER_TOOLS_SEARCH_API_KEY -> tools.search.api_key.
var nestedSections = map[string][]string{
	"tools": {"search", "stock"},
}

// Load loads configuration from YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. DEXTER_* environment variables (DEXTER_RUN_GLOBAL_STEP_BUDGET, ...)
//  2. YAML config file (~/.config/dexter/config.yaml)
//  3. Default()
//
// Provider credentials also fall back to the conventional variables
// OPENAI_API_KEY, ANTHROPIC_API_KEY and TAVILY_API_KEY. When set,
// TAVILY_MAX_SEARCHES_PER_SESSION seeds the search_web quota.
//
// The file must live under ~/.config/dexter/ or /etc/dexter/, be at most 1MB
// and have 0600 or 0400 permissions. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "dexter", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvFallbacks(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// EnsureConfigDir creates ~/.config/dexter with 0700 permissions.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "dexter")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// envKey maps DEXTER_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	section, field := parts[0], parts[1]
	for _, sub := range nestedSections[section] {
		if strings.HasPrefix(field, sub+"_") {
			return section + "." + sub + "." + strings.TrimPrefix(field, sub+"_")
		}
	}
	return section + "." + field
}

// readConfigFile reads the file through a single descriptor so the
// permission and size checks apply to the bytes actually loaded.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigPath checks if path is in allowed directories.
// This validation runs even if the file doesn't exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so a link cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "dexter"),
		"/etc/dexter",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}

	return fmt.Errorf("config file must be in ~/.config/dexter/ or /etc/dexter/")
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyEnvFallbacks fills credentials and limits from the provider's own
// environment variables when dexter-specific settings are absent.
func applyEnvFallbacks(cfg *Config) {
	if !cfg.Reasoning.APIKey.IsSet() {
		switch cfg.Reasoning.Provider {
		case "anthropic":
			cfg.Reasoning.APIKey = Secret(os.Getenv("ANTHROPIC_API_KEY"))
		default:
			cfg.Reasoning.APIKey = Secret(os.Getenv("OPENAI_API_KEY"))
		}
	}

	if !cfg.Tools.Search.APIKey.IsSet() {
		cfg.Tools.Search.APIKey = Secret(os.Getenv("TAVILY_API_KEY"))
	}

	if raw := os.Getenv("TAVILY_MAX_SEARCHES_PER_SESSION"); raw != "" {
		if cfg.Quotas == nil {
			cfg.Quotas = map[string]int{}
		}
		if _, explicit := cfg.Quotas["search_web"]; !explicit {
			if limit, err := strconv.Atoi(raw); err == nil {
				cfg.Quotas["search_web"] = limit
			}
		}
	}
}

// applyDefaults sets values that depend on other settings.
func applyDefaults(cfg *Config) {
	if cfg.Quotas == nil {
		cfg.Quotas = map[string]int{}
	}
	if cfg.Reasoning.Model == "" {
		switch cfg.Reasoning.Provider {
		case "anthropic":
			cfg.Reasoning.Model = "claude-3-5-sonnet-20241022"
		default:
			cfg.Reasoning.Model = "gpt-4o-mini"
		}
	}
	if cfg.Tools.Search.MaxResults <= 0 {
		cfg.Tools.Search.MaxResults = 5
	}
}

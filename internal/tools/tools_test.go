package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/dexter/internal/config"
	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

func requireToolError(t *testing.T, err error, kind orchestrator.ToolErrorKind) {
	t.Helper()
	var toolErr *orchestrator.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, kind, toolErr.Kind)
	assert.ErrorIs(t, err, orchestrator.ErrToolInvocationFailed)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(NewCalculator()))
	require.NoError(t, r.Register(NewCurrentDate(time.Now)))
	assert.Error(t, r.Register(NewCalculator()), "duplicate name")

	assert.Equal(t, []string{"calculator", "current_date"}, r.Names())
	specs := r.Tools()
	require.Len(t, specs, 2)
	assert.Equal(t, "calculator", specs[0].Name)
	assert.Equal(t, "expression", specs[0].Parameters[0].Name)

	out, err := r.Invoke(context.Background(), "calculator", map[string]any{"expression": "2+2"})
	require.NoError(t, err)
	assert.Equal(t, "2+2 = 4", out)

	_, err = r.Invoke(context.Background(), "teleport", nil)
	requireToolError(t, err, orchestrator.ToolErrorUnknownTool)
}

func TestNewDefault(t *testing.T) {
	cfg := config.Default().Tools
	r, err := NewDefault(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"calculator", "current_date", "get_stock_info"}, r.Names())

	cfg.Search.APIKey = "tvly-test"
	r, err = NewDefault(cfg, nil)
	require.NoError(t, err)
	assert.Contains(t, r.Names(), "search_web")
}

func TestCurrentDate(t *testing.T) {
	fixed := time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC)
	out, err := NewCurrentDate(func() time.Time { return fixed }).Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Current date: March 07, 2025 (Year: 2025, Month: 3, Day: 7)", out)
}

func TestCalculator(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"435.15 - 349.07", "435.15 - 349.07 = 86.08"},
		{"(100 / 50) * 2", "(100 / 50) * 2 = 4"},
		{"-3 + 10", "-3 + 10 = 7"},
		{"7 / 2", "7 / 2 = 3.5"},
		{"2 * (3 + 4) - 1", "2 * (3 + 4) - 1 = 13"},
	}
	c := NewCalculator()
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := c.Invoke(context.Background(), map[string]any{"expression": tt.expr})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCalculator_Rejects(t *testing.T) {
	c := NewCalculator()
	for _, expr := range []string{"os.Exit(1)", "2 ** 3", "1 / 0", "(1 + 2", "2 % 3", "1e5"} {
		t.Run(expr, func(t *testing.T) {
			_, err := c.Invoke(context.Background(), map[string]any{"expression": expr})
			requireToolError(t, err, orchestrator.ToolErrorInvalidArgs)
		})
	}

	_, err := c.Invoke(context.Background(), map[string]any{})
	requireToolError(t, err, orchestrator.ToolErrorInvalidArgs)
}

func TestEvaluate_Precedence(t *testing.T) {
	got, err := Evaluate("1 + 2 * 3")
	require.NoError(t, err)
	assert.Equal(t, 7.0, got)
}

func TestWebSearch(t *testing.T) {
	var gotReq tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tvly-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"nvidia earnings","results":[
			{"title":"NVIDIA Q3","url":"https://example.com/a","content":"Revenue rose","score":0.9},
			{"title":"Analysis","url":"https://example.com/b","content":"Margins","score":0.7}]}`))
	}))
	defer srv.Close()

	s := NewWebSearch(srv.URL, "tvly-key", 5, srv.Client())
	out, err := s.Invoke(context.Background(), map[string]any{"query": "nvidia earnings", "max_results": 2.0})
	require.NoError(t, err)

	assert.Equal(t, "nvidia earnings", gotReq.Query)
	assert.Equal(t, 2, gotReq.MaxResults)
	assert.Equal(t, "basic", gotReq.SearchDepth)

	var parsed struct {
		Query   string         `json:"query"`
		Results []SearchResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed.Results, 2)
	assert.Equal(t, "NVIDIA Q3", parsed.Results[0].Title)
	assert.Equal(t, "Revenue rose", parsed.Results[0].Content)
}

func TestWebSearch_DefaultMaxResults(t *testing.T) {
	var gotReq tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	_, err := NewWebSearch(srv.URL, "k", 0, srv.Client()).Invoke(context.Background(), map[string]any{"query": "x"})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxResults, gotReq.MaxResults)
}

func TestWebSearch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	s := NewWebSearch(srv.URL, "bad", 5, srv.Client())

	_, err := s.Invoke(context.Background(), map[string]any{"query": "x"})
	requireToolError(t, err, orchestrator.ToolErrorUpstream)
	assert.Contains(t, err.Error(), "401")

	_, err = s.Invoke(context.Background(), map[string]any{"query": "  "})
	requireToolError(t, err, orchestrator.ToolErrorInvalidArgs)

	_, err = s.Invoke(context.Background(), map[string]any{"query": "x", "max_results": "many"})
	requireToolError(t, err, orchestrator.ToolErrorInvalidArgs)
}

func TestWebSearch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewWebSearch(srv.URL, "k", 5, srv.Client()).Invoke(ctx, map[string]any{"query": "slow"})
	requireToolError(t, err, orchestrator.ToolErrorTimeout)
}

func TestStockInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[{
			"symbol":"AAPL","longName":"Apple Inc.","regularMarketPrice":190.5,
			"currency":"USD","marketCap":2950000000000,"trailingPE":29.4,
			"fiftyTwoWeekHigh":199.6,"fiftyTwoWeekLow":164.1,"regularMarketVolume":51000000,
			"fullExchangeName":"NasdaqGS"}],"error":null}}`))
	}))
	defer srv.Close()

	out, err := NewStockInfo(srv.URL, srv.Client()).Invoke(context.Background(), map[string]any{"ticker": "aapl"})
	require.NoError(t, err)

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "AAPL", info["ticker"])
	assert.Equal(t, "Apple Inc.", info["name"])
	assert.Equal(t, 190.5, info["current_price"])
	assert.Equal(t, "NasdaqGS", info["exchange"])
	assert.Equal(t, 51000000.0, info["volume"])
	assert.Equal(t, "N/A", info["forward_pe"])
	assert.Equal(t, "N/A", info["sector"])
}

func TestStockInfo_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"quoteResponse":{"result":[],"error":null}}`))
	}))
	defer srv.Close()
	s := NewStockInfo(srv.URL, srv.Client())

	_, err := s.Invoke(context.Background(), map[string]any{"ticker": "NOPE"})
	requireToolError(t, err, orchestrator.ToolErrorInvalidArgs)

	_, err = s.Invoke(context.Background(), map[string]any{"ticker": "AAPL; rm -rf"})
	requireToolError(t, err, orchestrator.ToolErrorInvalidArgs)

	_, err = s.Invoke(context.Background(), nil)
	requireToolError(t, err, orchestrator.ToolErrorInvalidArgs)
}

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

const (
	defaultTavilyBaseURL = "https://api.tavily.com"
	defaultMaxResults    = 5
	maxSearchResults     = 20
)

// WebSearch queries the Tavily search API.
type WebSearch struct {
	baseURL    string
	apiKey     string
	maxResults int
	client     *http.Client
}

// NewWebSearch creates the search_web tool.
func NewWebSearch(baseURL, apiKey string, maxResults int, client *http.Client) *WebSearch {
	if baseURL == "" {
		baseURL = defaultTavilyBaseURL
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if client == nil {
		client = newHTTPClient(0)
	}
	return &WebSearch{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxResults: maxResults,
		client:     client,
	}
}

func (w *WebSearch) Spec() orchestrator.ToolSpec {
	return orchestrator.ToolSpec{
		Name: "search_web",
		Description: "Searches the internet for recent news, articles, analysis and general information. " +
			"Returns relevant pages with titles, URLs and content snippets.",
		Parameters: []orchestrator.ToolParam{
			{Name: "query", Type: "string", Description: "Specific search query with relevant keywords", Required: true},
			{Name: "max_results", Type: "integer", Description: fmt.Sprintf("Maximum results to return (default %d)", w.maxResults)},
		},
	}
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// SearchResult is one entry of the tool output.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

func (w *WebSearch) Invoke(ctx context.Context, args map[string]any) (string, error) {
	query, err := stringArg("search_web", args, "query")
	if err != nil {
		return "", err
	}
	maxResults, err := intArg("search_web", args, "max_results", w.maxResults)
	if err != nil {
		return "", err
	}
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}

	payload, err := json.Marshal(tavilyRequest{Query: query, MaxResults: maxResults, SearchDepth: "basic"})
	if err != nil {
		return "", fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := newRequest(ctx, "search_web", http.MethodPost, w.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	body, err := do(w.client, "search_web", req)
	if err != nil {
		return "", err
	}

	var resp tavilyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &orchestrator.ToolError{Kind: orchestrator.ToolErrorUpstream, Tool: "search_web", Message: "malformed search response", Cause: err}
	}

	results := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Content: r.Content})
	}
	out, err := json.Marshal(map[string]any{"query": query, "results": results})
	if err != nil {
		return "", fmt.Errorf("failed to encode search results: %w", err)
	}
	return string(out), nil
}

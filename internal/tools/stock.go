package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

const defaultStockBaseURL = "https://query1.finance.yahoo.com"

var tickerPattern = regexp.MustCompile(`^[A-Za-z0-9.\-^=]{1,15}$`)

// StockInfo looks up quotes from a Yahoo Finance style quote endpoint.
type StockInfo struct {
	baseURL string
	client  *http.Client
}

// NewStockInfo creates the get_stock_info tool.
func NewStockInfo(baseURL string, client *http.Client) *StockInfo {
	if baseURL == "" {
		baseURL = defaultStockBaseURL
	}
	if client == nil {
		client = newHTTPClient(0)
	}
	return &StockInfo{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *StockInfo) Spec() orchestrator.ToolSpec {
	return orchestrator.ToolSpec{
		Name: "get_stock_info",
		Description: "Gets stock information: current price, market cap, PE ratio, dividend yield, " +
			"52-week range, moving averages and volume. Supports global markets, ETFs and indices.",
		Parameters: []orchestrator.ToolParam{{
			Name:        "ticker",
			Type:        "string",
			Description: "Ticker symbol, e.g. 'AAPL', 'GOOGL', '0700.HK'",
			Required:    true,
		}},
	}
}

// quoteFields maps output keys to the quote fields tried in order.
var quoteFields = []struct {
	key    string
	fields []string
}{
	{"name", []string{"longName", "shortName"}},
	{"current_price", []string{"currentPrice", "regularMarketPrice"}},
	{"currency", []string{"currency"}},
	{"market_cap", []string{"marketCap"}},
	{"pe_ratio", []string{"trailingPE"}},
	{"forward_pe", []string{"forwardPE"}},
	{"dividend_yield", []string{"dividendYield", "trailingAnnualDividendYield"}},
	{"52_week_high", []string{"fiftyTwoWeekHigh"}},
	{"52_week_low", []string{"fiftyTwoWeekLow"}},
	{"50_day_avg", []string{"fiftyDayAverage"}},
	{"200_day_avg", []string{"twoHundredDayAverage"}},
	{"volume", []string{"volume", "regularMarketVolume"}},
	{"avg_volume", []string{"averageVolume", "averageDailyVolume3Month"}},
	{"sector", []string{"sector"}},
	{"industry", []string{"industry"}},
	{"exchange", []string{"fullExchangeName", "exchange"}},
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]any `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

func (s *StockInfo) Invoke(ctx context.Context, args map[string]any) (string, error) {
	ticker, err := stringArg("get_stock_info", args, "ticker")
	if err != nil {
		return "", err
	}
	ticker = strings.ToUpper(ticker)
	if !tickerPattern.MatchString(ticker) {
		return "", invalidArgs("get_stock_info", "invalid ticker %q", ticker)
	}

	endpoint := s.baseURL + "/v7/finance/quote?symbols=" + url.QueryEscape(ticker)
	req, err := newRequest(ctx, "get_stock_info", http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	body, err := do(s.client, "get_stock_info", req)
	if err != nil {
		return "", err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &orchestrator.ToolError{Kind: orchestrator.ToolErrorUpstream, Tool: "get_stock_info", Message: "malformed quote response", Cause: err}
	}
	if e := resp.QuoteResponse.Error; e != nil {
		return "", orchestrator.NewToolError(orchestrator.ToolErrorUpstream, "get_stock_info", "%s: %s", e.Code, e.Description)
	}
	if len(resp.QuoteResponse.Result) == 0 {
		return "", invalidArgs("get_stock_info", "no quote found for %q", ticker)
	}

	quote := resp.QuoteResponse.Result[0]
	info := map[string]any{"ticker": ticker}
	for _, f := range quoteFields {
		info[f.key] = "N/A"
		for _, field := range f.fields {
			if v, ok := quote[field]; ok && v != nil {
				info[f.key] = v
				break
			}
		}
	}

	out, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Package tools provides dexter's built-in research tools and the Registry
// that exposes them to the orchestrator as a ToolPort.
//
// Built-in tools:
//   - current_date: today's date for temporal context
//   - calculator: arithmetic over numbers, + - * / and parentheses
//   - search_web: Tavily web search
//   - get_stock_info: quote and company data from a Yahoo Finance style endpoint
//
// Tool failures are returned as *orchestrator.ToolError so the orchestrator
// can record them and charge the attempt.
package tools

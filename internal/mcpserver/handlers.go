package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *AlgoLendClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *AlgoLendClient) *Handlers {
	return &Handlers{client: client}
}

// HandleAnalyzeAccount scores an account.
func (h *Handlers) HandleAnalyzeAccount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address := strings.TrimSpace(req.GetString("address", ""))
	if address == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	raw, err := h.client.AnalyzeAccount(ctx, address, req.GetBool("include_history", true))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to analyze account: %v", err)), nil
	}

	text, err := formatAnalysis(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse analysis: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleOptimizePortfolio allocates an investment across the pool catalog.
func (h *Handlers) HandleOptimizePortfolio(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tolerance := req.GetString("risk_tolerance", "")
	if tolerance == "" {
		return mcp.NewToolResultError("risk_tolerance is required"), nil
	}

	body := OptimizeRequest{RiskTolerance: tolerance}
	args := req.GetArguments()
	if _, ok := args["investment_amount"]; ok {
		amount := req.GetFloat("investment_amount", 0)
		body.InvestmentAmount = &amount
	}
	if _, ok := args["time_horizon_days"]; ok {
		days := req.GetInt("time_horizon_days", 0)
		body.TimeHorizon = &days
	}
	if raw, ok := args["current_portfolio"].(map[string]any); ok {
		current, err := percentMap(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		body.CurrentPortfolio = current
	}

	raw, err := h.client.OptimizePortfolio(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to optimize portfolio: %v", err)), nil
	}

	text, err := formatOptimization(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse optimization: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleListPools lists the lending pools.
func (h *Handlers) HandleListPools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListPools(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list pools: %v", err)), nil
	}

	text, err := formatPoolList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse pools: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetNetworkStats returns network conditions.
func (h *Handlers) HandleGetNetworkStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetNetworkStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get network stats: %v", err)), nil
	}

	text, err := formatNetworkStats(raw)
	if err != nil {
		return mcp.NewToolResultText(formatJSON(raw)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// --- Formatting helpers ---

func percentMap(raw map[string]any) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("current_portfolio[%s] must be a number", k)
		}
		out[k] = f
	}
	return out, nil
}

func formatAnalysis(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Credit Analysis:\n")
	if v := getString(m, "address"); v != "" {
		fmt.Fprintf(&sb, "  Address: %s\n", v)
	}
	if getString(m, "outcome") == "unknown" {
		sb.WriteString("  Score: unavailable\n")
		return sb.String(), nil
	}
	if v, ok := getFloat(m, "score"); ok {
		fmt.Fprintf(&sb, "  Score: %.1f / 100\n", v)
	}
	if v := getString(m, "tier"); v != "" {
		fmt.Fprintf(&sb, "  Tier: %s\n", v)
	}
	if v, ok := getFloat(m, "confidence"); ok {
		fmt.Fprintf(&sb, "  Confidence: %.0f%%\n", v*100)
	}
	if v, ok := getFloat(m, "balance"); ok {
		fmt.Fprintf(&sb, "  Balance: %.6f ALGO\n", v)
	}
	if v, ok := getFloat(m, "accountAgeDays"); ok {
		fmt.Fprintf(&sb, "  Account Age: %.0f days\n", v)
	}
	if v, ok := getFloat(m, "totalTransactions"); ok {
		fmt.Fprintf(&sb, "  Transactions: %.0f\n", v)
	}

	if b, ok := m["breakdown"].(map[string]any); ok && len(b) > 0 {
		sb.WriteString("\nBreakdown:\n")
		keys := make([]string, 0, len(b))
		for k := range b {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v, ok := b[k].(float64); ok {
				fmt.Fprintf(&sb, "  %s: %.1f\n", strings.TrimSuffix(k, "Score"), v)
			}
		}
	}

	writeList(&sb, "Risk Factors", m["riskFactors"])
	writeList(&sb, "Recommendations", m["recommendations"])
	return sb.String(), nil
}

func formatOptimization(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Portfolio (%s):\n", getString(m, "riskTolerance"))

	allocs, _ := m["optimalAllocation"].([]any)
	if len(allocs) == 0 {
		sb.WriteString("  No pools match this risk tolerance and amount.\n")
	}
	for _, item := range allocs {
		a, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pct, _ := getFloat(a, "allocationPercent")
		amt, _ := getFloat(a, "allocationAmount")
		apy, _ := getFloat(a, "expectedApy")
		fmt.Fprintf(&sb, "  %-24s %5.1f%%  %12.2f ALGO  APY %.1f%%\n", getString(a, "poolName", "poolId"), pct, amt, apy)
	}

	if r, ok := m["expectedReturns"].(map[string]any); ok {
		sb.WriteString("\nExpected Returns:\n")
		if v, ok := getFloat(r, "weightedApy"); ok {
			fmt.Fprintf(&sb, "  Weighted APY: %.2f%%\n", v)
		}
		if v, ok := getFloat(r, "expectedProfit"); ok {
			fmt.Fprintf(&sb, "  Profit over period: %.2f ALGO\n", v)
		}
	}
	if r, ok := m["riskAnalysis"].(map[string]any); ok {
		fmt.Fprintf(&sb, "\nRisk: %s (concentration %s)\n", getString(r, "overallRisk"), getString(r, "concentrationRisk"))
	}

	if recs, ok := m["rebalancingRecommendations"].([]any); ok && len(recs) > 0 {
		sb.WriteString("\nRebalancing:\n")
		for _, item := range recs {
			r, ok := item.(map[string]any)
			if !ok {
				continue
			}
			target, _ := getFloat(r, "targetPercent")
			fmt.Fprintf(&sb, "  %s %s to %.1f%%\n", getString(r, "action"), getString(r, "poolName", "poolId"), target)
		}
	}
	return sb.String(), nil
}

func formatPoolList(raw json.RawMessage) (string, error) {
	var resp struct {
		Pools []map[string]any `json:"pools"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Pools) == 0 {
		return "No lending pools available.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Lending Pools (%d):\n", len(resp.Pools))
	for i, p := range resp.Pools {
		apy, _ := getFloat(p, "apy")
		risk, _ := getFloat(p, "riskScore")
		term, _ := getFloat(p, "termDays")
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, getString(p, "name"), getString(p, "id"))
		fmt.Fprintf(&sb, "   APY %.1f%% | Risk %.0f | Term %.0f days | Min %s ALGO\n", apy, risk, term, getString(p, "minDeposit"))
	}
	return sb.String(), nil
}

func formatNetworkStats(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Algorand Network:\n")
	fmt.Fprintf(&sb, "  Health: %s\n", getString(m, "networkHealth"))
	height, _ := getFloat(m, "blockHeight")
	fee, _ := getFloat(m, "feesMicroAlgos")
	finality, _ := getFloat(m, "finalitySeconds")
	fmt.Fprintf(&sb, "  Block Height: %.0f\n", height)
	fmt.Fprintf(&sb, "  Fee: %.0f microAlgos\n", fee)
	fmt.Fprintf(&sb, "  Finality: %.1fs\n", finality)
	if fb, _ := m["fallback"].(bool); fb {
		sb.WriteString("  (nominal values, node unreachable)\n")
	}
	return sb.String(), nil
}

func writeList(sb *strings.Builder, title string, v any) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, item := range items {
		if s, ok := item.(string); ok {
			fmt.Fprintf(sb, "  - %s\n", s)
		}
	}
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}

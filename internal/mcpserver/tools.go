package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the AlgoLend MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolAnalyzeAccount = mcp.NewTool("analyze_account",
	mcp.WithDescription(
		"Compute a credit score (0-100) and tier (A+ to D) for an Algorand account "+
			"from its balance, age and transaction behavior. "+
			"Returns the score breakdown, risk factors and recommendations."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("58-character Algorand address")),
	mcp.WithBoolean("include_history",
		mcp.Description("Fetch transaction history for the behavioral factors (default true). "+
			"Without history only balance and age contribute.")),
)

var ToolOptimizePortfolio = mcp.NewTool("optimize_portfolio",
	mcp.WithDescription(
		"Allocate an investment across AlgoLend lending pools for a risk tolerance. "+
			"Returns the allocation, projected returns, risk analysis and rebalancing steps."),
	mcp.WithString("risk_tolerance",
		mcp.Required(),
		mcp.Description("Maximum risk accepted: conservative (pool risk <= 20), moderate (<= 40) or aggressive (<= 60)"),
		mcp.Enum("conservative", "moderate", "aggressive")),
	mcp.WithNumber("investment_amount",
		mcp.Description("Amount in ALGO to allocate (default 1000)")),
	mcp.WithNumber("time_horizon_days",
		mcp.Description("Projection period in days (default 30)")),
	mcp.WithObject("current_portfolio",
		mcp.Description("Current holdings as pool ID to percent, e.g. {\"stable\": 60, \"liquid\": 40}. Enables rebalancing advice.")),
)

var ToolListPools = mcp.NewTool("list_pools",
	mcp.WithDescription(
		"List the lending pools AlgoLend allocates across, with APY, risk score, TVL, deposit limits, term and liquidity."),
)

var ToolGetNetworkStats = mcp.NewTool("get_network_stats",
	mcp.WithDescription(
		"Get Algorand network conditions: block height, fee, finality and a health grade. "+
			"Values marked as fallback are nominal because the node was unreachable."),
)

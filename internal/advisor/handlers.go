package advisor

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TADebugs/ALGOLEND-AI/internal/logging"
	"github.com/TADebugs/ALGOLEND-AI/internal/portfolio"
	"github.com/TADebugs/ALGOLEND-AI/internal/validation"
)

// MaxTimeHorizonDays bounds the projection period of an optimization.
const MaxTimeHorizonDays = 3650

// Handler provides HTTP handlers for the advisor API
type Handler struct {
	svc *Service
}

// NewHandler creates a new advisor handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the advisor routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/analyze-account", h.AnalyzeAccount)
	r.GET("/accounts/:address/credit", validation.AddressParamMiddleware(), h.GetAccountCredit)

	r.POST("/optimize-portfolio", h.OptimizePortfolio)
	r.GET("/pools", h.ListPools)

	r.GET("/network-stats", h.GetNetworkStats)
}

// -----------------------------------------------------------------------------
// Credit analysis
// -----------------------------------------------------------------------------

// AnalyzeAccountRequest is the payload for POST /analyze-account
type AnalyzeAccountRequest struct {
	Address                   string `json:"address"`
	IncludeTransactionHistory *bool  `json:"includeTransactionHistory,omitempty"` // default true
}

// AnalyzeAccount handles POST /analyze-account
func (h *Handler) AnalyzeAccount(c *gin.Context) {
	var req AnalyzeAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	address := validation.SanitizeAddress(req.Address)
	if errs := validation.Validate(
		validation.Required("address", address),
		validation.ValidAddress("address", address),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	includeHistory := req.IncludeTransactionHistory == nil || *req.IncludeTransactionHistory
	h.analyze(c, address, includeHistory)
}

// GetAccountCredit handles GET /accounts/:address/credit
func (h *Handler) GetAccountCredit(c *gin.Context) {
	h.analyze(c, c.Param("address"), c.Query("history") != "false")
}

func (h *Handler) analyze(c *gin.Context, address string, includeHistory bool) {
	ctx := c.Request.Context()

	analysis, err := h.svc.AnalyzeAccount(ctx, address, includeHistory)
	if errors.Is(err, ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "account_not_found",
			"message": "Account not found",
		})
		return
	}
	if err != nil {
		logging.Account(ctx, address).Error("account analysis failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "upstream_error",
			"message": "Failed to fetch account data",
		})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// -----------------------------------------------------------------------------
// Portfolio optimization
// -----------------------------------------------------------------------------

// OptimizePortfolioRequest is the payload for POST /optimize-portfolio
type OptimizePortfolioRequest struct {
	RiskTolerance    string             `json:"riskTolerance"`
	InvestmentAmount *float64           `json:"investmentAmount,omitempty"`
	TimeHorizon      *int               `json:"timeHorizon,omitempty"` // days
	CurrentPortfolio map[string]float64 `json:"currentPortfolio,omitempty"`
}

// OptimizePortfolio handles POST /optimize-portfolio
func (h *Handler) OptimizePortfolio(c *gin.Context) {
	ctx := c.Request.Context()

	var req OptimizePortfolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	tolerance, err := portfolio.ParseRiskTolerance(req.RiskTolerance)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_risk_tolerance",
			"message": "riskTolerance must be conservative, moderate or aggressive",
		})
		return
	}

	in := OptimizeInput{
		Tolerance:        tolerance,
		InvestmentAmount: DefaultInvestmentAmount,
		TimeHorizonDays:  DefaultTimeHorizonDays,
		CurrentPortfolio: req.CurrentPortfolio,
	}
	if req.InvestmentAmount != nil {
		in.InvestmentAmount = *req.InvestmentAmount
	}
	if req.TimeHorizon != nil {
		in.TimeHorizonDays = *req.TimeHorizon
	}

	if errs := validation.Validate(
		validation.Positive("investmentAmount", in.InvestmentAmount),
		validation.IntRange("timeHorizon", in.TimeHorizonDays, 1, MaxTimeHorizonDays),
		validation.PercentMap("currentPortfolio", in.CurrentPortfolio),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	opt, err := h.svc.OptimizePortfolio(ctx, in)
	if err != nil {
		logging.L(ctx).Error("portfolio optimization failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "catalog_unavailable",
			"message": "Lending pool catalog is unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, opt)
}

// ListPools handles GET /pools
func (h *Handler) ListPools(c *gin.Context) {
	ctx := c.Request.Context()

	pools, err := h.svc.Pools(ctx)
	if err != nil {
		logging.L(ctx).Error("failed to load pools", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "catalog_unavailable",
			"message": "Lending pool catalog is unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pools": pools,
		"count": len(pools),
	})
}

// -----------------------------------------------------------------------------
// Network
// -----------------------------------------------------------------------------

// GetNetworkStats handles GET /network-stats
func (h *Handler) GetNetworkStats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.svc.NetworkStats(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "network_unavailable",
			"message": "Failed to fetch network stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

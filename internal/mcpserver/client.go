package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the configuration for reaching an AlgoLend API server.
type Config struct {
	APIURL  string        // Base URL, e.g. "http://localhost:5000"
	Timeout time.Duration // Per-request timeout; 30s when zero
}

// AlgoLendClient is a thin HTTP client for the AlgoLend REST API.
type AlgoLendClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewAlgoLendClient creates a new client for the AlgoLend API.
func NewAlgoLendClient(cfg Config) *AlgoLendClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AlgoLendClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request and returns the response body.
func (c *AlgoLendClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// AnalyzeAccount requests a credit analysis for address.
func (c *AlgoLendClient) AnalyzeAccount(ctx context.Context, address string, includeHistory bool) (json.RawMessage, error) {
	body := map[string]any{
		"address":                   address,
		"includeTransactionHistory": includeHistory,
	}
	return c.doRequest(ctx, http.MethodPost, "/api/analyze-account", nil, body)
}

// OptimizeRequest mirrors the optimize-portfolio payload. Nil fields take
// the server defaults.
type OptimizeRequest struct {
	RiskTolerance    string             `json:"riskTolerance"`
	InvestmentAmount *float64           `json:"investmentAmount,omitempty"`
	TimeHorizon      *int               `json:"timeHorizon,omitempty"`
	CurrentPortfolio map[string]float64 `json:"currentPortfolio,omitempty"`
}

// OptimizePortfolio requests an allocation across the pool catalog.
func (c *AlgoLendClient) OptimizePortfolio(ctx context.Context, req OptimizeRequest) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodPost, "/api/optimize-portfolio", nil, req)
}

// ListPools returns the lending pool catalog.
func (c *AlgoLendClient) ListPools(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/pools", nil, nil)
}

// GetNetworkStats returns current Algorand network conditions.
func (c *AlgoLendClient) GetNetworkStats(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/api/network-stats", nil, nil)
}

package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"coopcredit/internal/domain"
)

const evaluationPath = "/risk-evaluation"

// HTTPProvider calls the risk central REST API.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider builds a provider with a per-call timeout.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type evaluationResponse struct {
	Document  string `json:"document"`
	Score     int    `json:"score"`
	RiskLevel string `json:"riskLevel"`
	Detail    string `json:"detail"`
}

// Assess posts the request and normalizes every failure into a ProviderError.
func (p *HTTPProvider) Assess(ctx context.Context, req Request) (*Assessment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewProviderError(ErrorInternal, ProviderRiskCentral, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+evaluationPath, bytes.NewReader(body))
	if err != nil {
		return nil, NewProviderError(ErrorInternal, ProviderRiskCentral, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, NewProviderError(ErrorTimeout, ProviderRiskCentral, "request timed out", err)
		}
		return nil, NewProviderError(ErrorOutage, ProviderRiskCentral, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewProviderError(ErrorRateLimited, ProviderRiskCentral, "rate limited", nil)
	case resp.StatusCode >= 500:
		return nil, NewProviderError(ErrorOutage, ProviderRiskCentral, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, NewProviderError(ErrorContract, ProviderRiskCentral, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, NewProviderError(ErrorOutage, ProviderRiskCentral, "read response", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, NewProviderError(ErrorBadData, ProviderRiskCentral, "empty response", nil)
	}

	var out evaluationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, NewProviderError(ErrorBadData, ProviderRiskCentral, "decode response", err)
	}
	if out.Score == 0 {
		return nil, NewProviderError(ErrorBadData, ProviderRiskCentral, "response without score", nil)
	}
	if out.Score < domain.MinBureauScore || out.Score > domain.MaxBureauScore {
		return nil, NewProviderError(ErrorBadData, ProviderRiskCentral, fmt.Sprintf("score %d out of range", out.Score), nil)
	}

	// The level is always derived from the score. A label that names another
	// band means the payload is inconsistent.
	level := domain.LevelForScore(out.Score)
	if out.RiskLevel != "" {
		labelled, ok := domain.ParseRiskLevel(out.RiskLevel)
		if !ok || labelled != level {
			return nil, NewProviderError(ErrorBadData, ProviderRiskCentral,
				fmt.Sprintf("risk level %q does not match score %d", out.RiskLevel, out.Score), nil)
		}
	}

	document := out.Document
	if document == "" {
		document = req.Document
	}

	return &Assessment{
		Document: document,
		Score:    out.Score,
		Level:    level,
		Detail:   out.Detail,
		Source:   SourceLive,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

package risk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopcredit/internal/domain"
)

func TestHTTPProvider_Assess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/risk-evaluation", r.URL.Path)

		var body struct {
			Document string          `json:"document"`
			Amount   decimal.Decimal `json:"amount"`
			Term     int             `json:"term"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1017654321", body.Document)
		assert.True(t, decimal.NewFromInt(5_000_000).Equal(body.Amount))
		assert.Equal(t, 24, body.Term)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"document":"1017654321","score":410,"riskLevel":"ALTO","detail":"late payments"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL+"/", time.Second)
	a, err := p.Assess(context.Background(), Request{Document: "1017654321", Amount: decimal.NewFromInt(5_000_000), TermMonths: 24})

	require.NoError(t, err)
	assert.Equal(t, 410, a.Score)
	assert.Equal(t, domain.RiskLevelHigh, a.Level)
	assert.Equal(t, "late payments", a.Detail)
	assert.Equal(t, SourceLive, a.Source)
}

func TestHTTPProvider_DerivesMissingLevelFromScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"score":701}`))
	}))
	defer srv.Close()

	a, err := NewHTTPProvider(srv.URL, time.Second).Assess(context.Background(), Request{Document: "9"})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLevelLow, a.Level)
	assert.Equal(t, "9", a.Document)
}

func TestHTTPProvider_LevelFollowsScoreBands(t *testing.T) {
	tests := []struct {
		body  string
		level domain.RiskLevel
	}{
		{`{"score":300,"riskLevel":"HIGH"}`, domain.RiskLevelHigh},
		{`{"score":500,"riskLevel":"ALTO"}`, domain.RiskLevelHigh},
		{`{"score":501,"riskLevel":"MEDIO"}`, domain.RiskLevelMedium},
		{`{"score":700,"riskLevel":"medium"}`, domain.RiskLevelMedium},
		{`{"score":701,"riskLevel":"BAJO"}`, domain.RiskLevelLow},
		{`{"score":950}`, domain.RiskLevelLow},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a, err := NewHTTPProvider(srv.URL, time.Second).Assess(context.Background(), Request{Document: "1"})
			require.NoError(t, err)
			assert.Equal(t, tt.level, a.Level)
			assert.Equal(t, domain.LevelForScore(a.Score), a.Level)
		})
	}
}

func TestHTTPProvider_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		category  ErrorCategory
		retryable bool
	}{
		{"server error", http.StatusServiceUnavailable, "", ErrorOutage, true},
		{"throttled", http.StatusTooManyRequests, "", ErrorRateLimited, true},
		{"bad request", http.StatusBadRequest, `{"error":"bad"}`, ErrorContract, false},
		{"empty body", http.StatusOK, "", ErrorBadData, false},
		{"null body", http.StatusOK, "null", ErrorBadData, false},
		{"malformed", http.StatusOK, "{not json", ErrorBadData, false},
		{"missing score", http.StatusOK, `{"riskLevel":"BAJO"}`, ErrorBadData, false},
		{"score above range", http.StatusOK, `{"score":5000,"riskLevel":"BAJO"}`, ErrorBadData, false},
		{"score below range", http.StatusOK, `{"score":120,"riskLevel":"ALTO"}`, ErrorBadData, false},
		{"negative score", http.StatusOK, `{"score":-40}`, ErrorBadData, false},
		{"label contradicts score", http.StatusOK, `{"score":750,"riskLevel":"ALTO"}`, ErrorBadData, false},
		{"unknown label", http.StatusOK, `{"score":650,"riskLevel":"SEVERE"}`, ErrorBadData, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a, err := NewHTTPProvider(srv.URL, time.Second).Assess(context.Background(), Request{Document: "1"})
			assert.Nil(t, a)
			require.Error(t, err)
			assert.Equal(t, tt.category, Category(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
}

func TestHTTPProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPProvider(srv.URL, 20*time.Millisecond).Assess(context.Background(), Request{Document: "1"})
	require.Error(t, err)
	assert.Equal(t, ErrorTimeout, Category(err))
	assert.True(t, IsRetryable(err))
}

func TestHTTPProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPProvider(url, time.Second).Assess(context.Background(), Request{Document: "1"})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

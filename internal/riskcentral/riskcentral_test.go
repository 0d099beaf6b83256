package riskcentral

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopcredit/internal/domain"
	"coopcredit/internal/risk"
	"coopcredit/pkg/logger"
	"coopcredit/pkg/validator"
)

func TestScore_KnownDocuments(t *testing.T) {
	tests := []struct {
		document string
		hash     int64
		score    int
		level    domain.RiskLevel
	}{
		{"abc", 96354, 530, domain.RiskLevelMedium},
		{"1234567890", 2054162789, 812, domain.RiskLevelLow},
		{"Aa", 2112, 372, domain.RiskLevelHigh},
		// Hash overflows to the minimum 32-bit value.
		{"polygenelubricants", 2147483648, 721, domain.RiskLevelLow},
	}
	for _, tt := range tests {
		t.Run(tt.document, func(t *testing.T) {
			assert.Equal(t, tt.hash, documentHash(tt.document))
			assert.Equal(t, tt.score, Score(tt.document))
			assert.Equal(t, tt.level, Evaluate(tt.document, decimal.NewFromInt(1000), 12).RiskLevel)
		})
	}
}

func TestScore_Range(t *testing.T) {
	for _, doc := range []string{"", "0", "999999999999", "ñandú-42", "🙂"} {
		s := Score(doc)
		assert.GreaterOrEqual(t, s, MinScore, doc)
		assert.Less(t, s, MaxScore, doc)
	}
}

func TestEvaluate_DetailMentionsLoan(t *testing.T) {
	eval := Evaluate("1234567890", decimal.NewFromInt(5000000), 24)

	assert.Contains(t, eval.Detail, "score 812")
	assert.Contains(t, eval.Detail, "$5,000,000.00 over 24 months")
	assert.Contains(t, eval.Detail, "records consulted")
}

func newServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	NewHandler(validator.New(), logger.NewNop(), opts...).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandler_Evaluate(t *testing.T) {
	srv := newServer(t)

	body := []byte(`{"document":"1234567890","amount":5000000,"term":24}`)
	resp, err := http.Post(srv.URL+"/risk-evaluation", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got Evaluation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "1234567890", got.Document)
	assert.Equal(t, 812, got.Score)
	assert.Equal(t, domain.RiskLevelLow, got.RiskLevel)
}

func TestHandler_RejectsInvalidRequest(t *testing.T) {
	srv := newServer(t)

	body := []byte(`{"document":"","amount":0,"term":0}`)
	resp, err := http.Post(srv.URL+"/risk-evaluation", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_InjectedFailure(t *testing.T) {
	srv := newServer(t, WithFailureRate(0.5), WithRoll(func() float64 { return 0.1 }))

	body := []byte(`{"document":"1234567890","amount":1000,"term":12}`)
	resp, err := http.Post(srv.URL+"/risk-evaluation", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

// The gateway's HTTP provider must understand the simulator's contract.
func TestHandler_CompatibleWithHTTPProvider(t *testing.T) {
	srv := newServer(t)
	provider := risk.NewHTTPProvider(srv.URL, time.Second)

	got, err := provider.Assess(context.Background(), risk.Request{
		Document:   "abc",
		Amount:     decimal.NewFromInt(1000000),
		TermMonths: 12,
	})

	require.NoError(t, err)
	assert.Equal(t, 530, got.Score)
	assert.Equal(t, domain.RiskLevelMedium, got.Level)
	assert.Equal(t, risk.SourceLive, got.Source)
}

func TestHandler_Health(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

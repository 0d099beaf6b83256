package risk

import (
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"

	"coopcredit/internal/domain"
)

// Conservative scoring constants.
const (
	FallbackBaseScore = 600
	FallbackMinScore  = 300
	FallbackMaxScore  = 850
	FallbackMaxJitter = 20

	// FallbackDetail marks a degraded assessment for downstream consumers and audits.
	FallbackDetail = "OFFLINE evaluation - risk service temporarily unavailable. Conservative score applied."
)

var (
	largeAmount  = decimal.NewFromInt(10_000_000)
	mediumAmount = decimal.NewFromInt(5_000_000)
)

// JitterSource returns an integer in [-bound, bound].
type JitterSource interface {
	Jitter(bound int) int
}

type randomJitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomJitter builds a goroutine-safe jitter source.
func NewRandomJitter(seed int64) JitterSource {
	return &randomJitter{rng: rand.New(rand.NewSource(seed))}
}

func (j *randomJitter) Jitter(bound int) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rng.Intn(2*bound+1) - bound
}

// Fallback synthesizes a conservative score when the bureau cannot answer.
type Fallback struct {
	jitter JitterSource
}

// NewFallback creates a Fallback with the given jitter source.
func NewFallback(jitter JitterSource) *Fallback {
	return &Fallback{jitter: jitter}
}

// Assess never fails. Larger and longer loans score lower.
func (f *Fallback) Assess(document string, amount decimal.Decimal, termMonths int) Assessment {
	score := FallbackBaseScore

	switch {
	case amount.GreaterThan(largeAmount):
		score -= 100
	case amount.GreaterThan(mediumAmount):
		score -= 50
	}

	switch {
	case termMonths > 60:
		score -= 50
	case termMonths > 36:
		score -= 25
	}

	score += f.boundedJitter()
	score = clamp(score, FallbackMinScore, FallbackMaxScore)

	return Assessment{
		Document: document,
		Score:    score,
		Level:    domain.LevelForScore(score),
		Detail:   FallbackDetail,
		Source:   SourceFallback,
	}
}

func (f *Fallback) boundedJitter() int {
	if f.jitter == nil {
		return 0
	}
	return clamp(f.jitter.Jitter(FallbackMaxJitter), -FallbackMaxJitter, FallbackMaxJitter)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

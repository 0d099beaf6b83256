package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"coopcredit/internal/domain"
)

type fixedJitter int

func (f fixedJitter) Jitter(int) int { return int(f) }

func TestFallback_ConservativeScore(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		term   int
		jitter int
		want   int
	}{
		{"small short loan", "1000000", 12, 0, 600},
		{"amount at medium threshold is not reduced", "5000000", 12, 0, 600},
		{"medium amount", "5000000.01", 12, 0, 550},
		{"large amount", "10000000.01", 12, 0, 500},
		{"amount at large threshold counts as medium", "10000000", 12, 0, 550},
		{"term above 36", "1000000", 37, 0, 575},
		{"term at 60 counts as medium", "1000000", 60, 0, 575},
		{"term above 60", "1000000", 61, 0, 550},
		{"worst case", "20000000", 360, -20, 430},
		{"positive jitter", "1000000", 12, 20, 620},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := NewFallback(fixedJitter(tt.jitter))
			a := fb.Assess("123", decimal.RequireFromString(tt.amount), tt.term)

			assert.Equal(t, tt.want, a.Score)
			assert.Equal(t, domain.LevelForScore(tt.want), a.Level)
			assert.Equal(t, SourceFallback, a.Source)
			assert.True(t, a.Degraded())
			assert.Contains(t, a.Detail, "OFFLINE")
			assert.Equal(t, "123", a.Document)
		})
	}
}

func TestFallback_JitterIsBoundedAndScoreClamped(t *testing.T) {
	for _, j := range []int{-1000, -21, 21, 1000} {
		a := NewFallback(fixedJitter(j)).Assess("x", decimal.NewFromInt(1), 1)
		assert.GreaterOrEqual(t, a.Score, 580)
		assert.LessOrEqual(t, a.Score, 620)
	}

	src := NewRandomJitter(42)
	fb := NewFallback(src)
	for i := 0; i < 2000; i++ {
		a := fb.Assess("x", decimal.NewFromInt(25_000_000), 120)
		assert.GreaterOrEqual(t, a.Score, FallbackMinScore)
		assert.LessOrEqual(t, a.Score, FallbackMaxScore)
		assert.GreaterOrEqual(t, a.Score, 430)
		assert.LessOrEqual(t, a.Score, 470)
	}
}

func TestRandomJitter_Range(t *testing.T) {
	src := NewRandomJitter(7)
	seen := map[int]bool{}
	for i := 0; i < 5000; i++ {
		v := src.Jitter(FallbackMaxJitter)
		assert.GreaterOrEqual(t, v, -FallbackMaxJitter)
		assert.LessOrEqual(t, v, FallbackMaxJitter)
		seen[v] = true
	}
	assert.True(t, seen[-FallbackMaxJitter] && seen[FallbackMaxJitter], "both ends reachable")
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 300, clamp(120, 300, 850))
	assert.Equal(t, 850, clamp(999, 300, 850))
	assert.Equal(t, 500, clamp(500, 300, 850))
}

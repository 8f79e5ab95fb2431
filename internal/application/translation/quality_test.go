package translation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("w ", n))
}

func TestQualityScore(t *testing.T) {
	cases := []struct {
		name     string
		src, dst int
		want     float64
	}{
		{"equal length", 100, 100, 1.0},
		{"lower good bound", 100, 70, 1.0},
		{"upper good bound", 100, 150, 1.0},
		{"just under good", 100, 69, 0.8},
		{"just over good", 100, 151, 0.8},
		{"lower acceptable bound", 100, 50, 0.8},
		{"upper acceptable bound", 100, 200, 0.8},
		{"too short", 100, 49, 0.6},
		{"too long", 100, 201, 0.6},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := QualityScore(words(tc.src), words(tc.dst))
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestQualityScoreEmptyInputs(t *testing.T) {
	assert.InDelta(t, 0.6, QualityScore("", "anything"), 1e-9)
	assert.InDelta(t, 0.6, QualityScore("anything", ""), 1e-9)
}

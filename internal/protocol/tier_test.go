package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandFor(t *testing.T) {
	tests := []struct {
		urgency Urgency
		want    TierBand
	}{
		{UrgencyLow, TierBand{1, 5}},
		{UrgencyMedium, TierBand{6, 10}},
		{UrgencyHigh, TierBand{11, 20}},
		{UrgencyCritical, TierBand{21, 33}},
		{Urgency("bogus"), TierBand{1, 5}}, // unknown never escalates
	}

	for _, tt := range tests {
		t.Run(string(tt.urgency), func(t *testing.T) {
			assert.Equal(t, tt.want, BandFor(tt.urgency))
		})
	}
}

func TestTierAssessorAssess(t *testing.T) {
	assessor := NewTierAssessor(nil, 0) // defaults: built-in categories, increment 2

	tests := []struct {
		name string
		cx   AnalysisContext
		want int
	}{
		{
			name: "empty context stays at band floor",
			cx:   AnalysisContext{Urgency: UrgencyLow},
			want: 1,
		},
		{
			name: "medium base",
			cx:   AnalysisContext{Urgency: UrgencyMedium, RawQuery: "quarterly revenue outlook"},
			want: 6,
		},
		{
			name: "one category bumps by increment",
			cx:   AnalysisContext{Urgency: UrgencyMedium, Keywords: []string{"ransomware"}},
			want: 8,
		},
		{
			name: "two categories bump twice",
			cx: AnalysisContext{
				Urgency:  UrgencyCritical,
				Keywords: []string{"foreign influence", "cyber threat"},
			},
			want: 25,
		},
		{
			name: "escalation is capped at band max",
			cx: AnalysisContext{
				Urgency: UrgencyLow,
				Keywords: []string{
					"foreign influence", "cyber threat", "state capture",
					"economic coercion", "disinformation",
				},
			},
			want: 5,
		},
		{
			name: "raw query is matched too",
			cx:   AnalysisContext{Urgency: UrgencyHigh, RawQuery: "assess the disinformation push"},
			want: 13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, assessor.Assess(&tt.cx))
		})
	}
}

func TestTierAssessorIsDeterministic(t *testing.T) {
	assessor := NewTierAssessor(nil, 2)
	cx := &AnalysisContext{
		Urgency:  UrgencyHigh,
		Keywords: []string{"cyber attack", "propaganda", "sanctions evasion"},
	}

	first := assessor.Assess(cx)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, assessor.Assess(cx))
	}
}

func TestTierAssessorCustomCategories(t *testing.T) {
	assessor := NewTierAssessor(map[string][]string{
		"custom": {"special phrase"},
	}, 3)

	got := assessor.Assess(&AnalysisContext{
		Urgency:  UrgencyMedium,
		RawQuery: "a special phrase appears",
	})
	assert.Equal(t, 9, got)
}

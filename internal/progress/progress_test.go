package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ShayCichocki/greengate/pkg/models"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name          string
		history       []float64
		deltas        []float64
		flips, items  int
		wantNet       float64
		wantMean      float64
		wantBest      float64
		wantTrend     models.Trend
		wantAggregate float64
	}{
		{
			name:      "empty run",
			wantTrend: models.TrendFlat,
		},
		{
			name:          "improving",
			history:       []float64{0.25, 0.5, 1},
			deltas:        []float64{0.25, 0.25, 0.5},
			flips:         2,
			items:         4,
			wantNet:       0.75,
			wantMean:      0.333333,
			wantBest:      1,
			wantTrend:     models.TrendUp,
			wantAggregate: 0.675,
		},
		{
			name:          "regressing",
			history:       []float64{1, 0.5},
			deltas:        []float64{1, -0.5},
			wantNet:       -0.5,
			wantMean:      0.25,
			wantBest:      1,
			wantTrend:     models.TrendDown,
			wantAggregate: -0.35,
		},
		{
			name:          "flat within epsilon",
			history:       []float64{0.5, 0.5005},
			deltas:        []float64{0.5, 0.0005},
			wantNet:       0.0005,
			wantMean:      0.25025,
			wantBest:      0.5005,
			wantTrend:     models.TrendFlat,
			wantAggregate: 0.00035,
		},
		{
			name:          "checklist flips without check progress",
			history:       []float64{0, 0},
			deltas:        []float64{0, 0},
			flips:         1,
			items:         0,
			wantTrend:     models.TrendFlat,
			wantAggregate: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.history, tt.deltas, tt.flips, tt.items)
			assert.InDelta(t, tt.wantNet, got.NetDelta, 1e-9)
			assert.InDelta(t, tt.wantMean, got.MeanDelta, 1e-9)
			assert.InDelta(t, tt.wantBest, got.Best, 1e-9)
			assert.Equal(t, tt.wantTrend, got.Trend)
			assert.InDelta(t, tt.wantAggregate, got.Aggregate, 1e-9)
			assert.Equal(t, tt.flips, got.ChecklistFlipCount)
			assert.Len(t, got.History, len(tt.history))
		})
	}
}

func TestFlipCount(t *testing.T) {
	deltas := []models.ChecklistDelta{
		{FlippedToSatisfied: []string{"a", "b"}},
		{FlippedToSatisfied: []string{}},
		{FlippedToSatisfied: []string{"c"}},
	}
	assert.Equal(t, 3, FlipCount(deltas))
}

// Package progress reduces a run's progress trajectory into summary metrics.
package progress

import "github.com/ShayCichocki/greengate/pkg/models"

const (
	// trendEpsilon is the net delta below which progress counts as flat.
	trendEpsilon = 0.001

	netWeight  = 0.7
	flipWeight = 0.3
)

// Summary is the reduced trajectory.
type Summary struct {
	models.ProgressSummary
	Trend     models.Trend
	Aggregate float64
}

// Summarize reduces the score history, the per-step deltas and the checklist
// flip count. The aggregate blends net check progress with the fraction of
// checklist items that flipped, so neither alone earns full credit.
func Summarize(history, deltas []float64, flips, items int) Summary {
	var initial, final, best float64
	if len(history) > 0 {
		initial = history[0]
		final = history[len(history)-1]
		best = history[0]
		for _, v := range history[1:] {
			if v > best {
				best = v
			}
		}
	}

	net := models.Round(final-initial, 6)

	var mean float64
	if len(deltas) > 0 {
		var sum float64
		for _, d := range deltas {
			sum += d
		}
		mean = models.Round(sum/float64(len(deltas)), 6)
	}

	rounded := make([]float64, len(history))
	for i, v := range history {
		rounded[i] = models.Round(v, 6)
	}

	return Summary{
		ProgressSummary: models.ProgressSummary{
			Initial:            models.Round(initial, 6),
			Final:              models.Round(final, 6),
			Best:               models.Round(best, 6),
			NetDelta:           net,
			MeanDelta:          mean,
			History:            rounded,
			ChecklistFlipCount: flips,
		},
		Trend:     TrendOf(net),
		Aggregate: models.Round(netWeight*net+flipWeight*float64(flips)/float64(max(1, items)), 6),
	}
}

// TrendOf classifies a net delta.
func TrendOf(net float64) models.Trend {
	switch {
	case net > trendEpsilon:
		return models.TrendUp
	case net < -trendEpsilon:
		return models.TrendDown
	default:
		return models.TrendFlat
	}
}

// FlipCount totals the items that flipped to satisfied across deltas.
func FlipCount(deltas []models.ChecklistDelta) int {
	n := 0
	for _, d := range deltas {
		n += len(d.FlippedToSatisfied)
	}
	return n
}

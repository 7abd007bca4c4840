package rag

import "math"

// Confidence scores an answer from the similarity of its supporting chunks:
// 0.85 of the top score plus 0.15 of its margin over the runner-up, clamped to [0,1]
// and rounded to three decimals.
func Confidence(used []ContextChunk) float64 {
	if len(used) == 0 {
		return 0
	}
	top := clamp01(float64(used[0].Score))
	second := 0.0
	if len(used) > 1 {
		second = clamp01(float64(used[1].Score))
	}
	c := clamp01(0.85*top + 0.15*(top-second))
	return math.Round(c*1000) / 1000
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package ingest

import (
	"math"
	"sort"
	"unicode/utf8"

	"docqa/internal/chunk"
)

// TextStats summarizes chunk text lengths in runes.
type TextStats struct {
	Min  int
	Max  int
	Mean float64
	P95  int
}

// computeTextStats computes min, max, mean and p95 of the chunks' text lengths.
func computeTextStats(chunks []chunk.Chunk) TextStats {
	if len(chunks) == 0 {
		return TextStats{}
	}

	lengths := make([]int, len(chunks))
	sum := 0
	for i, c := range chunks {
		lengths[i] = utf8.RuneCountInString(c.Text)
		sum += lengths[i]
	}
	sort.Ints(lengths)

	p95Index := int(math.Ceil(float64(len(lengths))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}
	mean := float64(sum) / float64(len(lengths))

	return TextStats{
		Min:  lengths[0],
		Max:  lengths[len(lengths)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  lengths[p95Index],
	}
}

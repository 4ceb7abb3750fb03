package features

import (
	"fmt"
	"sort"

	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/queue"
)

// CandidatePairs enumerates the unordered protein pairs worth scoring:
// pairs that share at least one fraction where both profiles exceed the
// noise floor. The result is sorted by canonical pair key so downstream
// stages see a stable order.
func CandidatePairs(profiles map[string]*models.ElutionProfile, noiseFloor float64) []models.PairKey {
	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var pairs []models.PairKey
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if coDetected(profiles[ids[i]], profiles[ids[j]], noiseFloor) {
				pairs = append(pairs, models.NewPairKey(ids[i], ids[j]))
			}
		}
	}
	return pairs
}

func coDetected(a, b *models.ElutionProfile, floor float64) bool {
	n := a.Fractions()
	if b.Fractions() < n {
		n = b.Fractions()
	}
	for i := 0; i < n; i++ {
		if a.Intensity[i] > floor && b.Intensity[i] > floor {
			return true
		}
	}
	return false
}

// Batch splits pairs into batches of at most size pairs each, preserving
// order. Batch IDs embed the condition and a running index.
func Batch(condition string, pairs []models.PairKey, size int) []*queue.PairBatch {
	if size <= 0 {
		size = len(pairs)
	}
	var batches []*queue.PairBatch
	for start := 0; start < len(pairs); start += size {
		end := start + size
		if end > len(pairs) {
			end = len(pairs)
		}
		batches = append(batches, &queue.PairBatch{
			ID:        fmt.Sprintf("%s-%04d", condition, len(batches)),
			Condition: condition,
			Pairs:     pairs[start:end],
		})
	}
	return batches
}

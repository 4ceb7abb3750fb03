package features

import (
	"context"
	"sort"
	"sync"

	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/queue"
)

// Pool runs feature extraction over batched pairs on a fixed number of
// workers. Output order is deterministic (sorted by pair key) no matter
// how the workers interleave.
type Pool struct {
	extractor *Extractor
	workers   int
}

// NewPool creates a pool. workers <= 0 falls back to a single worker.
func NewPool(extractor *Extractor, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{extractor: extractor, workers: workers}
}

// Run drains the queue, extracting every batch. Failed batches are marked
// failed and the first error is returned after the queue drains; completed
// vectors are returned sorted by pair key.
func (p *Pool) Run(ctx context.Context, q *queue.Queue) ([]*models.PairFeatureVector, error) {
	var (
		mu       sync.Mutex
		vectors  []*models.PairFeatureVector
		firstErr error
	)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					return
				}
				batch, err := q.Dequeue()
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
				if batch == nil {
					return
				}
				out := make([]*models.PairFeatureVector, 0, len(batch.Pairs))
				for _, pair := range batch.Pairs {
					out = append(out, p.extractor.Extract(pair))
				}
				mu.Lock()
				vectors = append(vectors, out...)
				mu.Unlock()
				q.UpdateStatus(batch.ID, queue.BatchStatusCompleted, "")
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}

	sort.Slice(vectors, func(i, j int) bool {
		if vectors[i].Pair.A != vectors[j].Pair.A {
			return vectors[i].Pair.A < vectors[j].Pair.A
		}
		return vectors[i].Pair.B < vectors[j].Pair.B
	})
	return vectors, nil
}

// Package queue provides the in-memory priority queue that feeds pair
// batches to the feature extraction worker pool. Larger batches are served
// first so workers stay saturated toward the end of a run.
package queue

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/complexome/prophet/pkg/models"
)

// BatchStatus tracks a pair batch through the extraction pool.
type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusExtracting BatchStatus = "extracting"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// PairBatch is one unit of feature extraction work: a contiguous slice of
// candidate pairs for a single condition.
type PairBatch struct {
	ID        string
	Condition string
	Pairs     []models.PairKey
	Status    BatchStatus
	Err       string
}

// Queue is an in-memory priority queue of pair batches.
type Queue struct {
	mu      sync.RWMutex
	pq      *priorityQueue
	batches map[string]*PairBatch
}

// New creates an empty batch queue.
func New() *Queue {
	pq := make(priorityQueue, 0)
	heap.Init(&pq)
	return &Queue{
		pq:      &pq,
		batches: make(map[string]*PairBatch),
	}
}

// Enqueue adds a batch. Priority is the batch size; bigger batches dequeue
// first. Duplicate IDs are rejected.
func (q *Queue) Enqueue(batch *PairBatch) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.batches[batch.ID]; ok {
		return fmt.Errorf("batch already enqueued: %s", batch.ID)
	}
	batch.Status = BatchStatusQueued
	heap.Push(q.pq, &pqItem{batchID: batch.ID, priority: len(batch.Pairs)})
	q.batches[batch.ID] = batch
	return nil
}

// Dequeue pops the highest-priority batch, marking it extracting. Returns
// nil when the queue is drained.
func (q *Queue) Dequeue() (*PairBatch, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pq.Len() == 0 {
		return nil, nil
	}
	item := heap.Pop(q.pq).(*pqItem)
	batch, ok := q.batches[item.batchID]
	if !ok {
		return nil, fmt.Errorf("batch data not found: %s", item.batchID)
	}
	batch.Status = BatchStatusExtracting
	return batch, nil
}

// UpdateStatus records completion or failure of a batch.
func (q *Queue) UpdateStatus(batchID string, status BatchStatus, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch, ok := q.batches[batchID]
	if !ok {
		return fmt.Errorf("batch not found: %s", batchID)
	}
	batch.Status = status
	if errMsg != "" {
		batch.Err = errMsg
	}
	return nil
}

// Len returns the number of batches still waiting.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.pq.Len()
}

type pqItem struct {
	batchID  string
	priority int
	index    int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority > pq[j].priority
	}
	// equal sizes dequeue in ID order for determinism
	return pq[i].batchID < pq[j].batchID
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*pqItem)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

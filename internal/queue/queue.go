// Package queue holds pending event records in delivery order.
//
// The queue is not safe for concurrent use. The tracker only touches it from
// its loop, so Drain is atomic with respect to Enqueue by construction.
package queue

import "github.com/visiora/visiora-agent/internal/models"

// DefaultBatchSize is the queue length that triggers an immediate flush.
const DefaultBatchSize = 10

// Queue is an unbounded FIFO of records.
type Queue struct {
	items     []models.Event
	batchSize int
	onFull    func()
}

// New creates a queue that calls onFull whenever an Enqueue leaves it with
// at least batchSize records. A non-positive batchSize means DefaultBatchSize.
func New(batchSize int, onFull func()) *Queue {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Queue{batchSize: batchSize, onFull: onFull}
}

// Enqueue appends e to the tail.
func (q *Queue) Enqueue(e models.Event) {
	q.items = append(q.items, e)
	if len(q.items) >= q.batchSize && q.onFull != nil {
		q.onFull()
	}
}

// Drain removes and returns every queued record.
func (q *Queue) Drain() []models.Event {
	batch := q.items
	q.items = nil
	return batch
}

// RequeueFront puts batch back at the head, ahead of anything enqueued since
// it was drained, keeping its internal order.
func (q *Queue) RequeueFront(batch []models.Event) {
	if len(batch) == 0 {
		return
	}
	items := make([]models.Event, 0, len(batch)+len(q.items))
	items = append(items, batch...)
	q.items = append(items, q.items...)
}

// Len returns the number of queued records.
func (q *Queue) Len() int {
	return len(q.items)
}

// BatchSize returns the flush threshold.
func (q *Queue) BatchSize() int {
	return q.batchSize
}

package robot

import (
	"context"
	"sync/atomic"

	"github.com/ghrobotics/visiontrack/internal/db"
	"github.com/ghrobotics/visiontrack/internal/monitoring"
)

// DefaultRecordQueueSize holds about two seconds of records at 50 Hz with one
// camera frame and one best target per cycle.
const DefaultRecordQueueSize = 256

// Recorder persists loop output.
type Recorder interface {
	RecordFrame(db.FrameRecord) error
	RecordBestTarget(db.BestTargetRecord) error
}

type record struct {
	frame *db.FrameRecord
	best  *db.BestTargetRecord
}

// RecordQueue moves match-log writes off the control loop. The loop offers
// records without blocking; Run writes them to the sink on its own goroutine.
// When the sink falls behind and the queue is full, new records are dropped
// and counted.
type RecordQueue struct {
	sink    Recorder
	ch      chan record
	dropped atomic.Uint64
}

// NewRecordQueue creates a queue in front of sink. A non-positive size
// selects DefaultRecordQueueSize.
func NewRecordQueue(sink Recorder, size int) *RecordQueue {
	if size <= 0 {
		size = DefaultRecordQueueSize
	}
	return &RecordQueue{sink: sink, ch: make(chan record, size)}
}

func (q *RecordQueue) offer(r record) bool {
	select {
	case q.ch <- r:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// OfferFrame queues a frame row. It reports false if the row was dropped.
func (q *RecordQueue) OfferFrame(r db.FrameRecord) bool {
	return q.offer(record{frame: &r})
}

// OfferBestTarget queues a best-target row. It reports false if the row was
// dropped.
func (q *RecordQueue) OfferBestTarget(r db.BestTargetRecord) bool {
	return q.offer(record{best: &r})
}

// Dropped returns how many records were discarded because the queue was full.
func (q *RecordQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Len returns the number of records waiting to be written.
func (q *RecordQueue) Len() int {
	return len(q.ch)
}

func (q *RecordQueue) write(r record) {
	var err error
	switch {
	case r.frame != nil:
		err = q.sink.RecordFrame(*r.frame)
	case r.best != nil:
		err = q.sink.RecordBestTarget(*r.best)
	}
	if err != nil {
		monitoring.Logf("match log: %v", err)
	}
}

// Drain writes every queued record and returns how many it wrote. Sink
// errors are logged and do not stop the drain.
func (q *RecordQueue) Drain() int {
	n := 0
	for {
		select {
		case r := <-q.ch:
			q.write(r)
			n++
		default:
			return n
		}
	}
}

// Run writes records as they arrive until ctx is cancelled, then flushes
// whatever is still queued.
func (q *RecordQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if n := q.Drain(); n > 0 {
				monitoring.Logf("match log: flushed %d records on shutdown", n)
			}
			return ctx.Err()
		case r := <-q.ch:
			q.write(r)
		}
	}
}

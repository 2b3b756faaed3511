package grid

import "time"

// PendingRetry is a placement that failed, kept with enough detail to
// resubmit without loss of intent.
type PendingRetry struct {
	Spec        OrderSpec
	Attempts    int
	FirstFailed time.Time
	LastErr     string
}

// RetryQueue buffers failed placements for resubmission each tick. Retries
// are unbounded: a spec stays queued until the venue accepts it or the queue
// is cleared by a rebalance.
type RetryQueue struct {
	items []PendingRetry
}

func NewRetryQueue() *RetryQueue {
	return &RetryQueue{}
}

// Push enqueues a failed placement. If the spec is already queued (same
// level and role) the existing entry is updated instead of duplicated.
func (q *RetryQueue) Push(spec OrderSpec, failedAt time.Time, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	for i := range q.items {
		if q.items[i].Spec.Level == spec.Level && q.items[i].Spec.Role == spec.Role {
			q.items[i].Spec = spec
			q.items[i].Attempts++
			q.items[i].LastErr = msg
			return
		}
	}
	q.items = append(q.items, PendingRetry{
		Spec:        spec,
		Attempts:    1,
		FirstFailed: failedAt,
		LastErr:     msg,
	})
}

// TakeAll empties the queue and returns its contents in FIFO order. Entries
// that fail again must be pushed back by the caller.
func (q *RetryQueue) TakeAll() []PendingRetry {
	items := q.items
	q.items = nil
	return items
}

func (q *RetryQueue) Len() int { return len(q.items) }

// Clear drops all pending retries. Used after a confirmed rebalance
// cancellation alongside Ledger.Clear.
func (q *RetryQueue) Clear() {
	q.items = nil
}

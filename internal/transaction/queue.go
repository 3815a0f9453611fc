package transaction

import (
	"log/slog"
	"time"
)

// Stats is a point-in-time view of the queue.
type Stats struct {
	Live      int    // transactions awaiting delivery
	Flushing  bool   // a flush cursor is active
	Remaining int    // targets left in the active cursor
	Created   uint64 // transactions created since start
	Delivered uint64 // successful deliveries since start
	Failed    uint64 // failed delivery attempts since start
}

// Queue holds every live transaction in insertion order and the single flush
// cursor. Use NewQueue; the zero value is not ready for use.
type Queue struct {
	now    func() time.Time // injectable for deterministic tests
	nextID uint64
	live   []*Transaction

	// cursor is nil when no flush is in progress. Otherwise it holds the
	// remaining targets of the active flush, newest first.
	cursor []*Transaction

	delivered uint64
	failed    uint64
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides the time source used to stamp new transactions.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// NewQueue returns an empty queue.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{now: time.Now}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue creates a transaction for payload and appends it to the tail.
// The transaction is immediately eligible.
func (q *Queue) Enqueue(payload Payload) *Transaction {
	q.nextID++
	now := q.now()
	tr := &Transaction{
		id:           q.nextID,
		payload:      payload,
		createdAt:    now,
		nextEligible: now,
	}
	q.live = append(q.live, tr)
	slog.Info("transaction: created", "id", tr.id, "live", len(q.live))
	return tr
}

// SelectDue returns the live transactions eligible at now, most recently
// created first.
func (q *Queue) SelectDue(now time.Time) []*Transaction {
	var due []*Transaction
	for i := len(q.live) - 1; i >= 0; i-- {
		if q.live[i].Due(now) {
			due = append(due, q.live[i])
		}
	}
	return due
}

// BeginFlush starts a flush of everything due at now. It reports false
// without doing anything if a flush is already draining or nothing is due.
func (q *Queue) BeginFlush(now time.Time) bool {
	if q.cursor != nil {
		slog.Info("transaction: a flush is already in progress, not doing anything",
			"remaining", len(q.cursor))
		return false
	}
	due := q.SelectDue(now)
	if len(due) == 0 {
		return false
	}
	slog.Info("transaction: flushing", "count", len(due), "live", len(q.live))
	q.cursor = due
	return true
}

// PopFlushTarget removes and returns the next target of the active flush.
// When the cursor is exhausted it is cleared and ok is false.
func (q *Queue) PopFlushTarget() (tr *Transaction, ok bool) {
	if len(q.cursor) == 0 {
		q.cursor = nil
		return nil, false
	}
	tr = q.cursor[0]
	q.cursor[0] = nil
	q.cursor = q.cursor[1:]
	return tr, true
}

// OnDeliverySuccess retires tr permanently.
func (q *Queue) OnDeliverySuccess(tr *Transaction) {
	for i, t := range q.live {
		if t == tr {
			copy(q.live[i:], q.live[i+1:])
			q.live[len(q.live)-1] = nil
			q.live = q.live[:len(q.live)-1]
			q.delivered++
			slog.Info("transaction: completed", "id", tr.id, "live", len(q.live))
			return
		}
	}
	slog.Warn("transaction: delivered transaction not found in queue", "id", tr.id)
}

// OnDeliveryFailure records a failed attempt at now and reschedules tr.
// tr stays in the queue.
func (q *Queue) OnDeliveryFailure(tr *Transaction, now time.Time) {
	tr.fail(now)
	q.failed++
	slog.Info("transaction: in error, will be replayed",
		"id", tr.id,
		"errors", tr.failureCount,
		"replay_after", tr.nextEligible.Format(time.RFC3339))
}

// Flushing reports whether a flush cursor is active.
func (q *Queue) Flushing() bool { return q.cursor != nil }

// Len returns the number of live transactions.
func (q *Queue) Len() int { return len(q.live) }

// Get returns the live transaction with the given id.
func (q *Queue) Get(id uint64) (*Transaction, bool) {
	for _, t := range q.live {
		if t.id == id {
			return t, true
		}
	}
	return nil, false
}

// Transactions returns the live transactions in insertion order.
func (q *Queue) Transactions() []*Transaction {
	return append([]*Transaction(nil), q.live...)
}

// Stats returns current counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Live:      len(q.live),
		Flushing:  q.cursor != nil,
		Remaining: len(q.cursor),
		Created:   q.nextID,
		Delivered: q.delivered,
		Failed:    q.failed,
	}
}

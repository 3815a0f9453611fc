package transaction

import "time"

// Payload is a decoded intake document. It is never modified after the
// transaction is created.
type Payload map[string]any

// Transaction is one queued payload plus its delivery bookkeeping.
type Transaction struct {
	id           uint64
	payload      Payload
	createdAt    time.Time
	failureCount int
	nextEligible time.Time
}

// ID is the process-lifetime identifier assigned by the queue.
func (t *Transaction) ID() uint64 { return t.id }

// Payload returns the document to deliver.
func (t *Transaction) Payload() Payload { return t.payload }

// CreatedAt is the time the transaction was enqueued.
func (t *Transaction) CreatedAt() time.Time { return t.createdAt }

// FailureCount is the number of failed delivery attempts so far.
func (t *Transaction) FailureCount() int { return t.failureCount }

// NextEligible is the earliest time the transaction may be sent again.
func (t *Transaction) NextEligible() time.Time { return t.nextEligible }

// Due reports whether the transaction may be selected for delivery at now.
func (t *Transaction) Due(now time.Time) bool {
	return !t.nextEligible.After(now)
}

// fail records one failed attempt observed at now.
func (t *Transaction) fail(now time.Time) {
	t.failureCount++
	t.nextEligible = now.Add(Delay(t.failureCount))
}

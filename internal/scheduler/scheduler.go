package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/obsidianstack/forwarder/internal/metrics"
	"github.com/obsidianstack/forwarder/internal/supervisor"
	"github.com/obsidianstack/forwarder/internal/transaction"
)

// ErrStopped is returned by Submit and Status once Run has returned.
var ErrStopped = errors.New("scheduler: stopped")

// Sender delivers one transaction to the collector. It may block; the
// scheduler always calls it from a separate goroutine.
type Sender interface {
	Send(ctx context.Context, tr *transaction.Transaction) error
}

// CheckRunner spawns and polls the check process.
type CheckRunner interface {
	Spawn(firstRun bool) error
	Poll() supervisor.State
	PID() int
	Stop()
}

// Intervals are the periods of the three timers driven by Run.
type Intervals struct {
	Check time.Duration // spawn a check run
	Poll  time.Duration // poll the running check process
	Flush time.Duration // flush due transactions
}

// Status is a snapshot of the scheduler's state.
type Status struct {
	Live         int                 `json:"live"`
	Flushing     bool                `json:"flushing"`
	InFlight     bool                `json:"in_flight"`
	Created      uint64              `json:"created"`
	Delivered    uint64              `json:"delivered"`
	Failed       uint64              `json:"failed_attempts"`
	CheckPID     int                 `json:"check_pid"`
	Transactions []TransactionStatus `json:"transactions"`
}

// TransactionStatus describes one live transaction.
type TransactionStatus struct {
	ID           uint64    `json:"id"`
	FailureCount int       `json:"failure_count"`
	NextEligible time.Time `json:"next_eligible"`
	CreatedAt    time.Time `json:"created_at"`
}

type submitRequest struct {
	payload transaction.Payload
	reply   chan uint64
}

type deliveryResult struct {
	tr      *transaction.Transaction
	err     error
	elapsed time.Duration
}

// Scheduler is the forwarder's single control loop. Every queue mutation,
// flush cursor transition, and supervisor call happens on the goroutine
// running Run; other goroutines reach it through Submit and Status.
//
// At most one delivery is outstanding at a time. A flush chain sends its
// targets one by one, each started only after the previous outcome has been
// applied.
type Scheduler struct {
	intervals Intervals
	queue     *transaction.Queue
	sender    Sender
	checks    CheckRunner
	metrics   *metrics.Metrics
	now       func() time.Time

	submits  chan submitRequest
	statuses chan chan Status
	results  chan deliveryResult
	done     chan struct{}
	runOnce  sync.Once

	// sending is true while a Send goroutine is outstanding.
	sending bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used for eligibility decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithMetrics records activity on m instead of a private registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New returns a Scheduler that owns q and delivers through sender.
func New(iv Intervals, q *transaction.Queue, sender Sender, checks CheckRunner, opts ...Option) *Scheduler {
	s := &Scheduler{
		intervals: iv,
		queue:     q,
		sender:    sender,
		checks:    checks,
		now:       time.Now,
		submits:   make(chan submitRequest),
		statuses:  make(chan chan Status),
		results:   make(chan deliveryResult),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// Run drives the check, poll, and flush timers and serves submissions until
// ctx is cancelled. The first check run is spawned immediately with the
// first-run flag. Run must be called at most once; it returns nil on
// cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("scheduler: Run called twice")
	}
	defer close(s.done)

	checkT := time.NewTicker(s.intervals.Check)
	defer checkT.Stop()
	pollT := time.NewTicker(s.intervals.Poll)
	defer pollT.Stop()
	flushT := time.NewTicker(s.intervals.Flush)
	defer flushT.Stop()

	slog.Info("scheduler: starting",
		"check_interval", s.intervals.Check,
		"poll_interval", s.intervals.Poll,
		"flush_interval", s.intervals.Flush)

	s.spawn(true)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler: stopping", "live", s.queue.Len())
			s.checks.Stop()
			return nil

		case <-checkT.C:
			s.spawn(false)

		case <-pollT.C:
			s.poll()

		case <-flushT.C:
			s.flush(ctx)

		case req := <-s.submits:
			tr := s.queue.Enqueue(req.payload)
			s.metrics.TransactionsCreated.Inc()
			s.metrics.QueueLive.Set(float64(s.queue.Len()))
			req.reply <- tr.ID()
			s.flush(ctx)

		case res := <-s.results:
			s.finish(ctx, res)

		case reply := <-s.statuses:
			reply <- s.status()
		}
	}
}

// Submit queues payload and nudges a flush. It returns the new
// transaction's id once the loop has accepted it.
func (s *Scheduler) Submit(ctx context.Context, payload transaction.Payload) (uint64, error) {
	req := submitRequest{payload: payload, reply: make(chan uint64, 1)}
	select {
	case s.submits <- req:
	case <-s.done:
		return 0, ErrStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	// The loop replies before doing anything else with the request.
	return <-req.reply, nil
}

// Status returns a snapshot of the queue and supervisor state.
func (s *Scheduler) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case s.statuses <- reply:
	case <-s.done:
		return Status{}, ErrStopped
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	return <-reply, nil
}

func (s *Scheduler) spawn(firstRun bool) {
	err := s.checks.Spawn(firstRun)
	switch {
	case err == nil:
		s.metrics.CheckRuns.WithLabelValues("started").Inc()
	case errors.Is(err, supervisor.ErrRunning):
		s.metrics.CheckRuns.WithLabelValues("refused").Inc()
	default:
		s.metrics.CheckRuns.WithLabelValues("spawn_error").Inc()
	}
}

func (s *Scheduler) poll() {
	switch s.checks.Poll() {
	case supervisor.Succeeded:
		s.metrics.CheckRuns.WithLabelValues("succeeded").Inc()
	case supervisor.Failed:
		s.metrics.CheckRuns.WithLabelValues("failed").Inc()
	}
}

// flush starts a flush chain if none is draining.
func (s *Scheduler) flush(ctx context.Context) {
	if !s.queue.BeginFlush(s.now()) {
		return
	}
	s.metrics.Flushes.Inc()
	s.sendNext(ctx)
}

// sendNext hands the next flush target to the sender, unless a send is
// already outstanding or the cursor is exhausted.
func (s *Scheduler) sendNext(ctx context.Context) {
	if s.sending {
		return
	}
	tr, ok := s.queue.PopFlushTarget()
	if !ok {
		return
	}
	s.sending = true

	go func() {
		start := time.Now()
		err := s.sender.Send(ctx, tr)
		res := deliveryResult{tr: tr, err: err, elapsed: time.Since(start)}
		select {
		case s.results <- res:
		case <-s.done:
		}
	}()
}

// finish applies a delivery outcome and continues the chain.
func (s *Scheduler) finish(ctx context.Context, res deliveryResult) {
	s.sending = false
	s.metrics.DeliveryDuration.Observe(res.elapsed.Seconds())

	if res.err != nil {
		slog.Warn("scheduler: delivery failed", "id", res.tr.ID(), "err", res.err)
		s.queue.OnDeliveryFailure(res.tr, s.now())
		s.metrics.Deliveries.WithLabelValues("failure").Inc()
	} else {
		s.queue.OnDeliverySuccess(res.tr)
		s.metrics.Deliveries.WithLabelValues("success").Inc()
	}
	s.metrics.QueueLive.Set(float64(s.queue.Len()))

	s.sendNext(ctx)
}

func (s *Scheduler) status() Status {
	st := s.queue.Stats()
	out := Status{
		Live:      st.Live,
		Flushing:  st.Flushing,
		InFlight:  s.sending,
		Created:   st.Created,
		Delivered: st.Delivered,
		Failed:    st.Failed,
		CheckPID:  s.checks.PID(),
	}
	for _, tr := range s.queue.Transactions() {
		out.Transactions = append(out.Transactions, TransactionStatus{
			ID:           tr.ID(),
			FailureCount: tr.FailureCount(),
			NextEligible: tr.NextEligible(),
			CreatedAt:    tr.CreatedAt(),
		})
	}
	return out
}

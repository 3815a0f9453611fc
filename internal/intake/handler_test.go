package intake_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/obsidianstack/forwarder/internal/intake"
	"github.com/obsidianstack/forwarder/internal/metrics"
	"github.com/obsidianstack/forwarder/internal/scheduler"
	"github.com/obsidianstack/forwarder/internal/supervisor"
	"github.com/obsidianstack/forwarder/internal/transaction"
	"github.com/obsidianstack/forwarder/pkg/wire"
)

// --- test helpers -----------------------------------------------------------

// fakeQueue records submissions.
type fakeQueue struct {
	mu       sync.Mutex
	payloads []transaction.Payload
	err      error
}

func (q *fakeQueue) Submit(_ context.Context, p transaction.Payload) (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, q.err
	}
	q.payloads = append(q.payloads, p)
	return uint64(len(q.payloads)), nil
}

func (q *fakeQueue) Status(context.Context) (scheduler.Status, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return scheduler.Status{}, q.err
	}
	return scheduler.Status{Live: len(q.payloads), CheckPID: 77}, nil
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.payloads)
}

func post(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func signed(payload string) url.Values {
	return url.Values{
		wire.FieldPayload: {payload},
		wire.FieldHash:    {wire.Sign([]byte(payload))},
	}
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- POST /intake/ ----------------------------------------------------------

func TestIntake_Accepted(t *testing.T) {
	q := &fakeQueue{}
	m := metrics.New()
	h := intake.New(q, m)

	rr := post(t, h, "/intake/", signed(`{"host":"db-1","checks":[]}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["id"].(float64) != 1 {
		t.Errorf("id: got %v, want 1", resp["id"])
	}
	if q.len() != 1 || q.payloads[0]["host"] != "db-1" {
		t.Errorf("queued payloads: got %v", q.payloads)
	}
	if v := testutil.ToFloat64(m.IntakeRequests.WithLabelValues("accepted")); v != 1 {
		t.Errorf("accepted metric: got %v, want 1", v)
	}
}

func TestIntake_PathWithoutSlash(t *testing.T) {
	q := &fakeQueue{}
	rr := post(t, intake.New(q, metrics.New()), "/intake", signed(`{"a":1}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestIntake_Rejected(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"hash mismatch", url.Values{wire.FieldPayload: {`{"a":1}`}, wire.FieldHash: {"0123456789abcdef0123456789abcdef"}}},
		{"missing hash", url.Values{wire.FieldPayload: {`{"a":1}`}}},
		{"missing payload", url.Values{wire.FieldHash: {wire.Sign([]byte(`{"a":1}`))}}},
		{"invalid json", signed(`{"a":`)},
		{"not an object", signed(`"just a string"`)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := &fakeQueue{}
			m := metrics.New()
			rr := post(t, intake.New(q, m), "/intake/", tc.form)

			if rr.Code != http.StatusInternalServerError {
				t.Errorf("status: got %d, want 500", rr.Code)
			}
			if q.len() != 0 {
				t.Errorf("queue size: got %d, want 0", q.len())
			}
			if v := testutil.ToFloat64(m.IntakeRequests.WithLabelValues("rejected")); v != 1 {
				t.Errorf("rejected metric: got %v, want 1", v)
			}
		})
	}
}

func TestIntake_QueueUnavailable(t *testing.T) {
	q := &fakeQueue{err: scheduler.ErrStopped}
	rr := post(t, intake.New(q, metrics.New()), "/intake/", signed(`{"a":1}`))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rr.Code)
	}
}

func TestIntake_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	intake.New(&fakeQueue{}, metrics.New()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/intake/", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- GET /status, /metrics --------------------------------------------------

func TestStatus(t *testing.T) {
	q := &fakeQueue{}
	h := intake.New(q, metrics.New())
	post(t, h, "/intake/", signed(`{"a":1}`))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["live"].(float64) != 1 {
		t.Errorf("live: got %v, want 1", resp["live"])
	}
	if resp["check_pid"].(float64) != 77 {
		t.Errorf("check_pid: got %v, want 77", resp["check_pid"])
	}
	if _, ok := resp["transactions"].([]interface{}); !ok {
		t.Errorf("transactions: got %T, want array", resp["transactions"])
	}
}

func TestStatus_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"scheduler stopped", scheduler.ErrStopped},
		{"request cancelled", context.Canceled},
		{"other", errors.New("boom")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			intake.New(&fakeQueue{err: tc.err}, metrics.New()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
			if rr.Code != http.StatusServiceUnavailable {
				t.Errorf("status: got %d, want 503", rr.Code)
			}
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	rr := httptest.NewRecorder()
	intake.New(&fakeQueue{}, metrics.New()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "forwarder_queue_live_transactions") {
		t.Error("metrics output missing forwarder gauges")
	}
}

// --- end to end with a real scheduler ---------------------------------------

type idleChecks struct{}

func (idleChecks) Spawn(bool) error       { return nil }
func (idleChecks) Poll() supervisor.State { return supervisor.Idle }
func (idleChecks) PID() int               { return 0 }
func (idleChecks) Stop()                  {}

type recordingSender struct {
	mu  sync.Mutex
	ids []uint64
}

func (s *recordingSender) Send(_ context.Context, tr *transaction.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, tr.ID())
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func TestIntake_EndToEnd(t *testing.T) {
	sender := &recordingSender{}
	m := metrics.New()
	sched := scheduler.New(scheduler.Intervals{Check: time.Hour, Poll: time.Hour, Flush: time.Hour},
		transaction.NewQueue(), sender, idleChecks{}, scheduler.WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()
	defer func() { cancel(); <-done }()

	srv := httptest.NewServer(intake.New(sched, m))
	defer srv.Close()

	// A bad message never reaches the queue.
	bad := post(t, intake.New(sched, m), "/intake/", url.Values{wire.FieldPayload: {`{"a":1}`}, wire.FieldHash: {"nope"}})
	if bad.Code != http.StatusInternalServerError {
		t.Fatalf("bad message status: got %d, want 500", bad.Code)
	}

	c := wire.NewClient(srv.URL, time.Second)
	if err := c.Post(context.Background(), map[string]string{"check": "cpu"}); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	// The intake nudge alone flushes: the periodic timer is an hour away.
	deadline := time.Now().Add(2 * time.Second)
	for sender.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sender.count() != 1 {
		t.Fatalf("deliveries: got %d, want 1", sender.count())
	}
	st, err := sched.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Created != 1 {
		t.Errorf("created: got %d, want 1 (rejected message must not be queued)", st.Created)
	}
}

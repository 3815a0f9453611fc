package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.TransactionsCreated.Inc()

	if got := testutil.ToFloat64(a.TransactionsCreated); got != 1 {
		t.Errorf("a created: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.TransactionsCreated); got != 0 {
		t.Errorf("b created: got %v, want 0", got)
	}
}

func TestHandler_ExposesForwarderMetrics(t *testing.T) {
	m := New()
	m.QueueLive.Set(3)
	m.Deliveries.WithLabelValues("failure").Inc()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"forwarder_queue_live_transactions 3",
		`forwarder_delivery_attempts_total{result="failure"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

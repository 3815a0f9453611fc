package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/obsidianstack/forwarder/internal/config"
)

// nodeMetrics is a realistic subset of node_exporter output.
const nodeMetrics = `
# HELP node_load1 1m load average.
# TYPE node_load1 gauge
node_load1 0.42

# HELP node_network_receive_bytes_total Network device statistic receive_bytes.
# TYPE node_network_receive_bytes_total counter
node_network_receive_bytes_total{device="eth0"} 1.5e+06
node_network_receive_bytes_total{device="lo"} 500000

# HELP node_disk_io_time_seconds Disk IO latency.
# TYPE node_disk_io_time_seconds histogram
node_disk_io_time_seconds_bucket{le="0.1"} 7
node_disk_io_time_seconds_bucket{le="+Inf"} 12
node_disk_io_time_seconds_sum 1.9
node_disk_io_time_seconds_count 12

# TYPE node_weird gauge
node_weird NaN
`

func promServer(t *testing.T, body string, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPromCheck_SelectedMetrics(t *testing.T) {
	srv := promServer(t, nodeMetrics, http.StatusOK)
	c, err := newPromCheck(config.PrometheusCheck{
		ID:       "node",
		Endpoint: srv.URL,
		Metrics:  []string{"node_network_receive_bytes_total", "node_disk_io_time_seconds", "node_absent"},
	})
	if err != nil {
		t.Fatalf("newPromCheck() error = %v", err)
	}

	res := c.Run(context.Background())
	if res.Status != StatusOK || res.Error != "" {
		t.Fatalf("Run() status = %s err = %q, want ok", res.Status, res.Error)
	}
	if got := res.Values["node_network_receive_bytes_total"]; got != 2000000 {
		t.Errorf("receive bytes = %v, want 2000000", got)
	}
	if got := res.Values["node_disk_io_time_seconds"]; got != 12 {
		t.Errorf("histogram count = %v, want 12", got)
	}
	if got, ok := res.Values["node_absent"]; !ok || got != 0 {
		t.Errorf("absent family = %v (present %v), want 0", got, ok)
	}
	if _, ok := res.Values["node_load1"]; ok {
		t.Error("unselected family node_load1 reported")
	}
}

func TestPromCheck_AllMetrics(t *testing.T) {
	srv := promServer(t, nodeMetrics, http.StatusOK)
	c, _ := newPromCheck(config.PrometheusCheck{ID: "node", Endpoint: srv.URL})

	res := c.Run(context.Background())
	if got := res.Values["node_load1"]; got != 0.42 {
		t.Errorf("node_load1 = %v, want 0.42", got)
	}
	if _, ok := res.Values["node_weird"]; ok {
		t.Error("NaN value must be dropped, it cannot be encoded as JSON")
	}
	if len(res.Values) != 3 {
		t.Errorf("len(Values) = %d, want 3", len(res.Values))
	}
}

func TestPromCheck_Failures(t *testing.T) {
	tests := []struct {
		name string
		url  func(t *testing.T) string
		want string
	}{
		{"bad status", func(t *testing.T) string { return promServer(t, "", http.StatusServiceUnavailable).URL }, "unexpected status 503"},
		{"unparseable", func(t *testing.T) string { return promServer(t, "{not exposition", http.StatusOK).URL }, "parse prometheus text"},
		{"unreachable", func(t *testing.T) string {
			srv := promServer(t, "", http.StatusOK)
			srv.Close()
			return srv.URL
		}, "http get"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newPromCheck(config.PrometheusCheck{ID: "x", Endpoint: tc.url(t)})
			res := c.Run(context.Background())
			if res.Status != StatusError {
				t.Errorf("Status = %s, want error", res.Status)
			}
			if !strings.Contains(res.Error, tc.want) {
				t.Errorf("Error = %q, want it to contain %q", res.Error, tc.want)
			}
		})
	}
}

func TestNewPromCheck_RequiresEndpoint(t *testing.T) {
	if _, err := newPromCheck(config.PrometheusCheck{ID: "x"}); err == nil {
		t.Error("newPromCheck() with no endpoint = nil error")
	}
}

func TestSumFamily_Nil(t *testing.T) {
	if got := sumFamily(nil); got != 0 {
		t.Errorf("sumFamily(nil) = %v, want 0", got)
	}
}

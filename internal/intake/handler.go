package intake

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/obsidianstack/forwarder/internal/metrics"
	"github.com/obsidianstack/forwarder/internal/scheduler"
	"github.com/obsidianstack/forwarder/internal/transaction"
	"github.com/obsidianstack/forwarder/pkg/wire"
)

// maxBodyBytes caps an intake request body.
const maxBodyBytes = 16 << 20

// Queue is the part of the scheduler the endpoint talks to.
type Queue interface {
	Submit(ctx context.Context, p transaction.Payload) (uint64, error)
	Status(ctx context.Context) (scheduler.Status, error)
}

// Handler serves the loopback intake, status, and metrics routes.
type Handler struct {
	queue   Queue
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// New creates a Handler wired to q and registers all routes.
func New(q Queue, m *metrics.Metrics) http.Handler {
	h := &Handler{queue: q, metrics: m, mux: http.NewServeMux()}

	h.mux.HandleFunc("/intake", h.intake)
	h.mux.HandleFunc(wire.IntakePath, h.intake)
	h.mux.HandleFunc("/status", h.status)
	h.mux.Handle("/metrics", m.Handler())

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// intake handles POST /intake/.
// The 200 answer means "queued", not "delivered".
func (h *Handler) intake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw := r.FormValue(wire.FieldPayload)
	hash := r.FormValue(wire.FieldHash)

	doc, err := wire.Decode([]byte(raw), hash)
	if err != nil {
		slog.Error("intake: malformed message", "err", err, "bytes", len(raw))
		h.metrics.IntakeRequests.WithLabelValues("rejected").Inc()
		jsonErr(w, http.StatusInternalServerError, "malformed message")
		return
	}

	id, err := h.queue.Submit(r.Context(), transaction.Payload(doc))
	if err != nil {
		slog.Warn("intake: could not queue message", "err", err)
		h.metrics.IntakeRequests.WithLabelValues("unavailable").Inc()
		jsonErr(w, http.StatusServiceUnavailable, "forwarder not accepting data")
		return
	}

	h.metrics.IntakeRequests.WithLabelValues("accepted").Inc()
	jsonResp(w, http.StatusOK, acceptedResponse{ID: id})
}

// status handles GET /status.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	st, err := h.queue.Status(r.Context())
	if err != nil {
		slog.Warn("intake: status unavailable", "err", err)
		jsonErr(w, http.StatusServiceUnavailable, "forwarder status unavailable")
		return
	}
	if st.Transactions == nil {
		st.Transactions = []scheduler.TransactionStatus{}
	}
	jsonResp(w, http.StatusOK, st)
}

// --- helpers ----------------------------------------------------------------

type acceptedResponse struct {
	ID uint64 `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

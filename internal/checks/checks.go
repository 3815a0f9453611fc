package checks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/forwarder/internal/config"
	"github.com/obsidianstack/forwarder/internal/hostinfo"
)

// Status values carried by Result.Status.
const (
	StatusOK          = "ok"
	StatusError       = "error"
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

// Result is the outcome of one check.
type Result struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Status string `json:"status"`

	// Values holds numeric readings keyed by metric name.
	Values map[string]float64 `json:"values,omitempty"`

	// Cert is set by tls checks that reached the endpoint.
	Cert *CertStatus `json:"cert,omitempty"`

	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report is the payload a check process posts to the intake.
type Report struct {
	RunID       string          `json:"run_id"`
	CollectedAt time.Time       `json:"collected_at"`
	Host        *hostinfo.Facts `json:"host,omitempty"`
	Checks      []Result        `json:"checks"`
}

// Check is one unit of measurement.
type Check interface {
	ID() string
	Run(ctx context.Context) Result
}

// Poster delivers a report. *wire.Client satisfies it.
type Poster interface {
	Post(ctx context.Context, v any) error
}

// Runner executes a fixed set of checks and posts their report.
type Runner struct {
	checks  []Check
	poster  Poster
	timeout time.Duration
	version string
	now     func() time.Time
}

// New builds a Runner for every check listed in cfg.
func New(cfg config.ChecksConfig, p Poster, version string) (*Runner, error) {
	var list []Check
	for _, c := range cfg.Prometheus {
		pc, err := newPromCheck(c)
		if err != nil {
			return nil, fmt.Errorf("checks: %q: %w", c.ID, err)
		}
		list = append(list, pc)
	}
	for _, c := range cfg.TLS {
		list = append(list, newTLSCheck(c))
	}
	return NewRunner(list, p, cfg.Timeout, version), nil
}

// NewRunner builds a Runner over an explicit check list.
func NewRunner(list []Check, p Poster, timeout time.Duration, version string) *Runner {
	return &Runner{
		checks:  list,
		poster:  p,
		timeout: timeout,
		version: version,
		now:     time.Now,
	}
}

// Run executes all checks concurrently, then posts one Report. The checks
// are bounded by the configured timeout; checks still pending at the
// deadline report their own context error. The post runs on ctx, outside
// that deadline, so a hung check still gets its report delivered.
func (r *Runner) Run(ctx context.Context, firstRun bool) error {
	checkCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	rep := Report{
		RunID:       uuid.NewString(),
		CollectedAt: r.now().UTC(),
		Checks:      make([]Result, len(r.checks)),
	}
	if firstRun {
		facts := hostinfo.Collect(r.version)
		rep.Host = &facts
	}

	var g errgroup.Group
	for i, c := range r.checks {
		i, c := i, c
		g.Go(func() error {
			start := r.now()
			res := c.Run(checkCtx)
			res.Duration = r.now().Sub(start)
			rep.Checks[i] = res
			if res.Error != "" {
				slog.Warn("checks: check failed", "run_id", rep.RunID, "check", c.ID(), "err", res.Error)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := r.poster.Post(ctx, rep); err != nil {
		return fmt.Errorf("checks: post report %s: %w", rep.RunID, err)
	}
	slog.Info("checks: report posted",
		"run_id", rep.RunID,
		"checks", len(rep.Checks),
		"first_run", firstRun,
	)
	return nil
}

package checks

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/forwarder/internal/config"
)

const (
	defaultScrapeTimeout = 10 * time.Second
	maxScrapeBytes       = 32 << 20
)

// promCheck scrapes one exposition endpoint and reports the total of every
// selected metric family.
type promCheck struct {
	cfg    config.PrometheusCheck
	client *http.Client
}

func newPromCheck(c config.PrometheusCheck) (*promCheck, error) {
	if c.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	return &promCheck{
		cfg: c,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: c.InsecureSkipVerify, //nolint:gosec // user-configured
				},
			},
			Timeout: defaultScrapeTimeout,
		},
	}, nil
}

func (p *promCheck) ID() string { return p.cfg.ID }

// Run fetches the endpoint and sums each family listed in the check's
// metrics (all families when the list is empty). A listed family absent
// from the scrape reports 0.
func (p *promCheck) Run(ctx context.Context) Result {
	res := Result{ID: p.cfg.ID, Type: "prometheus"}

	mfs, err := fetchMetrics(ctx, p.client, p.cfg.Endpoint)
	if err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}

	names := p.cfg.Metrics
	if len(names) == 0 {
		for name := range mfs {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	res.Values = make(map[string]float64, len(names))
	for _, name := range names {
		v := sumFamily(mfs[name])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		res.Values[name] = v
	}
	res.Status = StatusOK
	return res
}

// fetchMetrics scrapes url as plain-text exposition. Bodies beyond
// maxScrapeBytes are cut off, which leaves a partial parse.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return parseMetrics(io.LimitReader(resp.Body, maxScrapeBytes))
}

// parseMetrics decodes a text exposition. A partial parse that yielded at
// least one family counts as success.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up every sample of mf. Histograms and summaries contribute
// their observation counts. A nil family sums to 0.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		case m.Histogram != nil:
			total += float64(m.Histogram.GetSampleCount())
		case m.Summary != nil:
			total += float64(m.Summary.GetSampleCount())
		}
	}
	return total
}

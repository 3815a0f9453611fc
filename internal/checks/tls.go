package checks

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/obsidianstack/forwarder/internal/config"
)

const (
	dialTimeout    = 10 * time.Second
	expiryWarnDays = 30
)

// CertStatus describes an endpoint's leaf certificate.
type CertStatus struct {
	Endpoint string `json:"endpoint"`
	Subject  string `json:"subject"`
	Issuer   string `json:"issuer"`
	NotAfter string `json:"not_after"`
	DaysLeft int    `json:"days_left"`
}

type tlsCheck struct {
	cfg config.TLSCheck
	now func() time.Time
}

func newTLSCheck(c config.TLSCheck) *tlsCheck {
	return &tlsCheck{cfg: c, now: time.Now}
}

func (c *tlsCheck) ID() string { return c.cfg.ID }

// Run dials the endpoint and classifies its leaf certificate as valid,
// expiring (30 days or fewer left) or expired.
func (c *tlsCheck) Run(ctx context.Context) Result {
	res := Result{ID: c.cfg.ID, Type: "tls"}

	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil || u.Scheme != "https" {
		res.Status = StatusError
		res.Error = "endpoint is not an https URL"
		return res
	}
	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: c.cfg.InsecureSkipVerify, //nolint:gosec
		},
	}
	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		res.Status = StatusUnreachable
		res.Error = err.Error()
		return res
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peers := conn.ConnectionState().PeerCertificates
	if len(peers) == 0 {
		res.Status = StatusUnreachable
		res.Error = "no peer certificate"
		return res
	}

	leaf := peers[0]
	daysLeft := leaf.NotAfter.Sub(c.now()).Hours() / 24
	res.Cert = &CertStatus{
		Endpoint: c.cfg.Endpoint,
		Subject:  leaf.Subject.CommonName,
		Issuer:   leaf.Issuer.CommonName,
		NotAfter: leaf.NotAfter.UTC().Format(time.RFC3339),
		DaysLeft: int(math.Floor(daysLeft)),
	}
	res.Values = map[string]float64{"days_left": math.Floor(daysLeft)}
	res.Status = classifyExpiry(daysLeft)
	return res
}

func classifyExpiry(daysLeft float64) string {
	switch {
	case daysLeft <= 0:
		return StatusExpired
	case daysLeft <= expiryWarnDays:
		return StatusExpiring
	default:
		return StatusValid
	}
}

package wire

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // integrity checksum, not a security boundary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Form field names carried by every intake request.
const (
	FieldPayload = "payload"
	FieldHash    = "hash"
)

// IntakePath is the route served by the forwarder and the remote collector.
const IntakePath = "/intake/"

var (
	// ErrHashMismatch is returned by Decode when the digest does not match.
	ErrHashMismatch = errors.New("wire: payload hash mismatch")

	// ErrNotObject is returned by Decode when the payload is valid JSON but
	// not a JSON object.
	ErrNotObject = errors.New("wire: payload is not a JSON object")
)

// Sign returns the hex MD5 digest of payload.
func Sign(payload []byte) string {
	sum := md5.Sum(payload) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Decode verifies payload against hash and parses it into a JSON object.
// Digest comparison is case-insensitive on the hex encoding.
func Decode(payload []byte, hash string) (map[string]any, error) {
	if got := Sign(payload); !strings.EqualFold(got, hash) {
		return nil, fmt.Errorf("%w: computed %s, got %q", ErrHashMismatch, got, hash)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("wire: decode payload: %w", err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return obj, nil
}

// Encode marshals v and returns the form values for an intake request.
func Encode(v any) (url.Values, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode payload: %w", err)
	}
	return url.Values{
		FieldPayload: {string(raw)},
		FieldHash:    {Sign(raw)},
	}, nil
}

// Client posts payloads to a forwarder intake endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client targeting baseURL (e.g. http://127.0.0.1:17123).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Post encodes v and submits it. Any non-2xx answer is an error.
func (c *Client) Post(ctx context.Context, v any) error {
	form, err := Encode(v)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+IntakePath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("wire: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("wire: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("wire: intake answered %d", resp.StatusCode)
	}
	return nil
}

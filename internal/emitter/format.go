package emitter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/klauspost/compress/zlib"

	"github.com/obsidianstack/forwarder/internal/transaction"
)

// Formatter serializes a transaction payload into a request body plus the
// headers that describe it.
type Formatter interface {
	Format(p transaction.Payload) ([]byte, http.Header, error)
}

// JSONFormatter encodes payloads as JSON, optionally deflated.
type JSONFormatter struct {
	Compress bool
}

// Format implements Formatter.
func (f JSONFormatter) Format(p transaction.Payload) ([]byte, http.Header, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, nil, fmt.Errorf("emitter: marshal payload: %w", err)
	}

	h := make(http.Header)
	h.Set("Content-Type", "application/json")
	if !f.Compress {
		return raw, h, nil
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, nil, fmt.Errorf("emitter: deflate payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("emitter: deflate payload: %w", err)
	}
	h.Set("Content-Encoding", "deflate")
	return buf.Bytes(), h, nil
}

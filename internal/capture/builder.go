package capture

import (
	"bytes"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/sliink/capture/internal/model"
)

// FlowRequest is the request half of a flow event as delivered by the
// interception host: already parsed, body as raw bytes.
type FlowRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Host    string            `json:"host,omitempty"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body,omitempty"`
}

// FlowResponse is the response half of a flow event.
type FlowResponse struct {
	StatusCode int               `json:"status_code"`
	URL        string            `json:"url"`
	Host       string            `json:"host,omitempty"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body,omitempty"`
}

// Builder normalizes raw flow events into canonical log records. Building is
// total: malformed or binary payloads degrade to a best-effort string, never
// an error. The clock is injectable so tests can pin timestamps.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a builder using the system clock.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// NewBuilderWithClock creates a builder with a fixed clock source.
func NewBuilderWithClock(now func() time.Time) *Builder {
	return &Builder{now: now}
}

// BuildRequest turns an observed request into a log record.
func (b *Builder) BuildRequest(ev FlowRequest) model.LogRecord {
	ts := b.now()
	return model.LogRecord{
		ID:        newRecordID(ts),
		Timestamp: ts,
		Kind:      model.RequestKind,
		Method:    ev.Method,
		URL:       ev.URL,
		Headers:   copyHeaders(ev.Headers),
		Body:      decodeBody(ev.Body, ev.Headers),
		Host:      hostOf(ev.Host, ev.URL),
	}
}

// BuildResponse turns an observed response into a log record.
func (b *Builder) BuildResponse(ev FlowResponse) model.LogRecord {
	ts := b.now()
	return model.LogRecord{
		ID:         newRecordID(ts),
		Timestamp:  ts,
		Kind:       model.ResponseKind,
		StatusCode: ev.StatusCode,
		URL:        ev.URL,
		Headers:    copyHeaders(ev.Headers),
		Body:       decodeBody(ev.Body, ev.Headers),
		Host:       hostOf(ev.Host, ev.URL),
	}
}

// newRecordID builds a time-based identifier with a random suffix. The
// suffix keeps IDs unique under concurrent writers hitting the same second.
func newRecordID(ts time.Time) string {
	return ts.UTC().Format("20060102_150405") + "_" + uuid.NewString()[:8]
}

// decodeBody turns raw payload bytes into a readable string. Gzip-encoded
// bodies are inflated first; invalid UTF-8 is replaced rather than rejected.
func decodeBody(body []byte, headers map[string]string) string {
	if len(body) == 0 {
		return ""
	}
	if strings.Contains(strings.ToLower(headerValue(headers, "Content-Encoding")), "gzip") {
		if inflated, ok := gunzip(body); ok {
			body = inflated
		}
	}
	return strings.ToValidUTF8(string(body), "�")
}

func gunzip(data []byte) ([]byte, bool) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, false
	}
	return out, true
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func copyHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}

// hostOf prefers the destination host reported by the interception runtime
// and falls back to the URL's host component.
func hostOf(host, rawURL string) string {
	if host != "" {
		return host
	}
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return "unknown"
}

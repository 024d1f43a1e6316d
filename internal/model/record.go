package model

import (
	"strings"
	"time"
)

// RecordKind distinguishes the two sides of a captured flow.
type RecordKind string

const (
	// RequestKind marks a record built from an observed request
	RequestKind RecordKind = "request"
	// ResponseKind marks a record built from an observed response
	ResponseKind RecordKind = "response"
)

// LogRecord is the canonical unit of captured traffic. A record is built once
// at capture time, persisted once, and never mutated afterwards. The JSON
// layout matches the stored object body: timestamp, type, method or
// status_code, url, headers, content; id and host ride along so a record can
// be reconstructed without its object key.
type LogRecord struct {
	ID         string            `json:"id,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Kind       RecordKind        `json:"type"`
	Method     string            `json:"method,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"content"`
	Host       string            `json:"host,omitempty"`
}

// IsRequest reports whether the record captures the request side of a flow.
func (r LogRecord) IsRequest() bool {
	return r.Kind == RequestKind
}

// IsResponse reports whether the record captures the response side of a flow.
func (r LogRecord) IsResponse() bool {
	return r.Kind == ResponseKind
}

// Header performs a case-insensitive header lookup.
func (r LogRecord) Header(name string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// URLContains reports whether the record URL contains the given fragment,
// ignoring case.
func (r LogRecord) URLContains(fragment string) bool {
	return strings.Contains(strings.ToLower(r.URL), strings.ToLower(fragment))
}

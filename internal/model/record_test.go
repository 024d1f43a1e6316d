package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRecordRoundTrip(t *testing.T) {
	original := LogRecord{
		ID:        "20250814_103000_a1b2c3d4",
		Timestamp: time.Date(2025, 8, 14, 10, 30, 0, 0, time.UTC),
		Kind:      RequestKind,
		Method:    "POST",
		URL:       "https://api.anthropic.com/v1/messages",
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer sk-ant-oat01-secret",
		},
		Body: `{"model":"claude-sonnet-4"}`,
		Host: "api.anthropic.com",
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded LogRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestLogRecordStoredLayout(t *testing.T) {
	rec := LogRecord{
		Timestamp:  time.Date(2025, 8, 14, 10, 30, 0, 0, time.UTC),
		Kind:       ResponseKind,
		StatusCode: 200,
		URL:        "https://api.anthropic.com/v1/messages",
		Headers:    map[string]string{},
		Body:       "",
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))

	assert.Equal(t, "response", fields["type"])
	assert.Equal(t, float64(200), fields["status_code"])
	assert.Contains(t, fields, "timestamp")
	assert.Contains(t, fields, "url")
	assert.Contains(t, fields, "headers")
	assert.Contains(t, fields, "content")

	// request-only and optional fields stay out of a response record
	assert.NotContains(t, fields, "method")
	assert.NotContains(t, fields, "id")
	assert.NotContains(t, fields, "host")
}

func TestLogRecordHeader(t *testing.T) {
	rec := LogRecord{Headers: map[string]string{
		"Content-Type":                       "text/event-stream",
		"Anthropic-Ratelimit-Unified-Status": "allowed",
	}}

	ct, ok := rec.Header("content-type")
	assert.True(t, ok)
	assert.Equal(t, "text/event-stream", ct)

	status, ok := rec.Header("ANTHROPIC-RATELIMIT-UNIFIED-STATUS")
	assert.True(t, ok)
	assert.Equal(t, "allowed", status)

	missing, ok := rec.Header("x-missing")
	assert.False(t, ok)
	assert.Equal(t, "", missing)
}

func TestLogRecordURLContains(t *testing.T) {
	rec := LogRecord{URL: "https://Console.Anthropic.com/v1/OAuth/token"}

	assert.True(t, rec.URLContains("oauth/token"))
	assert.True(t, rec.URLContains("console.anthropic.com"))
	assert.False(t, rec.URLContains("/v1/messages"))
}

func TestRecordKindPredicates(t *testing.T) {
	assert.True(t, LogRecord{Kind: RequestKind}.IsRequest())
	assert.False(t, LogRecord{Kind: RequestKind}.IsResponse())
	assert.True(t, LogRecord{Kind: ResponseKind}.IsResponse())
}

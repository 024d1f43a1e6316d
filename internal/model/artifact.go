package model

// CorrelatedPair joins a request record with the response matched to it by
// timestamp ordering. Pairs are views derived on each analysis run; they are
// never persisted. Response is nil when no qualifying response was found.
type CorrelatedPair struct {
	Request  LogRecord  `json:"request"`
	Response *LogRecord `json:"response,omitempty"`
}

// Matched reports whether the pair found a qualifying response.
func (p CorrelatedPair) Matched() bool {
	return p.Response != nil
}

// TokenArtifact is an access/refresh credential pair extracted from a
// token-exchange response, plus whatever optional metadata the response
// carried. Optional fields are left zero valued when absent, never invented.
type TokenArtifact struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	ExpiresIn      int    `json:"expires_in,omitempty"`
	Scope          string `json:"scope,omitempty"`
	Organization   string `json:"organization,omitempty"`
	Account        string `json:"account,omitempty"`
	SourceRecordID string `json:"source_record_id,omitempty"`
}

// UsageSummary is the per-response telemetry extracted from an inference
// response: token usage counters, the responding model, and any rate-limit
// headers. For bodies that are not JSON (streaming responses, binary
// payloads) only ContentLength is populated.
type UsageSummary struct {
	RecordID         string            `json:"record_id"`
	Model            string            `json:"model,omitempty"`
	Usage            map[string]int64  `json:"usage,omitempty"`
	RateLimitHeaders map[string]string `json:"rate_limit_headers,omitempty"`
	ContentLength    int               `json:"content_length"`
}

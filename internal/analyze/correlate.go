// Package analyze reconstructs request/response pairs from an unordered
// record set and extracts usage telemetry and token artifacts. Every pass
// is a pure function over an immutable snapshot: running one twice yields
// identical output.
package analyze

import (
	"sort"
	"time"

	"github.com/sliink/capture/internal/model"
)

// URL families with distinct correlation policies.
const (
	// InferenceURLFragment identifies inference calls.
	InferenceURLFragment = "/v1/messages"
	// TokenURLFragment identifies OAuth token exchanges.
	TokenURLFragment = "oauth/token"
)

// DefaultTokenWindow bounds request/response matching for token exchanges.
// Inference correlation is unbounded-nearest; token exchanges are short
// lived and a late response is more likely a different exchange.
const DefaultTokenWindow = 5 * time.Second

// CorrelateOptions selects the URL family and matching window.
type CorrelateOptions struct {
	// URLContains filters records to one URL family, matched case
	// insensitively.
	URLContains string
	// Window is the maximum response delay to accept; zero means
	// unbounded-nearest.
	Window time.Duration
}

// Correlate reconstructs request/response pairs within one URL family. For
// each request the response with the smallest positive timestamp delta
// wins, subject to the window; equally eligible responses tie-break to the
// earliest. This is greedy nearest-neighbor matching, not optimal bipartite
// matching: in a non-pipelined logging discipline each request has at most
// one response, so the greedy answer is the right one.
func Correlate(records []model.LogRecord, opts CorrelateOptions) []model.CorrelatedPair {
	var requests, responses []model.LogRecord
	for _, rec := range records {
		if opts.URLContains != "" && !rec.URLContains(opts.URLContains) {
			continue
		}
		switch {
		case rec.IsRequest():
			requests = append(requests, rec)
		case rec.IsResponse():
			responses = append(responses, rec)
		}
	}

	sortRecords(requests)
	sortRecords(responses)

	pairs := make([]model.CorrelatedPair, 0, len(requests))
	for _, req := range requests {
		pairs = append(pairs, model.CorrelatedPair{
			Request:  req,
			Response: nearestResponse(req, responses, opts.Window),
		})
	}
	return pairs
}

// nearestResponse finds the earliest response strictly after the request
// within the window, or nil. Responses are pre-sorted by timestamp, so the
// first qualifying one is also the nearest.
func nearestResponse(req model.LogRecord, responses []model.LogRecord, window time.Duration) *model.LogRecord {
	for i := range responses {
		resp := responses[i]
		if !resp.Timestamp.After(req.Timestamp) {
			continue
		}
		if window > 0 && resp.Timestamp.Sub(req.Timestamp) > window {
			return nil
		}
		matched := resp
		return &matched
	}
	return nil
}

// UnmatchedResponses returns the responses in the URL family that no pair
// claimed.
func UnmatchedResponses(records []model.LogRecord, opts CorrelateOptions, pairs []model.CorrelatedPair) []model.LogRecord {
	claimed := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		if p.Matched() {
			claimed[p.Response.ID] = true
		}
	}

	var out []model.LogRecord
	for _, rec := range records {
		if !rec.IsResponse() || claimed[rec.ID] {
			continue
		}
		if opts.URLContains != "" && !rec.URLContains(opts.URLContains) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// sortRecords orders by timestamp, then ID so equal timestamps stay
// deterministic.
func sortRecords(records []model.LogRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].ID < records[j].ID
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}

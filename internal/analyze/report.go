package analyze

import (
	"fmt"
	"io"
	"time"

	"github.com/sliink/capture/internal/model"
)

// TelemetryURLFragment identifies telemetry batch traffic.
const TelemetryURLFragment = "statsig"

// Report is the exit surface of an analysis run: counts of what was
// considered and what failed to parse, correlated pairs with literal
// timestamps, and extracted artifacts. Secrets stay complete inside the
// struct for programmatic consumers; the renderer truncates them.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`

	Considered int `json:"considered"`
	Malformed  int `json:"malformed"`

	Inference          []model.CorrelatedPair `json:"inference,omitempty"`
	Usage              []model.UsageSummary   `json:"usage,omitempty"`
	UnmatchedResponses int                    `json:"unmatched_responses"`

	Tokens []model.TokenArtifact `json:"tokens,omitempty"`
	Latest *model.TokenArtifact  `json:"latest,omitempty"`

	AuthPatterns []string       `json:"auth_patterns,omitempty"`
	UserAgents   []string       `json:"user_agents,omitempty"`
	Telemetry    map[string]int `json:"telemetry,omitempty"`
}

// BuildReport runs every analysis pass over a decoded snapshot.
func BuildReport(records []model.LogRecord, scan model.ScanStats) Report {
	inferenceOpts := CorrelateOptions{URLContains: InferenceURLFragment}
	inference := Correlate(records, inferenceOpts)

	report := Report{
		GeneratedAt:        time.Now().UTC(),
		Considered:         scan.Scanned,
		Malformed:          scan.Malformed,
		Inference:          inference,
		Usage:              ExtractUsage(records, InferenceURLFragment),
		UnmatchedResponses: len(UnmatchedResponses(records, inferenceOpts, inference)),
		Tokens:             ExtractTokenArtifacts(records),
		AuthPatterns:       AuthPatterns(records),
		UserAgents:         UserAgents(records),
	}

	if telemetry := CountTelemetryEvents(records, TelemetryURLFragment); len(telemetry) > 0 {
		report.Telemetry = telemetry
	}
	if latest := LatestExchange(TokenExchanges(records)); latest != nil {
		report.Latest = latest.Artifact
	}
	return report
}

// Render writes the report as text, truncating every secret for display.
func (r Report) Render(w io.Writer) {
	fmt.Fprintf(w, "considered %d records, failed to parse %d\n", r.Considered, r.Malformed)
	fmt.Fprintf(w, "inference pairs: %d (unmatched responses: %d)\n", len(r.Inference), r.UnmatchedResponses)

	for i, pair := range r.Inference {
		fmt.Fprintf(w, "  pair %d: request %s at %s", i+1, pair.Request.ID, pair.Request.Timestamp.Format(time.RFC3339))
		if pair.Matched() {
			fmt.Fprintf(w, " -> response %s at %s (status %d)\n",
				pair.Response.ID, pair.Response.Timestamp.Format(time.RFC3339), pair.Response.StatusCode)
		} else {
			fmt.Fprintln(w, " -> unmatched")
		}
	}

	for _, u := range r.Usage {
		fmt.Fprintf(w, "  usage %s: model=%s usage=%v ratelimit=%v length=%d\n",
			u.RecordID, u.Model, u.Usage, u.RateLimitHeaders, u.ContentLength)
	}

	fmt.Fprintf(w, "token artifacts: %d\n", len(r.Tokens))
	for _, t := range r.Tokens {
		fmt.Fprintf(w, "  %s: access=%s refresh=%s", t.SourceRecordID, Truncate(t.AccessToken), Truncate(t.RefreshToken))
		if t.ExpiresIn > 0 {
			fmt.Fprintf(w, " expires_in=%ds", t.ExpiresIn)
		}
		if t.Scope != "" {
			fmt.Fprintf(w, " scope=%q", t.Scope)
		}
		if t.Organization != "" {
			fmt.Fprintf(w, " org=%q", t.Organization)
		}
		if t.Account != "" {
			fmt.Fprintf(w, " account=%q", t.Account)
		}
		fmt.Fprintln(w)
	}

	if r.Latest != nil {
		fmt.Fprintf(w, "latest exchange: %s (access=%s)\n", r.Latest.SourceRecordID, Truncate(r.Latest.AccessToken))
	}
	if len(r.AuthPatterns) > 0 {
		fmt.Fprintf(w, "auth patterns: %v\n", r.AuthPatterns)
	}
	if len(r.UserAgents) > 0 {
		fmt.Fprintf(w, "user agents: %v\n", r.UserAgents)
	}
	for name, count := range r.Telemetry {
		fmt.Fprintf(w, "telemetry %s: %d\n", name, count)
	}
}

// Truncate shortens a secret to its first 20 characters for display.
func Truncate(secret string) string {
	if len(secret) <= 20 {
		return secret
	}
	return secret[:20] + "..."
}

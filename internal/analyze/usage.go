package analyze

import (
	"sort"
	"strings"

	"github.com/valyala/fastjson"

	"github.com/sliink/capture/internal/model"
)

// ExtractUsage summarizes token usage and rate-limit telemetry from
// response records in the given URL family. It never fails on a non-JSON
// body: streaming and binary payloads fall back to a payload-length-only
// summary.
func ExtractUsage(records []model.LogRecord, urlContains string) []model.UsageSummary {
	var summaries []model.UsageSummary
	for _, rec := range records {
		if !rec.IsResponse() {
			continue
		}
		if urlContains != "" && !rec.URLContains(urlContains) {
			continue
		}

		summary := model.UsageSummary{
			RecordID:         rec.ID,
			RateLimitHeaders: rateLimitHeaders(rec.Headers),
			ContentLength:    len(rec.Body),
		}

		// Server-sent event streams carry usage inside the stream, not as
		// one JSON document; report length only.
		if !strings.HasPrefix(rec.Body, "event:") {
			if body, err := fastjson.Parse(rec.Body); err == nil {
				summary.Model = string(body.GetStringBytes("model"))
				summary.Usage = usageCounters(body.GetObject("usage"))
			}
		}

		if summary.Model == "" && summary.Usage == nil && len(summary.RateLimitHeaders) == 0 {
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// usageCounters flattens the numeric fields of a usage object.
func usageCounters(obj *fastjson.Object) map[string]int64 {
	if obj == nil {
		return nil
	}
	counters := make(map[string]int64)
	obj.Visit(func(key []byte, v *fastjson.Value) {
		if v.Type() == fastjson.TypeNumber {
			counters[string(key)] = v.GetInt64()
		}
	})
	if len(counters) == 0 {
		return nil
	}
	return counters
}

// rateLimitHeaders picks out the headers carrying rate-limit telemetry.
func rateLimitHeaders(headers map[string]string) map[string]string {
	var out map[string]string
	for name, value := range headers {
		if strings.Contains(strings.ToLower(name), "ratelimit") {
			if out == nil {
				out = make(map[string]string)
			}
			out[name] = value
		}
	}
	return out
}

// AuthPatterns summarizes the authorization schemes seen across request
// records, with credentials reduced to their family prefix so the summary
// never reproduces a secret.
func AuthPatterns(records []model.LogRecord) []string {
	set := make(map[string]bool)
	for _, rec := range records {
		if !rec.IsRequest() {
			continue
		}
		auth, ok := rec.Header("authorization")
		if !ok || auth == "" {
			continue
		}
		set[authPattern(auth)] = true
	}
	return sortedKeys(set)
}

// authPattern reduces "Bearer sk-ant-oat01-..." to "Bearer sk-ant-oat01-*".
func authPattern(auth string) string {
	scheme, credential, found := strings.Cut(auth, " ")
	if !found {
		return "*"
	}
	segments := strings.Split(credential, "-")
	if len(segments) >= 3 {
		return scheme + " " + strings.Join(segments[:3], "-") + "-*"
	}
	return scheme + " *"
}

// UserAgents collects the distinct user-agent strings across request
// records.
func UserAgents(records []model.LogRecord) []string {
	set := make(map[string]bool)
	for _, rec := range records {
		if !rec.IsRequest() {
			continue
		}
		if ua, ok := rec.Header("user-agent"); ok && ua != "" {
			set[ua] = true
		}
	}
	return sortedKeys(set)
}

// CountTelemetryEvents tallies event names from telemetry batch requests
// whose URL matches the given fragment (statsig-style bodies with an
// events array of eventName entries).
func CountTelemetryEvents(records []model.LogRecord, urlContains string) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		if !rec.IsRequest() || !rec.URLContains(urlContains) {
			continue
		}
		body, err := fastjson.Parse(rec.Body)
		if err != nil {
			continue
		}
		for _, ev := range body.GetArray("events") {
			name := string(ev.GetStringBytes("eventName"))
			if name == "" {
				name = "unknown"
			}
			counts[name]++
		}
	}
	return counts
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

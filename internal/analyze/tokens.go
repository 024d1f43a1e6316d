package analyze

import (
	"github.com/valyala/fastjson"

	"github.com/sliink/capture/internal/model"
)

// ExtractTokenArtifacts scans response records for completed token
// exchanges. A record qualifies only when its URL is in the token-exchange
// family AND its decoded JSON body holds BOTH an access token and a refresh
// token; a body missing either is not a match. Optional fields are copied
// when present and left empty otherwise.
func ExtractTokenArtifacts(records []model.LogRecord) []model.TokenArtifact {
	var artifacts []model.TokenArtifact
	for _, rec := range records {
		if art := tokenArtifact(rec); art != nil {
			artifacts = append(artifacts, *art)
		}
	}
	return artifacts
}

// tokenArtifact extracts an artifact from one record, or nil.
func tokenArtifact(rec model.LogRecord) *model.TokenArtifact {
	if !rec.IsResponse() || !rec.URLContains(TokenURLFragment) {
		return nil
	}

	body, err := fastjson.Parse(rec.Body)
	if err != nil {
		return nil
	}
	if !body.Exists("access_token") || !body.Exists("refresh_token") {
		return nil
	}

	return &model.TokenArtifact{
		AccessToken:    string(body.GetStringBytes("access_token")),
		RefreshToken:   string(body.GetStringBytes("refresh_token")),
		ExpiresIn:      body.GetInt("expires_in"),
		Scope:          string(body.GetStringBytes("scope")),
		Organization:   string(body.GetStringBytes("organization", "name")),
		Account:        string(body.GetStringBytes("account", "email_address")),
		SourceRecordID: rec.ID,
	}
}

// TokenExchange is one correlated token exchange with its extracted
// artifact, when the response yielded one.
type TokenExchange struct {
	Pair     model.CorrelatedPair
	Artifact *model.TokenArtifact
}

// TokenExchanges correlates token-exchange requests with their responses
// inside the default token window and attaches extracted artifacts.
func TokenExchanges(records []model.LogRecord) []TokenExchange {
	pairs := Correlate(records, CorrelateOptions{
		URLContains: TokenURLFragment,
		Window:      DefaultTokenWindow,
	})

	exchanges := make([]TokenExchange, 0, len(pairs))
	for _, pair := range pairs {
		ex := TokenExchange{Pair: pair}
		if pair.Matched() {
			ex.Artifact = tokenArtifact(*pair.Response)
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges
}

// LatestExchange picks the exchange whose request has the maximum
// timestamp, preferring one with a matched response over one without on
// equal timestamps. Returns nil when no exchange exists.
func LatestExchange(exchanges []TokenExchange) *TokenExchange {
	var latest *TokenExchange
	for i := range exchanges {
		ex := &exchanges[i]
		if latest == nil {
			latest = ex
			continue
		}
		ts, latestTS := ex.Pair.Request.Timestamp, latest.Pair.Request.Timestamp
		switch {
		case ts.After(latestTS):
			latest = ex
		case ts.Equal(latestTS) && ex.Pair.Matched() && !latest.Pair.Matched():
			latest = ex
		}
	}
	return latest
}

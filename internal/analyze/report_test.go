package analyze

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sliink/capture/internal/model"
)

func TestBuildReport(t *testing.T) {
	records := []model.LogRecord{
		tokenRequest("token-req", 0),
		tokenResponse("token-resp", 1*time.Second, fullTokenBody),
		inferenceRequest("inf-req", 0),
	}
	scan := model.ScanStats{Scanned: 4, Parsed: 3, Malformed: 1}

	report := BuildReport(records, scan)

	assert.Equal(t, 4, report.Considered)
	assert.Equal(t, 1, report.Malformed)

	// the lone inference request stays unmatched; the token response is
	// not part of the inference family
	require.Len(t, report.Inference, 1)
	assert.Equal(t, "inf-req", report.Inference[0].Request.ID)
	assert.False(t, report.Inference[0].Matched())
	assert.Zero(t, report.UnmatchedResponses)

	require.Len(t, report.Tokens, 1)
	assert.Equal(t, "token-resp", report.Tokens[0].SourceRecordID)

	require.NotNil(t, report.Latest)
	assert.Equal(t, "token-resp", report.Latest.SourceRecordID)

	assert.False(t, report.GeneratedAt.IsZero())
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil, model.ScanStats{})

	assert.Zero(t, report.Considered)
	assert.Empty(t, report.Inference)
	assert.Empty(t, report.Tokens)
	assert.Nil(t, report.Latest)
	assert.Zero(t, report.UnmatchedResponses)
}

func TestReportRenderTruncatesSecrets(t *testing.T) {
	records := []model.LogRecord{
		tokenRequest("token-req", 0),
		tokenResponse("token-resp", 1*time.Second, fullTokenBody),
	}

	report := BuildReport(records, model.ScanStats{Scanned: 2, Parsed: 2})

	var buf bytes.Buffer
	report.Render(&buf)
	out := buf.String()

	assert.Contains(t, out, "considered 2 records, failed to parse 0")
	assert.Contains(t, out, "sk-ant-oat01-aaaaaaa...")
	assert.NotContains(t, out, "sk-ant-REDACTED")
	assert.NotContains(t, out, "sk-ant-REDACTED")
	assert.Contains(t, out, "expires_in=3600s")
	assert.Contains(t, out, `scope="user:inference"`)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short"))
	assert.Equal(t, "exactly-twenty-chars", Truncate("exactly-twenty-chars"))
	assert.Equal(t, "exactly-twenty-chars...", Truncate("exactly-twenty-chars!"))
}

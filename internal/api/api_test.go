package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sliink/capture/internal/analyze"
	"github.com/sliink/capture/internal/capture"
	"github.com/sliink/capture/internal/model"
	"github.com/sliink/capture/internal/sink"
)

// nullSink accepts everything.
type nullSink struct{}

func (nullSink) Persist(context.Context, model.LogRecord) error { return nil }

func newTestAPI(t *testing.T, report ReportFunc) (*API, *sink.Queue) {
	t.Helper()

	queue := sink.NewQueue(nullSink{}, sink.QueueOptions{Size: 10, Workers: 1}, zerolog.Nop())
	require.True(t, queue.Start())
	t.Cleanup(func() { queue.Stop() })

	handler := capture.NewHandler(capture.NewFilter(nil), capture.NewBuilder(), queue, zerolog.Nop())
	if report == nil {
		report = func() (analyze.Report, error) { return analyze.Report{}, nil }
	}
	return NewAPI(handler, queue, report, 8080, "localhost"), queue
}

func doRequest(api *API, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	api.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	w := doRequest(api, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusEndpoint(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	w := doRequest(api, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Capture model.CaptureStats `json:"capture"`
		Queue   model.QueueStatus  `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, model.StatusRunning, body.Queue.Status)
	assert.Equal(t, 10, body.Queue.Capacity)
}

func TestFlowIntake(t *testing.T) {
	api, queue := newTestAPI(t, nil)

	t.Run("Request flow is accepted and queued", func(t *testing.T) {
		ev := capture.FlowRequest{
			Method: "POST",
			URL:    "https://api.anthropic.com/v1/messages",
			Host:   "api.anthropic.com",
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: []byte(`{"model":"claude-sonnet-4"}`),
		}
		payload, err := json.Marshal(ev)
		require.NoError(t, err)

		w := doRequest(api, http.MethodPost, "/flows/request", payload)
		assert.Equal(t, http.StatusAccepted, w.Code)

		assert.Eventually(t, func() bool {
			return queue.Status().Persisted == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("Response flow is accepted", func(t *testing.T) {
		ev := capture.FlowResponse{
			StatusCode: 200,
			URL:        "https://api.anthropic.com/v1/messages",
			Host:       "api.anthropic.com",
		}
		payload, err := json.Marshal(ev)
		require.NoError(t, err)

		w := doRequest(api, http.MethodPost, "/flows/response", payload)
		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("Malformed body is rejected", func(t *testing.T) {
		w := doRequest(api, http.MethodPost, "/flows/request", []byte("{broken"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Excluded flow is accepted but not recorded", func(t *testing.T) {
		before := queue.Status().Persisted
		ev := capture.FlowRequest{
			Method: "GET",
			URL:    "http://metadata.google.internal/computeMetadata/v1/",
		}
		payload, err := json.Marshal(ev)
		require.NoError(t, err)

		w := doRequest(api, http.MethodPost, "/flows/request", payload)
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, before, queue.Status().Persisted)
	})
}

func TestReportEndpoint(t *testing.T) {
	t.Run("Report is served as JSON", func(t *testing.T) {
		api, _ := newTestAPI(t, func() (analyze.Report, error) {
			return analyze.Report{Considered: 7, Malformed: 1}, nil
		})

		w := doRequest(api, http.MethodGet, "/report", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var report analyze.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, 7, report.Considered)
		assert.Equal(t, 1, report.Malformed)
	})

	t.Run("Report failure maps to 500", func(t *testing.T) {
		api, _ := newTestAPI(t, func() (analyze.Report, error) {
			return analyze.Report{}, errors.New("no snapshot fetched")
		})

		w := doRequest(api, http.MethodGet, "/report", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "no snapshot fetched")
	})
}

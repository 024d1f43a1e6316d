package capture

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/sliink/capture/internal/model"
)

// Recorder accepts built records for persistence. Enqueue must never block;
// it returns false when the record was not accepted.
type Recorder interface {
	Enqueue(record model.LogRecord) bool
}

// Handler is the callback surface consumed by the interception host. It is
// safe to invoke concurrently from any number of flow-handling goroutines:
// the filter and builder are stateless, counters are atomic, and the
// recorder owns its own synchronization.
type Handler struct {
	filter   *Filter
	builder  *Builder
	recorder Recorder
	log      zerolog.Logger

	observed atomic.Uint64
	excluded atomic.Uint64
	recorded atomic.Uint64
}

// NewHandler creates a flow handler.
func NewHandler(filter *Filter, builder *Builder, recorder Recorder, log zerolog.Logger) *Handler {
	return &Handler{
		filter:   filter,
		builder:  builder,
		recorder: recorder,
		log:      log.With().Str("component", "flow_handler").Logger(),
	}
}

// OnRequest handles an observed request. Excluded URLs never leave the
// process; everything else is built into a record and handed to the
// recorder. A persistence problem never propagates back to the caller.
func (h *Handler) OnRequest(ev FlowRequest) {
	h.observed.Add(1)
	if h.filter.ShouldExclude(ev.URL) {
		h.excluded.Add(1)
		return
	}
	rec := h.builder.BuildRequest(ev)
	h.record(rec)
}

// OnResponse handles an observed response.
func (h *Handler) OnResponse(ev FlowResponse) {
	h.observed.Add(1)
	if h.filter.ShouldExclude(ev.URL) {
		h.excluded.Add(1)
		return
	}
	rec := h.builder.BuildResponse(ev)
	h.record(rec)
}

func (h *Handler) record(rec model.LogRecord) {
	if !h.recorder.Enqueue(rec) {
		h.log.Warn().Str("id", rec.ID).Str("host", rec.Host).Msg("record not accepted for persistence")
		return
	}
	h.recorded.Add(1)
}

// Stats returns a snapshot of the capture counters.
func (h *Handler) Stats() model.CaptureStats {
	return model.CaptureStats{
		Observed: h.observed.Load(),
		Excluded: h.excluded.Load(),
		Recorded: h.recorded.Load(),
	}
}

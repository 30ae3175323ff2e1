package outbox

import (
	"context"

	"github.com/rs/zerolog"
)

// Recorder accepts events for later delivery.
type Recorder interface {
	Record(ctx context.Context, evt Event) error
}

// LogRecorder writes events to the log instead of a table. Used when the
// service runs without Postgres.
type LogRecorder struct {
	logger zerolog.Logger
}

func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger.With().Str("component", "outbox").Logger()}
}

func (r *LogRecorder) Record(_ context.Context, evt Event) error {
	r.logger.Info().
		Str("event_id", evt.EventID.String()).
		Str("event_type", evt.EventType).
		Str("aggregate_type", evt.AggregateType).
		Str("aggregate_id", evt.AggregateID).
		RawJSON("payload", evt.Payload).
		Msg("event recorded")
	return nil
}

package pipeline

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/microbetraits/traitalign/engine/sssom"
	"github.com/microbetraits/traitalign/pkg/natsutil"
)

// NATSEvents publishes item status and run summary events over NATS.
// Publish failures are logged and dropped; the event stream is advisory
// and never blocks the run.
type NATSEvents struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewNATSEvents wires the sink.
func NewNATSEvents(nc *nats.Conn, logger *slog.Logger) *NATSEvents {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSEvents{nc: nc, logger: logger}
}

func (e *NATSEvents) ItemStatus(ctx context.Context, s sssom.ItemStatus) {
	if err := natsutil.Publish(ctx, e.nc, SubjectItemStatus, s); err != nil {
		e.logger.Warn("pipeline: status event publish failed", "source_key", s.SourceKey, "error", err)
	}
}

func (e *NATSEvents) RunSummary(ctx context.Context, s Summary) {
	if err := natsutil.Publish(ctx, e.nc, SubjectRunSummary, s); err != nil {
		e.logger.Warn("pipeline: summary event publish failed", "error", err)
	}
}

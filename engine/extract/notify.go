package extract

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
	"github.com/WireVisionAI/wirevision-mvp/pkg/natsutil"
)

const (
	// JobsSubject carries extraction jobs to the worker queue group.
	JobsSubject = "wirevision.extract.jobs"
	// ProgressSubject carries per-page progress events.
	ProgressSubject = "wirevision.extract.progress"
	// DoneSubject carries run-level completion events.
	DoneSubject = "wirevision.extract.done"
	// DLQSubject is the dead letter queue for jobs that keep failing.
	DLQSubject = "wirevision.extract.dlq"
	// MaxDeliveries before a failing job is parked on the DLQ.
	MaxDeliveries = 3
)

// DoneEvent summarizes one finished run. Error is set when the run failed
// before producing any output.
type DoneEvent struct {
	Source     string       `json:"source"`
	Panel      string       `json:"panel"`
	Wires      int          `json:"wires"`
	Components int          `json:"components"`
	Warnings   []string     `json:"warnings,omitempty"`
	Stats      domain.Stats `json:"stats"`
	Error      string       `json:"error,omitempty"`
}

// NATSNotifier publishes progress and completion events. Publish failures
// are logged and dropped; eventing never fails a run.
type NATSNotifier struct {
	nc  *nats.Conn
	log *slog.Logger
}

// NewNATSNotifier creates a notifier on an existing connection.
func NewNATSNotifier(nc *nats.Conn, log *slog.Logger) *NATSNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &NATSNotifier{nc: nc, log: log}
}

func (n *NATSNotifier) PageDone(ctx context.Context, ev ProgressEvent) {
	if err := natsutil.Publish(ctx, n.nc, ProgressSubject, ev); err != nil {
		n.log.Warn("extract: progress publish failed", "page", ev.Page, "error", err)
	}
}

func (n *NATSNotifier) RunDone(ctx context.Context, ev DoneEvent) {
	if err := natsutil.Publish(ctx, n.nc, DoneSubject, ev); err != nil {
		n.log.Warn("extract: done publish failed", "source", ev.Source, "error", err)
	}
}

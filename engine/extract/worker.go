package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
)

// dlqMessage is parked on the DLQ after repeated failure.
type dlqMessage struct {
	Job     domain.Job `json:"job"`
	Error   string     `json:"error"`
	Retries int        `json:"retries"`
}

// ConsumerDeps holds the job consumer's collaborators.
type ConsumerDeps struct {
	Orchestrator *Orchestrator
	// OnResult receives each successful extraction for persistence and
	// indexing. A non-nil error sends the job through the retry path.
	OnResult func(ctx context.Context, job domain.Job, ext domain.Extraction) error
	Logger   *slog.Logger
	// MaxRetries overrides the DLQ threshold when > 0.
	MaxRetries int
}

// StartConsumer joins the extraction queue group on the jobs subject. Failed
// jobs are re-published with an incremented retry count and parked on the
// DLQ once the threshold is hit. Jobs that fail validation skip the retry
// loop, since re-running cannot fix their input.
func StartConsumer(nc *nats.Conn, deps ConsumerDeps) (*nats.Subscription, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	maxRetries := deps.MaxRetries
	if maxRetries <= 0 {
		maxRetries = MaxDeliveries
	}

	return nc.QueueSubscribe(JobsSubject, "extractors", func(msg *nats.Msg) {
		var job domain.Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			log.Error("extract: job unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		ext, err := deps.Orchestrator.Run(ctx, job)
		if err == nil && deps.OnResult != nil {
			if hookErr := deps.OnResult(ctx, job, ext); hookErr != nil {
				err = fmt.Errorf("store result: %w", hookErr)
			}
		}

		if err != nil {
			retries++
			log.Error("extract: job failed",
				"source", job.Source,
				"panel", job.Panel,
				"retry", retries,
				"error", err,
			)

			var verr *domain.ValidationError
			if errors.As(err, &verr) || retries >= maxRetries {
				dlq := dlqMessage{Job: job, Error: err.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("extract: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(JobsSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("extract: retry publish failed", "error", err)
				}
			}
		} else {
			log.Info("extract: job complete",
				"source", job.Source,
				"panel", job.Panel,
				"wires", len(ext.Wires),
				"components", len(ext.Components),
			)
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}

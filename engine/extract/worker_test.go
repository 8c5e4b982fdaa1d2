package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/WireVisionAI/wirevision-mvp/engine/domain"
)

func startNATS(t *testing.T) (*natsserver.Server, *nats.Conn) {
	t.Helper()
	opts := &natsserver.Options{Port: -1}
	ns, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats not ready")
	}
	nc, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	return ns, nc
}

func validJob() domain.Job {
	return domain.Job{
		Source: "doc.pdf",
		Panel:  "A1",
		Pages:  []domain.PagePayload{{Index: 1, RawText: "page"}},
	}
}

func consumerDeps(rec Recognizer, onResult func(context.Context, domain.Job, domain.Extraction) error) ConsumerDeps {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return ConsumerDeps{
		Orchestrator: New(Deps{Recognizer: rec, Logger: log}, testOptions()),
		OnResult:     onResult,
		Logger:       log,
	}
}

func schematicRecognizer() *fakeRecognizer {
	return &fakeRecognizer{fn: func(page domain.PagePayload, call int) (domain.PageExtract, error) {
		return domain.PageExtract{
			PanelLabel:  "+A1",
			Foglio:      100,
			IsSchematic: true,
			Wires:       []domain.WireRecord{{ID: "7", From: "XT12.1", To: "KM45.3"}},
		}, nil
	}}
}

func TestStartConsumer_Success(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	stored := make(chan domain.Extraction, 1)
	deps := consumerDeps(schematicRecognizer(), func(_ context.Context, _ domain.Job, ext domain.Extraction) error {
		stored <- ext
		return nil
	})

	sub, err := StartConsumer(nc, deps)
	if err != nil {
		t.Fatalf("StartConsumer: %v", err)
	}
	defer sub.Unsubscribe()

	data, _ := json.Marshal(validJob())
	nc.Publish(JobsSubject, data)
	nc.Flush()

	select {
	case ext := <-stored:
		if len(ext.Wires) != 1 {
			t.Errorf("stored wires = %+v, want 1", ext.Wires)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected result hook to run")
	}
}

func TestStartConsumer_InvalidJSON(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	deps := consumerDeps(schematicRecognizer(), nil)

	sub, err := StartConsumer(nc, deps)
	if err != nil {
		t.Fatalf("StartConsumer: %v", err)
	}
	defer sub.Unsubscribe()

	nc.Publish(JobsSubject, []byte("not json"))
	nc.Flush()
	time.Sleep(100 * time.Millisecond)
}

func TestStartConsumer_ValidationStraightToDLQ(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	deps := consumerDeps(schematicRecognizer(), nil)

	dlqReceived := make(chan dlqMessage, 1)
	nc.Subscribe(DLQSubject, func(msg *nats.Msg) {
		var dlq dlqMessage
		json.Unmarshal(msg.Data, &dlq)
		dlqReceived <- dlq
	})

	sub, err := StartConsumer(nc, deps)
	if err != nil {
		t.Fatalf("StartConsumer: %v", err)
	}
	defer sub.Unsubscribe()

	// No pages, so the job can never succeed. It must skip the retry loop.
	data, _ := json.Marshal(domain.Job{Source: "doc.pdf", Panel: "A1"})
	nc.Publish(JobsSubject, data)
	nc.Flush()

	select {
	case dlq := <-dlqReceived:
		if dlq.Retries != 1 {
			t.Errorf("retries = %d, want 1 (no retry loop for bad input)", dlq.Retries)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected DLQ message")
	}
}

func TestStartConsumer_RetryAndDLQ(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	deps := consumerDeps(schematicRecognizer(), func(context.Context, domain.Job, domain.Extraction) error {
		return errors.New("store down")
	})

	dlqReceived := make(chan bool, 1)
	nc.Subscribe(DLQSubject, func(msg *nats.Msg) {
		dlqReceived <- true
	})

	sub, err := StartConsumer(nc, deps)
	if err != nil {
		t.Fatalf("StartConsumer: %v", err)
	}
	defer sub.Unsubscribe()

	// Retry count one short of the threshold so the next failure parks it.
	data, _ := json.Marshal(validJob())
	msg := nats.NewMsg(JobsSubject)
	msg.Data = data
	msg.Header = nats.Header{}
	msg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", MaxDeliveries-1))
	nc.PublishMsg(msg)
	nc.Flush()

	select {
	case <-dlqReceived:
	case <-time.After(2 * time.Second):
		t.Fatal("expected DLQ message")
	}
}

func TestStartConsumer_RetryRepublish(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	deps := consumerDeps(schematicRecognizer(), func(context.Context, domain.Job, domain.Extraction) error {
		return errors.New("store down")
	})

	retried := make(chan string, MaxDeliveries)
	nc.Subscribe(JobsSubject, func(msg *nats.Msg) {
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				retried <- v
			}
		}
	})

	sub, err := StartConsumer(nc, deps)
	if err != nil {
		t.Fatalf("StartConsumer: %v", err)
	}
	defer sub.Unsubscribe()

	data, _ := json.Marshal(validJob())
	nc.Publish(JobsSubject, data)
	nc.Flush()

	select {
	case v := <-retried:
		if v != "1" {
			t.Errorf("first republish X-Retry-Count = %q, want 1", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a republished job")
	}
}

func TestNATSNotifierPublishes(t *testing.T) {
	ns, nc := startNATS(t)
	defer ns.Shutdown()
	defer nc.Close()

	progress := make(chan ProgressEvent, 1)
	nc.Subscribe(ProgressSubject, func(msg *nats.Msg) {
		var ev ProgressEvent
		json.Unmarshal(msg.Data, &ev)
		progress <- ev
	})
	done := make(chan DoneEvent, 1)
	nc.Subscribe(DoneSubject, func(msg *nats.Msg) {
		var ev DoneEvent
		json.Unmarshal(msg.Data, &ev)
		done <- ev
	})
	nc.Flush()

	n := NewNATSNotifier(nc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	n.PageDone(ctx, ProgressEvent{Source: "doc.pdf", Panel: "A1", Page: 3, Total: 10, Status: StatusExtracted})
	n.RunDone(ctx, DoneEvent{Source: "doc.pdf", Panel: "A1", Wires: 12})

	select {
	case ev := <-progress:
		if ev.Page != 3 || ev.Status != StatusExtracted {
			t.Errorf("progress event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected progress event")
	}
	select {
	case ev := <-done:
		if ev.Wires != 12 {
			t.Errorf("done event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected done event")
	}
}

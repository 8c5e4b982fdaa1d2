// Package natsutil wraps NATS publish, subscribe and request in typed JSON
// helpers that carry OpenTelemetry trace context through message headers.
package natsutil

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// headerCarrier exposes nats.Msg headers as an OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// newMsg marshals v and stamps the current trace context into the headers.
func newMsg(ctx context.Context, subject string, v any) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

// Publish sends v as JSON on the subject.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	msg, err := newMsg(ctx, subject, v)
	if err != nil {
		return err
	}
	return nc.PublishMsg(msg)
}

// Subscribe delivers JSON messages of type T to the handler, with trace
// context restored from the message headers. Messages that do not decode as
// T are dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
		handler(ctx, v)
	})
}

// Request sends a JSON request and decodes the JSON reply. The context
// bounds the whole round trip, so callers should set a deadline.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	msg, err := newMsg(ctx, subject, req)
	if err != nil {
		return zero, err
	}
	reply, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return zero, err
	}
	var resp Resp
	if err := json.Unmarshal(reply.Data, &resp); err != nil {
		return zero, err
	}
	return resp, nil
}

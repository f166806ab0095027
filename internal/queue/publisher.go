package queue

import (
	"context"
)

// Publisher emits auth lifecycle events. Handlers publish asynchronously and
// never fail a request over a broker problem.
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, event any, reqID string) error
	Close() error
}

type NoopPub struct{}

func NewNoop() Publisher { return NoopPub{} }

func (NoopPub) Publish(context.Context, string, string, any, string) error { return nil }
func (NoopPub) Close() error                                               { return nil }

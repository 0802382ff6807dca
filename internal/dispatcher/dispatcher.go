// Package dispatcher turns (event, target users, payload) into frames queued
// on the connections those users currently hold.
package dispatcher

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/samber/lo"
	"github.com/weiawesome/wes-io-chat/internal/domain"
	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Resolver maps user ids to connection ids position by position. Offline
// users resolve to "".
type Resolver interface {
	Resolve(userIDs []string) []string
}

// Sink queues encoded frames on connections.
type Sink interface {
	Deliver(connID string, frame []byte) bool
	DeliverAll(frame []byte, skipConn string) int
}

type options struct {
	skipConn string
}

type Option func(*options)

// SkipConn leaves connID out of the emission, typically the sender.
func SkipConn(connID string) Option {
	return func(o *options) {
		o.skipConn = connID
	}
}

type Dispatcher struct {
	resolver Resolver
	sink     Sink
}

func New(resolver Resolver, sink Sink) *Dispatcher {
	return &Dispatcher{resolver: resolver, sink: sink}
}

// Dispatch sends event to the current connections of targets. Offline users
// are skipped silently. The returned count is informational only.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, targets []string, payload interface{}, opts ...Option) int {
	o := applyOptions(opts)

	conns := lo.Uniq(lo.Filter(d.resolver.Resolve(targets), func(id string, _ int) bool {
		return id != "" && id != o.skipConn
	}))

	l := log.Ctx(ctx)
	if len(conns) == 0 {
		l.Debug().Str(log.FieldEvent, event).Int(log.FieldTargets, len(targets)).Msg("no online recipients")
		return 0
	}

	frame, err := encode(event, payload)
	if err != nil {
		l.Error().Err(err).Str(log.FieldEvent, event).Msg("failed to encode frame")
		return 0
	}

	delivered := 0
	for _, connID := range conns {
		if d.sink.Deliver(connID, frame) {
			delivered++
		}
	}

	l.Debug().
		Str(log.FieldEvent, event).
		Int(log.FieldTargets, len(targets)).
		Int("delivered", delivered).
		Msg("event dispatched")
	return delivered
}

// Notify is Dispatch for callers outside a request context, such as REST
// handlers emitting after a write.
func (d *Dispatcher) Notify(event string, targets []string, payload interface{}) int {
	return d.Dispatch(context.Background(), event, targets, payload)
}

// Broadcast sends event to every connection.
func (d *Dispatcher) Broadcast(ctx context.Context, event string, payload interface{}, opts ...Option) int {
	o := applyOptions(opts)

	frame, err := encode(event, payload)
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldEvent, event).Msg("failed to encode frame")
		return 0
	}
	return d.sink.DeliverAll(frame, o.skipConn)
}

// Reply sends event to one connection.
func (d *Dispatcher) Reply(connID, event string, payload interface{}) bool {
	if strings.TrimSpace(connID) == "" {
		return false
	}
	frame, err := encode(event, payload)
	if err != nil {
		return false
	}
	return d.sink.Deliver(connID, frame)
}

func encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(domain.OutboundFrame{Event: event, Data: payload})
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

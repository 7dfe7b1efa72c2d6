// Package bridge is the message boundary between page clients and the
// agent. Requests arrive as typed messages, get dispatched to one
// registered handler each, and every message is answered with exactly one
// response. An unanswered message would hang its sender forever, so the
// single-response rule holds through unknown types and handler panics
// alike.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tubelens/core/internal/pkg/envelope"
	"go.uber.org/zap"
)

// Router owns the message registry. Handlers run to completion before the
// response goes out; requests carry no session state across dispatches.
type Router struct {
	handlers map[envelope.MessageType]HandlerFunc
	logger   *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: map[envelope.MessageType]HandlerFunc{},
		logger:   logger,
	}
}

// Register binds a handler to a message type, replacing any previous one.
// Registration happens during startup; Dispatch assumes the registry no
// longer changes.
func (r *Router) Register(t envelope.MessageType, h HandlerFunc) {
	r.handlers[t] = h
}

// Dispatch routes msg to its handler and returns the single response.
// Unknown types reject immediately without invoking any handler. A
// panicking handler is recovered into a rejection.
func (r *Router) Dispatch(ctx context.Context, msg envelope.Message) (resp envelope.Response) {
	id := MessageIDFrom(ctx)
	if id == "" {
		id = uuid.New().String()
	}
	started := time.Now()
	log := r.logger.With(
		zap.String("message_id", id),
		zap.String("type", string(msg.Type)),
	)
	log.Debug("message received")

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("handler panicked", zap.Any("panic", rec), zap.Stack("stack"))
			resp = envelope.Reject(fmt.Errorf("internal error: %v", rec))
		}
		if resp.Success {
			log.Debug("message resolved", zap.Duration("duration", time.Since(started)))
		} else {
			log.Warn("message rejected",
				zap.String("error", resp.Error),
				zap.Duration("duration", time.Since(started)))
		}
	}()

	handler, ok := r.handlers[msg.Type]
	if !ok {
		return envelope.Reject(envelope.NewUnknownMessageType(msg.Type))
	}

	data, err := handler(ctx, msg.Data)
	if err != nil {
		return envelope.Reject(err)
	}
	return envelope.Resolve(data)
}

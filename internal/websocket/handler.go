// internal/websocket/handler.go
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	wstypes "dedupe-service/internal/domain/websocket"
	xerrors "dedupe-service/internal/pkg/errors"
)

var ErrUnauthorized = fmt.Errorf("%w: websocket: missing token", xerrors.ErrUnauthorized)

// MessageHandler serves client events beyond ping and subscriptions.
type MessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *wstypes.WSMessage) error
	SupportedEvents() []wstypes.EventType
}

// builtinEvents are answered by the client and cannot be claimed.
var builtinEvents = map[wstypes.EventType]bool{
	wstypes.EventTypePing:        true,
	wstypes.EventTypeSubscribe:   true,
	wstypes.EventTypeUnsubscribe: true,
}

type handlerRegistry struct {
	mu       sync.RWMutex
	handlers map[wstypes.EventType]MessageHandler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{handlers: make(map[wstypes.EventType]MessageHandler)}
}

// register claims every event the handler supports. Nothing is registered
// when one of them is builtin or already claimed.
func (r *handlerRegistry) register(handler MessageHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := handler.SupportedEvents()
	for _, ev := range events {
		if builtinEvents[ev] {
			return fmt.Errorf("event %q is handled by the client", ev)
		}
		if _, taken := r.handlers[ev]; taken {
			return fmt.Errorf("event %q already has a handler", ev)
		}
	}
	for _, ev := range events {
		r.handlers[ev] = handler
	}
	return nil
}

func (r *handlerRegistry) lookup(ev wstypes.EventType) (MessageHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[ev]
	return handler, ok
}

// DecodeData converts a message's generic payload into target. A missing
// payload leaves target untouched.
func DecodeData(data interface{}, target interface{}) error {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("re-encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

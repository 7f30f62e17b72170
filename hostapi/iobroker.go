package hostapi

import (
	"context"
	"time"

	"github.com/stacknerd/msghub/storage"
)

// ObjectsAPI is ctx.api.iobroker.objects: the host's object-tree
// capability. Values are decoded JSON (map[string]any), matching how
// the rest of this codebase treats loosely-typed host documents.
type ObjectsAPI interface {
	Get(ctx context.Context, id string) (map[string]any, error)
	Set(ctx context.Context, id string, obj map[string]any) error
	Delete(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, partial map[string]any) error
	GetView(ctx context.Context, design, view string, opts map[string]any) ([]map[string]any, error)
	GetForeignObjects(ctx context.Context, pattern string) (map[string]map[string]any, error)
	GetForeignObject(ctx context.Context, id string) (map[string]any, error)
	ExtendForeignObject(ctx context.Context, id string, partial map[string]any) error
}

// StatesAPI is ctx.api.iobroker.states.
type StatesAPI interface {
	Set(ctx context.Context, id string, val any) error
	SetForeign(ctx context.Context, id string, val any) error
	GetForeign(ctx context.Context, id string) (any, error)
}

// Unsubscribe cancels a prior subscribe call.
type Unsubscribe func()

// SubscribeAPI is ctx.api.iobroker.subscribe.
type SubscribeAPI interface {
	States(ctx context.Context, pattern string, handler func(id string, val any)) (Unsubscribe, error)
	Objects(ctx context.Context, pattern string, handler func(id string, obj map[string]any)) (Unsubscribe, error)
	ForeignStates(ctx context.Context, pattern string, handler func(id string, val any)) (Unsubscribe, error)
	ForeignObjects(ctx context.Context, pattern string, handler func(id string, obj map[string]any)) (Unsubscribe, error)
}

// Sender is the raw instance-to-instance message transport sendTo
// builds on; it returns a channel the host delivers at most one
// response onto, or never delivers to (sendTo's caller supplies the
// timeout).
type Sender interface {
	SendTo(ctx context.Context, instance, command string, msg any) (<-chan any, error)
}

// DefaultSendToTimeout is used when sendTo's caller doesn't override it.
const DefaultSendToTimeout = 10 * time.Second

// IOBroker is ctx.api.iobroker: the abstracted host-runtime capability
// every adapter is built against, never a concrete home-automation host
// implementation (that lives outside this module's scope).
type IOBroker struct {
	Objects     ObjectsAPI
	States      StatesAPI
	Subscribe   SubscribeAPI
	Files       storage.HostFiles
	Sender      Sender
	OwnInstance string
}

// SendTo implements ctx.api.iobroker.sendTo(instance, command, message,
// {timeoutMs}). A zero timeout uses DefaultSendToTimeout. Mirrors the
// teacher's circuit breaker's context.WithTimeout-bounded call pattern
// (reverseproxy/circuit_breaker.go), generalized from "bound an HTTP
// round trip" to "bound a host instance round trip".
func (b IOBroker) SendTo(ctx context.Context, instance, command string, message any, timeout time.Duration) (any, error) {
	if instance == "" || command == "" {
		return nil, ErrEmptyTarget
	}
	if b.OwnInstance != "" && instance == b.OwnInstance {
		return nil, ErrSelfAddressed
	}
	if timeout <= 0 {
		timeout = DefaultSendToTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch, err := b.Sender.SendTo(ctx, instance, command, message)
	if err != nil {
		return nil, err
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

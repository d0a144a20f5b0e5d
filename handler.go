package mediator

import (
	"context"
	"fmt"
)

// Handler handles messages of type T on the publishing goroutine.
type Handler[T any] interface {
	Handle(context.Context, T) error
}

// AsyncHandler handles messages of type T on its own goroutine, one message at a time.
type AsyncHandler[T any] interface {
	HandleAsync(context.Context, T) error
}

// Filter is an optional capability of handlers. A handler implementing it only
// receives the messages Accept returns true for.
type Filter[T any] interface {
	Accept(T) bool
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T any] func(context.Context, T) error

func (f HandlerFunc[T]) Handle(ctx context.Context, msg T) error {
	return f(ctx, msg)
}

// AsyncHandlerFunc adapts a function to AsyncHandler.
type AsyncHandlerFunc[T any] func(context.Context, T) error

func (f AsyncHandlerFunc[T]) HandleAsync(ctx context.Context, msg T) error {
	return f(ctx, msg)
}

// SubscribeHandler subscribes h.Handle, behind h.Accept when h is a Filter.
func SubscribeHandler[T any](ctx context.Context, r *Router, h Handler[T]) Subscription {
	name := fmt.Sprintf("%T", h)
	if f, ok := h.(Filter[T]); ok {
		return subscribe(ctx, r, name, f.Accept, false, h.Handle)
	}
	return subscribe(ctx, r, name, nil, false, h.Handle)
}

// SubscribeHandlerAsync subscribes h.HandleAsync asynchronously, behind h.Accept
// when h is a Filter.
func SubscribeHandlerAsync[T any](ctx context.Context, r *Router, h AsyncHandler[T]) Subscription {
	name := fmt.Sprintf("%T", h)
	if f, ok := h.(Filter[T]); ok {
		return subscribe(ctx, r, name, f.Accept, true, h.HandleAsync)
	}
	return subscribe(ctx, r, name, nil, true, h.HandleAsync)
}

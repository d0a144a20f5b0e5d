package mediator

import (
	"context"
	"log/slog"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/casualjim/mediator/internal/broker"
	"github.com/casualjim/mediator/internal/serial"
	"github.com/casualjim/mediator/pkg/reflectx"
	"github.com/casualjim/mediator/pkg/slogx"
	"github.com/go-openapi/strfmt"
)

// Subscription detaches one subscriber from one channel. Unsubscribe is
// idempotent. It stops future deliveries but does not interrupt a delivery
// that is already running.
type Subscription interface {
	ID() string
	Unsubscribe()
}

// Subscribe registers fn for messages of type T and of every type T is an
// ancestor of. If the channel of T holds a value, fn receives it before
// Subscribe returns.
//
// A returned error or a panic is converted into an ErrorEnvelope[T] and an
// Error, both published on r. Cancelling ctx unsubscribes.
func Subscribe[T any](ctx context.Context, r *Router, fn func(context.Context, T) error) Subscription {
	return subscribe(ctx, r, reflectx.FunctionName(fn), nil, false, fn)
}

// SubscribeAsync is Subscribe with fn running off the publishing goroutine.
// Messages are handed to fn one at a time, in the order this subscriber
// received them: fn is not called for a message until the call for the previous
// one returned.
func SubscribeAsync[T any](ctx context.Context, r *Router, fn func(context.Context, T) error) Subscription {
	return subscribe(ctx, r, reflectx.FunctionName(fn), nil, true, fn)
}

// Binder subscribes functions behind a predicate. Create one with Where.
type Binder[T any] struct {
	r         *Router
	predicate func(T) bool
}

// Where returns a Binder whose subscribers only receive the messages accepted
// by predicate, the replayed value included.
func Where[T any](r *Router, predicate func(T) bool) *Binder[T] {
	return &Binder[T]{r: r, predicate: predicate}
}

func (b *Binder[T]) Subscribe(ctx context.Context, fn func(context.Context, T) error) Subscription {
	return subscribe(ctx, b.r, reflectx.FunctionName(fn), b.predicate, false, fn)
}

func (b *Binder[T]) SubscribeAsync(ctx context.Context, fn func(context.Context, T) error) Subscription {
	return subscribe(ctx, b.r, reflectx.FunctionName(fn), b.predicate, true, fn)
}

func subscribe[T any](ctx context.Context, r *Router, name string, predicate func(T) bool, async bool, fn func(context.Context, T) error) Subscription {
	typ := reflect.TypeFor[T]()
	r.trace(ctx, "subscribing",
		slogx.Type("message_type", typ),
		slog.String("subscriber", name),
		slog.Bool("async", async),
		slog.Bool("filtered", predicate != nil),
	)

	sub := &broker.Subscriber{
		Name: name,
		OnError: func(ctx context.Context, err error) {
			r.trace(ctx, "channel faulted", slogx.Type("message_type", typ), slog.String("subscriber", name), slogx.Error(err))
		},
		OnCompleted: func(ctx context.Context) {
			r.trace(ctx, "channel completed", slogx.Type("message_type", typ), slog.String("subscriber", name))
		},
	}
	if predicate != nil {
		sub.Filter = func(v any) bool {
			msg, ok := v.(T)
			return ok && accept(r, msg, predicate)
		}
	}

	if async {
		queue := serial.New()
		sub.Next = func(ctx context.Context, v any) {
			msg, _ := v.(T)
			// the publisher's cancellation must not abort work scheduled on its behalf
			detached := context.WithoutCancel(ctx)
			queue.Push(func() { invoke(detached, r, msg, fn) })
		}
		sub.OnDetach = queue.Close
	} else {
		sub.Next = func(ctx context.Context, v any) {
			msg, _ := v.(T)
			invoke(ctx, r, msg, fn)
		}
	}

	h := &handle{Subscription: r.topic(typ).Subscribe(ctx, sub)}
	if ctx.Done() != nil {
		h.stop = context.AfterFunc(ctx, h.Subscription.Unsubscribe)
	}
	return h
}

type handle struct {
	broker.Subscription
	stop func() bool
}

func (h *handle) Unsubscribe() {
	if h.stop != nil {
		h.stop()
	}
	h.Subscription.Unsubscribe()
}

// accept evaluates predicate, treating a panic as a rejection routed like any
// other subscriber failure.
func accept[T any](r *Router, msg T, predicate func(T) bool) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			ok = false
			route(context.Background(), r, msg, &PanicError{Value: rec, Stack: debug.Stack()})
		}
	}()
	return predicate(msg)
}

func invoke[T any](ctx context.Context, r *Router, msg T, fn func(context.Context, T) error) {
	if err := call(ctx, msg, fn); err != nil {
		route(ctx, r, msg, err)
	}
}

func call[T any](ctx context.Context, msg T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return fn(ctx, msg)
}

// route publishes the failure of a subscriber of T as an ErrorEnvelope[T] and
// as an Error, in that order.
func route[T any](ctx context.Context, r *Router, msg T, err error) {
	typ := reflect.TypeFor[T]()
	if _, nested := any(msg).(envelope); nested {
		r.logger.ErrorContext(ctx, "error handler failed", slogx.Type("message_type", typ), slogx.Error(err))
		return
	}
	r.trace(ctx, "subscriber failed", slogx.Type("message_type", typ), slogx.Error(err))

	env := ErrorEnvelope[T]{Err: err, Message: msg, Timestamp: strfmt.DateTime(time.Now())}
	if perr := Publish(ctx, r, env); perr != nil {
		r.logger.ErrorContext(ctx, "failed to route error", slogx.Error(perr))
	}
	if perr := Publish(ctx, r, env.Erase()); perr != nil {
		r.logger.ErrorContext(ctx, "failed to route error", slogx.Error(perr))
	}
}

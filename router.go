package mediator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/casualjim/mediator/internal/broker"
	"github.com/casualjim/mediator/pkg/reflectx"
	"github.com/casualjim/mediator/pkg/slogx"
	"github.com/casualjim/mediator/pkg/stdx"
	"github.com/fogfish/opts"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ErrNilMessage is returned by Publish when the message is nil.
var ErrNilMessage = errors.New("message must not be nil")

// Wirer attaches handlers to a router. It is invoked once, on the first Publish.
type Wirer interface {
	Wire(ctx context.Context, r *Router) error
}

// Router routes published messages to the subscribers of the message type and
// of every ancestor type. The zero value is not usable, create one with New.
//
// A Router owns one channel per message type. Channels are created on the
// first Publish or Subscribe for their type and live as long as the router.
// Delivery across channels follows channel creation order.
type Router struct {
	logger   *slog.Logger
	logLevel slog.Level
	wirer    Wirer

	mu     sync.RWMutex
	topics *orderedmap.OrderedMap[reflect.Type, *broker.Topic]
	types  *hierarchy
	wired  atomic.Bool
}

// New creates a router.
func New(options ...opts.Option[Router]) *Router {
	r := &Router{
		logger:   slog.Default().With(slogx.LoggerName("mediator")),
		logLevel: slog.LevelDebug,
		topics:   orderedmap.New[reflect.Type, *broker.Topic](),
		types:    newHierarchy(),
	}
	if err := opts.Apply(r, options); err != nil {
		panic(err)
	}
	return r
}

// Publish delivers msg to every subscriber of T and of the ancestors of T.
//
// Dispatch uses the type argument, not the dynamic type of msg:
// Publish[Base](ctx, r, derived) only reaches Base subscribers and the
// subscribers of the ancestors of Base.
//
// Synchronous subscribers run on the calling goroutine before Publish returns.
// Their failures are routed as ErrorEnvelope[T] and Error messages and never
// returned here. The only error Publish reports for a message is ErrNilMessage.
func Publish[T any](ctx context.Context, r *Router, msg T) error {
	if reflectx.IsNil(msg) {
		return ErrNilMessage
	}
	if err := r.wire(ctx); err != nil {
		return err
	}

	typ := reflect.TypeFor[T]()
	targets := r.targets(typ, msg)
	r.trace(ctx, "publishing message", slogx.Type("message_type", typ), slog.Int("channels", len(targets)))

	for _, t := range targets {
		var value any = msg
		for _, upcast := range t.path {
			value = upcast(value)
		}
		t.topic.Publish(ctx, value)
	}
	return nil
}

// PublishZero publishes the zero value of T.
func PublishZero[T any](ctx context.Context, r *Router) error {
	return Publish(ctx, r, stdx.Zero[T]())
}

// Complete closes the channel of T: later publishes are ignored and later
// subscribers are released right away.
func Complete[T any](ctx context.Context, r *Router) {
	typ := reflect.TypeFor[T]()
	r.trace(ctx, "completing channel", slogx.Type("message_type", typ))
	r.topic(typ).Complete(ctx)
}

// Fail moves the channel of T into the faulted state with err.
func Fail[T any](ctx context.Context, r *Router, err error) {
	typ := reflect.TypeFor[T]()
	r.trace(ctx, "faulting channel", slogx.Type("message_type", typ), slogx.Error(err))
	r.topic(typ).Fault(ctx, err)
}

// SubscriberCount returns the number of live subscribers on the channel of T.
func SubscriberCount[T any](r *Router) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if topic, ok := r.topics.Get(reflect.TypeFor[T]()); ok {
		return topic.Len()
	}
	return 0
}

// Extend declares Super as an ancestor of Sub. Publishing a Sub then also
// reaches Super subscribers with the value returned by upcast. Relations are
// transitive. Interfaces implemented by a type are ancestors without being declared.
func Extend[Sub, Super any](r *Router, upcast func(Sub) Super) {
	r.types.add(reflect.TypeFor[Sub](), reflect.TypeFor[Super](), func(v any) any {
		return upcast(v.(Sub))
	})
}

type target struct {
	topic *broker.Topic
	path  []func(any) any
}

// targets resolves the channels msg is delivered to. When T has no channel yet,
// one is created holding msg as its replay value and left out of the targets.
func (r *Router) targets(typ reflect.Type, msg any) []target {
	r.mu.RLock()
	if _, ok := r.topics.Get(typ); ok {
		defer r.mu.RUnlock()
		return r.matching(typ)
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics.Get(typ); ok {
		return r.matching(typ)
	}
	targets := r.matching(typ)
	r.topics.Set(typ, broker.Seeded(msg))
	return targets
}

// matching must be called with r.mu held. Upcasts are only collected here and
// applied by the caller once the lock is released.
func (r *Router) matching(typ reflect.Type) []target {
	var targets []target
	for pair := r.topics.Oldest(); pair != nil; pair = pair.Next() {
		if path, ok := r.types.path(typ, pair.Key); ok {
			targets = append(targets, target{topic: pair.Value, path: path})
		}
	}
	return targets
}

func (r *Router) topic(typ reflect.Type) *broker.Topic {
	r.mu.RLock()
	topic, ok := r.topics.Get(typ)
	r.mu.RUnlock()
	if ok {
		return topic
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if topic, ok := r.topics.Get(typ); ok {
		return topic
	}
	topic = broker.NewTopic()
	r.topics.Set(typ, topic)
	return topic
}

func (r *Router) wire(ctx context.Context) error {
	if r.wirer == nil || !r.wired.CompareAndSwap(false, true) {
		return nil
	}
	r.trace(ctx, "wiring handlers")
	if err := r.wirer.Wire(ctx, r); err != nil {
		r.logger.ErrorContext(ctx, "failed to wire handlers", slogx.Error(err))
		return fmt.Errorf("wire handlers: %w", err)
	}
	return nil
}

func (r *Router) trace(ctx context.Context, msg string, attrs ...slog.Attr) {
	r.logger.LogAttrs(ctx, r.logLevel, msg, attrs...)
}

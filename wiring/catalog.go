package wiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/casualjim/mediator"
	"github.com/casualjim/mediator/internal/registry"
	"github.com/casualjim/mediator/pkg/slogx"
	"github.com/fogfish/opts"
)

// ErrNotRegistered is returned when a registration names a handler the
// resolver does not know.
var ErrNotRegistered = registry.ErrNotRegistered

// ErrDuplicate is returned when a handler name is registered twice.
var ErrDuplicate = errors.New("handler already registered")

// Registration describes one handler known to a Catalog.
type Registration struct {
	Name        string
	MessageType reflect.Type
	Shape       mediator.Shape
	bind        func(context.Context, *mediator.Router, any) (mediator.Subscription, error)
}

// Catalog is the set of handlers wired into the routers it builds.
type Catalog struct {
	lifetime        Lifetime
	handlerLifetime Lifetime
	logger          *slog.Logger

	resolver *registry.Resolver

	mu            sync.Mutex
	registrations []Registration
	router        *mediator.Router
}

// New creates an empty catalog. Routers and handlers are singletons unless
// configured otherwise.
func New(options ...opts.Option[Catalog]) *Catalog {
	c := &Catalog{
		lifetime:        Singleton,
		handlerLifetime: Singleton,
		logger:          slog.Default().With(slogx.LoggerName("mediator.wiring")),
		resolver:        registry.NewResolver(),
	}
	if err := opts.Apply(c, options); err != nil {
		panic(err)
	}
	return c
}

// Register adds the handler built by factory as a handler of T under name.
// factory is called once here to decide the handler's shape. With a singleton
// handler lifetime that instance is the one wired into routers.
func Register[T any](c *Catalog, name string, factory func() any) error {
	if factory == nil {
		return fmt.Errorf("register %q: nil factory", name)
	}
	probe := factory()
	shape, err := mediator.ShapeOf[T](probe)
	if err != nil {
		return fmt.Errorf("register %q: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.resolver.Register(name, factory, c.handlerLifetime == Singleton, probe) {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	c.registrations = append(c.registrations, Registration{
		Name:        name,
		MessageType: reflect.TypeFor[T](),
		Shape:       shape,
		bind: func(ctx context.Context, r *mediator.Router, h any) (mediator.Subscription, error) {
			return mediator.Bind[T](ctx, r, shape, h)
		},
	})
	c.logger.Debug("registered handler",
		slog.String("handler", name),
		slogx.Type("message_type", reflect.TypeFor[T]()),
		slogx.Stringer("shape", shape),
	)
	return nil
}

// Registrations returns the registered handlers in registration order.
func (c *Catalog) Registrations() []Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Registration, len(c.registrations))
	copy(out, c.registrations)
	return out
}

// Wire resolves every registered handler and subscribes it to r. Handlers
// that fail to wire are skipped and reported together.
func (c *Catalog) Wire(ctx context.Context, r *mediator.Router) error {
	// subscriptions made here live as long as the router, not the publish that triggered wiring
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for _, reg := range c.Registrations() {
		h, err := c.resolver.Resolve(reg.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := reg.bind(ctx, r, h); err != nil {
			errs = append(errs, fmt.Errorf("bind %q: %w", reg.Name, err))
			continue
		}
		c.logger.DebugContext(ctx, "wired handler", slog.String("handler", reg.Name), slogx.Stringer("shape", reg.Shape))
	}
	return errors.Join(errs...)
}

// Mediator returns a router wired with the catalog's handlers. With a
// singleton lifetime every call returns the router built by the first one,
// and options passed to later calls are ignored.
func (c *Catalog) Mediator(options ...opts.Option[mediator.Router]) *mediator.Router {
	if c.lifetime == Transient {
		return c.build(options)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.router == nil {
		c.router = c.build(options)
	}
	return c.router
}

func (c *Catalog) build(options []opts.Option[mediator.Router]) *mediator.Router {
	all := make([]opts.Option[mediator.Router], 0, len(options)+1)
	all = append(all, mediator.WithWiring(c))
	all = append(all, options...)
	return mediator.New(all...)
}

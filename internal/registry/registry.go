package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/alphadose/haxmap"
)

// ErrNotRegistered is returned when resolving a name nothing was registered under.
var ErrNotRegistered = errors.New("handler not registered")

type Registry[T any] interface {
	Get(name string) (T, bool)
	Add(name string, value T)
	GetOrAdd(name string, value func() T) (T, bool)
	Del(name string)
	Len() int
}

type registry[T any] struct {
	values *haxmap.Map[string, T]
}

func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

func (r *registry[T]) Add(name string, value T) {
	r.values.Set(name, value)
}

func (r *registry[T]) GetOrAdd(name string, valueFn func() T) (T, bool) {
	return r.values.GetOrCompute(name, valueFn)
}

func (r *registry[T]) Del(name string) {
	r.values.Del(name)
}

func (r *registry[T]) Len() int {
	return int(r.values.Len())
}

// Factory produces a handler instance.
type Factory func() any

// Resolver maps handler names to factories. A shared provider builds its
// instance once and hands out the same value on every resolve.
type Resolver struct {
	providers Registry[*provider]
}

func NewResolver() *Resolver {
	return &Resolver{providers: New[*provider]()}
}

// Register binds name to factory. seed, when not nil, is used as the shared
// instance so a probe built during registration is not thrown away.
// Registering a name twice keeps the first binding and reports false.
func (r *Resolver) Register(name string, factory Factory, shared bool, seed any) bool {
	_, loaded := r.providers.GetOrAdd(name, func() *provider {
		p := &provider{factory: factory, shared: shared}
		if shared && seed != nil {
			p.once.Do(func() { p.instance = seed })
		}
		return p
	})
	return !loaded
}

// Resolve produces the handler registered under name.
func (r *Resolver) Resolve(name string) (any, error) {
	p, ok := r.providers.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return p.get(), nil
}

// Len returns the number of registered names.
func (r *Resolver) Len() int {
	return r.providers.Len()
}

type provider struct {
	factory  Factory
	shared   bool
	once     sync.Once
	instance any
}

func (p *provider) get() any {
	if !p.shared {
		return p.factory()
	}
	p.once.Do(func() { p.instance = p.factory() })
	return p.instance
}

package mediator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// ErrUnsupportedShape is returned when a handler matches none of the known shapes.
var ErrUnsupportedShape = errors.New("unsupported handler shape")

// Shape is the way a handler is attached to a router. The set is closed.
type Shape uint8

const (
	ShapeSync Shape = iota + 1
	ShapeAsync
	ShapeFilteredSync
	ShapeFilteredAsync
)

func (s Shape) String() string {
	switch s {
	case ShapeSync:
		return "sync"
	case ShapeAsync:
		return "async"
	case ShapeFilteredSync:
		return "filtered-sync"
	case ShapeFilteredAsync:
		return "filtered-async"
	default:
		return fmt.Sprintf("Shape(%d)", uint8(s))
	}
}

func (s Shape) Async() bool {
	return s == ShapeAsync || s == ShapeFilteredAsync
}

func (s Shape) Filtered() bool {
	return s == ShapeFilteredSync || s == ShapeFilteredAsync
}

func (s Shape) Valid() bool {
	return s >= ShapeSync && s <= ShapeFilteredAsync
}

// ShapeOf classifies h as a handler of T. A handler implementing both Handler
// and AsyncHandler is treated as synchronous.
func ShapeOf[T any](h any) (Shape, error) {
	_, filtered := h.(Filter[T])
	switch h.(type) {
	case Handler[T]:
		if filtered {
			return ShapeFilteredSync, nil
		}
		return ShapeSync, nil
	case AsyncHandler[T]:
		if filtered {
			return ShapeFilteredAsync, nil
		}
		return ShapeAsync, nil
	default:
		return 0, fmt.Errorf("%w: %T does not handle %s", ErrUnsupportedShape, h, typeName[T]())
	}
}

// Bind subscribes h to r the way shape prescribes.
func Bind[T any](ctx context.Context, r *Router, shape Shape, h any) (Subscription, error) {
	if !shape.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedShape, shape)
	}

	var filter Filter[T]
	if shape.Filtered() {
		f, ok := h.(Filter[T])
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a %s handler of %s", ErrUnsupportedShape, h, shape, typeName[T]())
		}
		filter = f
	}

	if shape.Async() {
		ah, ok := h.(AsyncHandler[T])
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a %s handler of %s", ErrUnsupportedShape, h, shape, typeName[T]())
		}
		if filter != nil {
			return Where(r, filter.Accept).SubscribeAsync(ctx, ah.HandleAsync), nil
		}
		return SubscribeAsync(ctx, r, ah.HandleAsync), nil
	}

	sh, ok := h.(Handler[T])
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a %s handler of %s", ErrUnsupportedShape, h, shape, typeName[T]())
	}
	if filter != nil {
		return Where(r, filter.Accept).Subscribe(ctx, sh.Handle), nil
	}
	return Subscribe(ctx, r, sh.Handle), nil
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

package wiring

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fogfish/opts"
)

// Environment variables read by FromEnv.
const (
	EnvLifetime        = "MEDIATOR_LIFETIME"
	EnvHandlerLifetime = "MEDIATOR_HANDLER_LIFETIME"
)

// MediatorLifetime sets whether Catalog.Mediator shares one router.
var MediatorLifetime = opts.ForName[Catalog, Lifetime]("lifetime")

// HandlerLifetime sets whether routers share handler instances. It must be
// set before handlers are registered.
var HandlerLifetime = opts.ForName[Catalog, Lifetime]("handlerLifetime")

// WithLogger sets the logger reporting registrations and wiring.
var WithLogger = opts.ForName[Catalog, *slog.Logger]("logger")

// FromEnv returns the catalog options configured through the environment.
func FromEnv() ([]opts.Option[Catalog], error) {
	var options []opts.Option[Catalog]
	for _, e := range []struct {
		name string
		opt  func(Lifetime) opts.Option[Catalog]
	}{
		{EnvLifetime, MediatorLifetime},
		{EnvHandlerLifetime, HandlerLifetime},
	} {
		v, ok := os.LookupEnv(e.name)
		if !ok || v == "" {
			continue
		}
		l, err := ParseLifetime(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.name, err)
		}
		options = append(options, e.opt(l))
	}
	return options, nil
}

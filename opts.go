package mediator

import (
	"log/slog"

	"github.com/fogfish/opts"
)

// WithLogger sets the logger the router reports to.
var WithLogger = opts.ForName[Router, *slog.Logger]("logger")

// WithLogLevel sets the level of the router's own trace records. Failures of
// error handlers are always logged at error level.
var WithLogLevel = opts.ForName[Router, slog.Level]("logLevel")

// WithWiring sets the Wirer invoked on the first Publish.
var WithWiring = opts.ForName[Router, Wirer]("wirer")

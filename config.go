package mediator

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fogfish/opts"
)

// EnvLogLevel names the environment variable read by FromEnv.
const EnvLogLevel = "MEDIATOR_LOG_LEVEL"

// FromEnv returns the router options configured through the environment.
// Unset variables contribute nothing.
func FromEnv() ([]opts.Option[Router], error) {
	var options []opts.Option[Router]
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		options = append(options, WithLogLevel(level))
	}
	return options, nil
}

package mediator

import (
	"context"
	"log/slog"

	"github.com/casualjim/mediator/pkg/slogx"
	json "github.com/goccy/go-json"
)

// LogErrors subscribes logger to every routed Error. A nil logger uses the
// router's logger.
func LogErrors(ctx context.Context, r *Router, logger *slog.Logger) Subscription {
	if logger == nil {
		logger = r.logger
	}
	return subscribe(ctx, r, "mediator.LogErrors", nil, false, func(ctx context.Context, e Error) error {
		attrs := []slog.Attr{slog.String("message_type", e.MessageType), slogx.Error(e.Err)}
		if b, err := json.Marshal(e); err == nil {
			attrs = append(attrs, slogx.ByteString("failure", b))
		}
		logger.LogAttrs(ctx, slog.LevelError, "subscriber failed", attrs...)
		return nil
	})
}

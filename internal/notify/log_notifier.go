package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier is the headless Notifier: it writes the notification to the
// log. The desktop builds plug in a platform notifier instead.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, title, body string) error {
	n.logger.Info().Str("title", title).Str("body", body).Msg("notification")
	return nil
}

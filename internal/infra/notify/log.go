// Package notify delivers workflow notifications. The log notifier is the
// default sink; deployments plug in a real channel by implementing
// usecase.Notifier.
package notify

import (
	"context"
	"log/slog"

	"github.com/hspiira/timeline-sub001/internal/usecase"
)

type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, subject, body string) error {
	n.log.InfoContext(ctx, "notification sent",
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

var _ usecase.Notifier = (*LogNotifier)(nil)

package notification

import (
	"context"
	"log/slog"

	"github.com/aurawellness/gamification-service/shared-libs/events"
)

// InboxSink writes notifications to the user's inbox.
type InboxSink struct {
	svc *Service
}

// NewInboxSink returns a sink backed by svc.
func NewInboxSink(svc *Service) *InboxSink {
	return &InboxSink{svc: svc}
}

func (s *InboxSink) Name() string { return "inbox" }

func (s *InboxSink) Deliver(ctx context.Context, req events.NotificationRequested) error {
	_, err := s.svc.CreateFromEvent(ctx, req)
	return err
}

// LogSink only logs notifications; useful when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that writes each notification to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, req events.NotificationRequested) error {
	s.logger.InfoContext(ctx, "notification",
		slog.String("userId", req.UserID),
		slog.String("title", req.Title),
		slog.String("message", req.Message),
		slog.String("type", req.Type),
		slog.String("source", req.Source),
	)
	return nil
}

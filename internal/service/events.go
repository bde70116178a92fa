package service

import (
	"context"
	"log/slog"

	"github.com/set-night/mindchat/internal/domain"
)

type EventType string

const (
	EventSessionsChanged EventType = "sessions.changed"
	EventFocusChanged    EventType = "focus.changed"
	EventMessageAppended EventType = "message.appended"
	EventLoadingChanged  EventType = "loading.changed"
)

// Event describes a coordinator state change. Events are delivered after
// the coordinator releases its lock, on the goroutine that made the change.
// Observers should return promptly.
type Event struct {
	Type      EventType
	OwnerID   int64
	SessionID int64
	// Message is set for EventMessageAppended.
	Message *domain.Message
	// Loading is set for EventLoadingChanged.
	Loading bool
}

type Observer interface {
	OnEvent(ctx context.Context, e Event)
}

type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) OnEvent(ctx context.Context, e Event) { f(ctx, e) }

type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}

// MultiObserver forwards events to every non-nil observer.
type MultiObserver []Observer

func NewMultiObserver(observers ...Observer) MultiObserver {
	out := make(MultiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m MultiObserver) OnEvent(ctx context.Context, e Event) {
	for _, o := range m {
		o.OnEvent(ctx, e)
	}
}

// SlogObserver logs every event at debug level.
type SlogObserver struct {
	logger *slog.Logger
}

func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger}
}

func (o *SlogObserver) OnEvent(ctx context.Context, e Event) {
	attrs := []slog.Attr{
		slog.Int64("owner_id", e.OwnerID),
		slog.Int64("session_id", e.SessionID),
	}
	switch e.Type {
	case EventLoadingChanged:
		attrs = append(attrs, slog.Bool("loading", e.Loading))
	case EventMessageAppended:
		if e.Message != nil {
			attrs = append(attrs,
				slog.String("role", string(e.Message.Role)),
				slog.String("stop_reason", e.Message.StopReason))
		}
	}
	o.logger.LogAttrs(ctx, slog.LevelDebug, string(e.Type), attrs...)
}

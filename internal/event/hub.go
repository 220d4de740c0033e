// Package event carries the auth domain's side-channel signals: per-attempt
// authentication events and one-shot telemetry.
package event

import (
	"context"
	"log/slog"
	"time"
)

// Kinds of authentication events.
const (
	KindAuthSuccess = "admin.auth.success"
	KindAuthFailure = "admin.auth.error"
)

// Event describes one authentication attempt. Events are emitted, never
// stored by this subsystem.
type Event struct {
	Kind     string
	Actor    string
	Provider string
	Time     time.Time
}

// Hub receives authentication events. Implementations must not block the
// emitting request.
type Hub interface {
	Emit(e Event)
}

// Telemetry sends one-shot usage signals, such as the first-admin-created
// marker emitted by the bootstrap flow.
type Telemetry interface {
	Send(ctx context.Context, name string)
}

// LogHub writes events to the default structured logger.
type LogHub struct{}

// Emit logs the event.
func (LogHub) Emit(e Event) {
	slog.Info("auth event",
		"kind", e.Kind,
		"actor", e.Actor,
		"provider", e.Provider,
		"time", e.Time,
	)
}

// LogTelemetry logs telemetry signals instead of shipping them anywhere.
type LogTelemetry struct{}

// Send logs the signal.
func (LogTelemetry) Send(_ context.Context, name string) {
	slog.Info("telemetry signal", "name", name)
}

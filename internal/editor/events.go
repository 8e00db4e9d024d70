package editor

import (
	"fmt"
	"strings"
	"time"

	"github.com/csicar/tables/internal/core/events/bus"
	"github.com/csicar/tables/internal/core/observability/log"
)

// Event types published by sessions.
const (
	EventLoaded    = "document.loaded"
	EventRecovered = "document.recovered"
	EventCommitted = "document.committed"
	EventSaved     = "document.saved"

	EventHistoryOpened   = "history.opened"
	EventHistoryMoved    = "history.moved"
	EventHistoryClosed   = "history.closed"
	EventHistoryRestored = "history.restored"
	EventCompacted       = "history.compacted"

	EventUpdateFailed = "update.failed"
)

const backupInfix = "-backup-"

// BackupKey names the copy of an unreadable document taken at t.
func BackupKey(key string, t time.Time) string {
	return fmt.Sprintf("%s%s%d", key, backupInfix, t.UnixMilli())
}

func IsBackupKey(key string) bool {
	return strings.Contains(key, backupInfix)
}

// EventLogger logs bus deliveries. Handler failures are warnings; sessions
// never fail an edit because a subscriber did.
type EventLogger struct {
	logger log.Log
}

func NewEventLogger(logger log.Log) *EventLogger {
	return &EventLogger{logger: logger}
}

func (l *EventLogger) OnDelivered(event bus.Event, handlers int, err error, duration time.Duration) {
	fields := []log.Field{
		log.String("event", event.Type),
		log.String("source", event.Source),
		log.Int("handlers", handlers),
		log.Duration("duration", duration),
	}
	if err != nil {
		l.logger.Warn("event handler failed", append(fields, log.Error(err))...)
		return
	}
	l.logger.Debug("event delivered", fields...)
}

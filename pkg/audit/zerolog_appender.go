package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// ZerologAppender дублирует записи журнала в диагностический логгер
type ZerologAppender struct {
	logger zerolog.Logger
}

// NewZerologAppender - создать appender поверх zerolog.Logger
func NewZerologAppender(logger zerolog.Logger) *ZerologAppender {
	return &ZerologAppender{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Append - записать entry; ERROR идет уровнем error, WARNING - warn, остальное - info
func (za *ZerologAppender) Append(ctx context.Context, entry *Entry) error {
	var ev *zerolog.Event
	switch entry.Category {
	case CategoryError:
		ev = za.logger.Error()
	case CategoryWarning, CategorySecurity:
		ev = za.logger.Warn()
	default:
		ev = za.logger.Info()
	}

	ev = ev.Str("category", string(entry.Category))
	if entry.User != "" {
		ev = ev.Str("user", entry.User)
	}
	if entry.Resource != "" {
		ev = ev.Str("resource", entry.Resource)
	}
	if entry.Operation != "" {
		ev = ev.Str("operation", string(entry.Operation))
	}
	if entry.RecordsAffected != 0 {
		ev = ev.Int64("records", entry.RecordsAffected)
	}
	if entry.ErrorMessage != "" {
		ev = ev.Str("error", entry.ErrorMessage)
	}

	ev.Msg(entry.Message)
	return nil
}

// Close - ничего не делает
func (za *ZerologAppender) Close() error {
	return nil
}

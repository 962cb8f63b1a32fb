package session

import "github.com/ruslano69/invmirror/pkg/notify"

// Event - уведомление для оболочки (строка статуса, ошибки, флаг изменений)
type Event interface {
	event()
}

// StatusEvent - текст строки состояния
type StatusEvent struct {
	Message string
}

// ErrorEvent - операция завершилась ошибкой
type ErrorEvent struct {
	Op      string
	Message string
	Err     error
}

// PendingChangesEvent - изменился флаг несохраненных изменений
type PendingChangesEvent struct {
	Pending bool
	Count   int
}

// LoadedEvent - таблица загружена
type LoadedEvent struct {
	Kind    Kind
	Table   string
	Records int
}

// SavedEvent - изменения сохранены
type SavedEvent struct {
	Table        string
	RowsAffected int64
}

func (StatusEvent) event()         {}
func (ErrorEvent) event()          {}
func (PendingChangesEvent) event() {}
func (LoadedEvent) event()         {}
func (SavedEvent) event()          {}

// toNotification - событие для внешних получателей; статусы не публикуются
func (s *Session) toNotification(e Event) (notify.Event, bool) {
	n := notify.Event{
		User:    s.identity.Username,
		Session: s.cfg.SessionID,
	}

	switch ev := e.(type) {
	case LoadedEvent:
		n.Type = notify.EventLoaded
		n.Table = ev.Table
		n.Records = ev.Records
	case SavedEvent:
		n.Type = notify.EventSaved
		n.Table = ev.Table
		n.RowsAffected = ev.RowsAffected
	case PendingChangesEvent:
		n.Type = notify.EventPendingChanges
		n.Pending = ev.Pending
		n.Records = ev.Count
	case ErrorEvent:
		n.Type = notify.EventError
		n.Message = ev.Message
	default:
		return notify.Event{}, false
	}

	if n.Table == "" {
		n.Table = s.table
	}
	return n, true
}

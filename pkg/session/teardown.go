package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruslano69/invmirror/pkg/audit"
	"github.com/ruslano69/invmirror/pkg/editgate"
	"github.com/ruslano69/invmirror/pkg/mirror"
)

// ErrCancelled - пользователь отменил операцию из-за несохраненных изменений
var ErrCancelled = errors.New("operation cancelled due to unsaved changes")

// Choice - решение по несохраненным изменениям
type Choice int

const (
	Cancel Choice = iota
	SaveChanges
	DiscardChanges
)

func (c Choice) String() string {
	switch c {
	case SaveChanges:
		return "Save"
	case DiscardChanges:
		return "Discard"
	default:
		return "Cancel"
	}
}

// Resolver выбирает, что делать с несохраненными изменениями
type Resolver func(pending *mirror.Delta) Choice

// Always - Resolver с фиксированным ответом
func Always(c Choice) Resolver {
	return func(*mirror.Delta) Choice { return c }
}

// Resolve закрывает несохраненные изменения перед сменой таблицы или закрытием.
// Без изменений resolver не вызывается. Cancel и неудачное сохранение
// возвращают ошибку, изменения при этом остаются.
func (s *Session) Resolve(ctx context.Context, resolver Resolver) error {
	var delta *mirror.Delta
	var busy bool
	if err := s.do(func() {
		busy = s.busy != ""
		if s.mirror != nil && s.mirror.HasPendingChanges() {
			delta = s.mirror.Changes()
		}
	}); err != nil {
		return err
	}
	if busy {
		return ErrBusy
	}
	if delta == nil {
		return nil
	}

	choice := Cancel
	if resolver != nil {
		choice = resolver(delta)
	}

	switch choice {
	case SaveChanges:
		s.note(audit.CategoryEdit, "User chose to save unsaved changes")
		// изменения могли остаться после выключения режима редактирования
		if s.EditState() != editgate.Editable {
			if err := s.EnableEdit(); err != nil {
				return err
			}
		}
		if _, err := s.Save(ctx); err != nil {
			return fmt.Errorf("save before continuing failed: %w", err)
		}
		return nil
	case DiscardChanges:
		s.note(audit.CategoryEdit, "User chose to discard unsaved changes")
		return s.Discard()
	default:
		s.note(audit.CategoryEdit, "User cancelled operation due to unsaved changes")
		return ErrCancelled
	}
}

func (s *Session) note(category audit.Category, message string) {
	s.log.LogMessage(string(category), message)
}

// Close закрывает сессию после Resolve. Если изменения не разрешены
// (Cancel или ошибка сохранения), сессия остается открытой.
func (s *Session) Close(ctx context.Context, resolver Resolver) error {
	if err := s.Resolve(ctx, resolver); err != nil {
		return err
	}
	s.shutdown()
	return nil
}

// shutdown останавливает goroutine-владельца и закрывает каналы событий
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.done
		close(s.events)
		if s.notes != nil {
			close(s.notes)
			<-s.notesDone
		}
		activeSessions.Dec()
		s.log.LogMessage(string(audit.CategorySystem), fmt.Sprintf("Session closed for user: %s", s.identity))
	})
}

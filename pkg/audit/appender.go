package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Appender - получатель записей журнала (файл сессии, zerolog, таблица БД)
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
	Close() error
}

// Flusher - appender с буфером
type Flusher interface {
	Flush() error
}

// Fanout раздает запись всем appenders; ошибка одного не мешает остальным.
// Набор appenders можно пополнять во время работы (журнал в БД подключается
// после соединения).
type Fanout struct {
	mu        sync.RWMutex
	appenders []Appender
}

// NewFanout создает Fanout; nil значения пропускаются
func NewFanout(appenders ...Appender) *Fanout {
	f := &Fanout{}
	for _, a := range appenders {
		f.Add(a)
	}
	return f
}

// Add добавляет appender
func (f *Fanout) Add(a Appender) {
	if a == nil {
		return
	}
	f.mu.Lock()
	f.appenders = append(f.appenders, a)
	f.mu.Unlock()
}

// Len - количество appenders
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.appenders)
}

func (f *Fanout) snapshot() []Appender {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Appender(nil), f.appenders...)
}

// Append пишет во все appenders и объединяет ошибки
func (f *Fanout) Append(ctx context.Context, entry *Entry) error {
	var errs []error
	for _, a := range f.snapshot() {
		if err := a.Append(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", a, err))
		}
	}
	return errors.Join(errs...)
}

// Flush сбрасывает буферы appenders, которые их имеют
func (f *Fanout) Flush() error {
	var errs []error
	for _, a := range f.snapshot() {
		if fl, ok := a.(Flusher); ok {
			if err := fl.Flush(); err != nil {
				errs = append(errs, fmt.Errorf("flush %T: %w", a, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close закрывает все appenders
func (f *Fanout) Close() error {
	var errs []error
	for _, a := range f.snapshot() {
		if err := a.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", a, err))
		}
	}
	return errors.Join(errs...)
}

// Package editgate - переключатель режима редактирования.
//
// Два состояния: ReadOnly (начальное) и Editable. Переход в Editable требует
// прав администратора и загруженной таблицы. Обратный переход безусловный.
package editgate

import (
	"errors"
	"sync"
)

// State - состояние шлюза
type State int

const (
	ReadOnly State = iota
	Editable
)

func (s State) String() string {
	if s == Editable {
		return "Editable"
	}
	return "ReadOnly"
}

// Сообщения для пользователя
const (
	MsgAccessDenied   = "Access denied. Administrator privileges required to edit data."
	MsgNotInitialized = "Service not properly initialized. Please load data first."
	MsgEnabled        = "Edit mode enabled - You can now modify data"
	MsgDisabled       = "Edit mode disabled - Data is read-only"
)

var (
	// ErrAccessDenied - пользователь не администратор
	ErrAccessDenied = errors.New("access denied: administrator privileges required")

	// ErrNotInitialized - таблица не загружена
	ErrNotInitialized = errors.New("not initialized: load data first")
)

// Message возвращает текст для пользователя по ошибке Enable
func Message(err error) string {
	switch {
	case err == nil:
		return MsgEnabled
	case errors.Is(err, ErrAccessDenied):
		return MsgAccessDenied
	case errors.Is(err, ErrNotInitialized):
		return MsgNotInitialized
	default:
		return err.Error()
	}
}

// Principal - тот, кто просит режим редактирования
type Principal interface {
	IsAdmin() bool
}

// Gate - шлюз режима редактирования
type Gate struct {
	mu        sync.RWMutex
	principal Principal
	state     State
}

// New создает шлюз в состоянии ReadOnly
func New(principal Principal) *Gate {
	return &Gate{principal: principal, state: ReadOnly}
}

// Enable переводит шлюз в Editable. Права проверяются первыми.
// При ошибке состояние не меняется.
func (g *Gate) Enable(loaded bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.principal == nil || !g.principal.IsAdmin() {
		return ErrAccessDenied
	}
	if !loaded {
		return ErrNotInitialized
	}

	g.state = Editable
	return nil
}

// Disable переводит шлюз в ReadOnly
func (g *Gate) Disable() {
	g.mu.Lock()
	g.state = ReadOnly
	g.mu.Unlock()
}

// Editable - разрешено ли изменение данных
func (g *Gate) Editable() bool {
	return g.State() == Editable
}

// State возвращает текущее состояние
func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// IsAdmin - есть ли у владельца шлюза права администратора
func (g *Gate) IsAdmin() bool {
	return g.principal != nil && g.principal.IsAdmin()
}

package mirror

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEditable - мутация при выключенном режиме редактирования
	ErrNotEditable = errors.New("edit mode is not enabled")

	// ErrTableNotFound - таблица отсутствует в БД
	ErrTableNotFound = errors.New("table not found")

	// ErrUnknownRow - handle не принадлежит зеркалу или строка уже удалена
	ErrUnknownRow = errors.New("unknown row")

	// ErrUnknownColumn - колонки нет в таблице
	ErrUnknownColumn = errors.New("unknown column")
)

// LoadError - ошибка загрузки таблицы. Оборачивает ошибку Gateway.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load table %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

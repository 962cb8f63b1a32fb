// Package reconcile сохраняет изменения зеркала в БД.
//
// Сохранение выполняется по принципу "все или ничего": все операторы идут в одной
// транзакции (удаления, затем обновления, затем вставки). Любая ошибка откатывает
// транзакцию и оставляет зеркало как было. UPDATE/DELETE, не затронувший ни одной
// строки, считается конфликтом (строку изменил или удалил кто-то другой).
// Для таблицы без первичного ключа конфликтом считается и оператор, затронувший
// больше одной строки.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/gateway"
	"github.com/ruslano69/invmirror/pkg/mirror"
)

var (
	// ErrNoData - таблица не загружена
	ErrNoData = errors.New("no data loaded to save")

	// ErrRowNotFound - строка изменена или удалена другим пользователем
	ErrRowNotFound = errors.New("row not found: it was changed or deleted by another user")

	// ErrAmbiguousRow - без первичного ключа запись совпала с несколькими строками
	ErrAmbiguousRow = errors.New("record matches several identical rows in a table without a primary key")
)

// SaveError - ошибка сохранения. Транзакция откачена, зеркало не изменено.
type SaveError struct {
	Table     string
	Statement string // безопасный текст оператора, на котором произошла ошибка
	Err       error
}

func (e *SaveError) Error() string {
	if e.Statement != "" {
		return fmt.Sprintf("save to %s failed at %q: %v", e.Table, e.Statement, e.Err)
	}
	return fmt.Sprintf("save to %s failed: %v", e.Table, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Gate - шлюз режима редактирования
type Gate interface {
	Editable() bool
	Disable()
}

// Executor - часть Gateway, нужная для сохранения
type Executor interface {
	Dialect() adapters.Dialect
	InTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx gateway.Execer) error) error
}

// Options - параметры сохранения
type Options struct {
	// Timeout на всю транзакцию (0 = таймаут Gateway по умолчанию)
	Timeout time.Duration
}

// Save сохраняет изменения зеркала и возвращает количество затронутых строк.
// После успеха baseline продвигается, а шлюз переходит в ReadOnly.
func Save(ctx context.Context, gate Gate, m *mirror.Mirror, exec Executor) (int64, error) {
	return SaveWithOptions(ctx, gate, m, exec, Options{})
}

// SaveWithOptions - Save с параметрами
func SaveWithOptions(ctx context.Context, gate Gate, m *mirror.Mirror, exec Executor, opts Options) (int64, error) {
	stmts, err := Prepare(gate, m, exec.Dialect())
	if err != nil {
		return 0, err
	}

	total, err := Execute(ctx, exec, m.Table(), stmts, opts)
	if err != nil {
		return 0, err
	}

	Commit(gate, m)
	return total, nil
}

// Prepare проверяет предусловия и строит операторы сохранения.
// Зеркало не меняется.
func Prepare(gate Gate, m *mirror.Mirror, dialect adapters.Dialect) ([]Statement, error) {
	if gate == nil || !gate.Editable() {
		return nil, mirror.ErrNotEditable
	}
	if m == nil {
		return nil, ErrNoData
	}

	stmts, err := Plan(m, dialect)
	if err != nil {
		return nil, &SaveError{Table: m.Table(), Err: err}
	}
	return stmts, nil
}

// Execute выполняет операторы в одной транзакции и возвращает количество
// затронутых строк. Зеркало не трогает, поэтому может работать вне
// goroutine-владельца зеркала.
func Execute(ctx context.Context, exec Executor, table string, stmts []Statement, opts Options) (int64, error) {
	if len(stmts) == 0 {
		return 0, nil
	}

	var total int64
	var failed *Statement
	err := exec.InTx(ctx, opts.Timeout, func(ctx context.Context, tx gateway.Execer) error {
		total = 0
		for i := range stmts {
			stmt := &stmts[i]
			n, err := tx.ExecuteNonQuery(ctx, stmt.SQL, stmt.Args)
			if err != nil {
				failed = stmt
				return err
			}
			if n == 0 && stmt.expectsRow() {
				failed = stmt
				return fmt.Errorf("%s record %d: %w", stmt.Kind, stmt.Handle, ErrRowNotFound)
			}
			if n > 1 && stmt.expectsRow() && !stmt.ByKey {
				failed = stmt
				return fmt.Errorf("%s record %d affected %d rows: %w", stmt.Kind, stmt.Handle, n, ErrAmbiguousRow)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		saveErr := &SaveError{Table: table, Err: err}
		if failed != nil {
			saveErr.Statement = gateway.SafeQuery(failed.SQL)
		}
		return 0, saveErr
	}
	return total, nil
}

// Commit продвигает baseline и переводит шлюз в ReadOnly
func Commit(gate Gate, m *mirror.Mirror) {
	m.Commit()
	if gate != nil {
		gate.Disable()
	}
}

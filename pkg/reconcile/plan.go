package reconcile

import (
	"fmt"
	"strings"

	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/ruslano69/invmirror/pkg/mirror"
	"github.com/ruslano69/invmirror/pkg/security"
)

// Kind - тип SQL оператора
type Kind int

const (
	Delete Kind = iota
	Update
	Insert
)

func (k Kind) String() string {
	switch k {
	case Delete:
		return "DELETE"
	case Update:
		return "UPDATE"
	case Insert:
		return "INSERT"
	default:
		return "UNKNOWN"
	}
}

// Statement - один оператор сохранения для одной строки
type Statement struct {
	Kind   Kind
	Handle mirror.Handle
	SQL    string
	Args   []any

	// ByKey - WHERE по первичному ключу. Иначе строка ищется по всем колонкам
	// и может совпасть с дубликатами.
	ByKey bool
}

// expectsRow - UPDATE/DELETE обязаны затронуть строку
func (s Statement) expectsRow() bool {
	return s.Kind == Delete || s.Kind == Update
}

// Plan строит операторы для всех изменений зеркала.
// Порядок: удаления, обновления, вставки.
func Plan(m *mirror.Mirror, dialect adapters.Dialect) ([]Statement, error) {
	if m == nil {
		return nil, ErrNoData
	}

	delta := m.Changes()
	if delta.Empty() {
		return nil, nil
	}

	if err := security.ValidateIdentifier(delta.Table); err != nil {
		return nil, err
	}
	for _, col := range delta.Columns {
		if err := security.ValidateIdentifier(col.Name); err != nil {
			return nil, fmt.Errorf("column: %w", err)
		}
	}

	keys, byKey := keyIndices(delta)
	b := &builder{
		dialect: dialect,
		table:   dialect.QualifyTable(delta.Table),
		columns: delta.Columns,
		keys:    keys,
		byKey:   byKey,
	}

	stmts := make([]Statement, 0, delta.Count())
	for _, c := range delta.Deletes {
		stmts = append(stmts, b.delete(c))
	}
	for _, c := range delta.Updates {
		stmts = append(stmts, b.update(c))
	}
	for _, c := range delta.Inserts {
		stmts = append(stmts, b.insert(c))
	}

	return stmts, nil
}

// keyIndices возвращает индексы колонок для WHERE и признак первичного ключа.
// Без первичного ключа строка определяется всеми колонками, кроме BLOB.
func keyIndices(delta *mirror.Delta) ([]int, bool) {
	var idx []int
	for _, k := range delta.Keys {
		if i := schema.Index(delta.Columns, k); i >= 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) > 0 {
		return idx, true
	}

	for i, col := range delta.Columns {
		if !schema.IsBlobType(col.Type) {
			idx = append(idx, i)
		}
	}
	return idx, false
}

type builder struct {
	dialect adapters.Dialect
	table   string
	columns []schema.Column
	keys    []int
	byKey   bool
}

func (b *builder) delete(c mirror.Change) Statement {
	where, args := b.where(c.Old, 0)
	return Statement{
		Kind:   Delete,
		Handle: c.Handle,
		SQL:    fmt.Sprintf("DELETE FROM %s WHERE %s", b.table, where),
		Args:   args,
		ByKey:  b.byKey,
	}
}

func (b *builder) update(c mirror.Change) Statement {
	sets := make([]string, 0, len(c.Changed))
	args := make([]any, 0, len(c.Changed)+len(b.keys))

	for _, i := range c.Changed {
		args = append(args, c.New[i])
		sets = append(sets, fmt.Sprintf("%s = %s",
			b.dialect.QuoteIdentifier(b.columns[i].Name), b.dialect.Placeholder(len(args))))
	}

	where, whereArgs := b.where(c.Old, len(args))
	args = append(args, whereArgs...)

	return Statement{
		Kind:   Update,
		Handle: c.Handle,
		SQL:    fmt.Sprintf("UPDATE %s SET %s WHERE %s", b.table, strings.Join(sets, ", "), where),
		Args:   args,
		ByKey:  b.byKey,
	}
}

// insert пропускает NULL колонки, чтобы сработали значения по умолчанию и IDENTITY.
// Строка целиком из NULL уходит как DEFAULT VALUES: решают ограничения БД.
func (b *builder) insert(c mirror.Change) Statement {
	var (
		names        []string
		placeholders []string
		args         []any
	)

	for i, v := range c.New {
		if v == nil {
			continue
		}
		args = append(args, v)
		names = append(names, b.dialect.QuoteIdentifier(b.columns[i].Name))
		placeholders = append(placeholders, b.dialect.Placeholder(len(args)))
	}

	if len(args) == 0 {
		return Statement{Kind: Insert, Handle: c.Handle, SQL: b.dialect.InsertDefaults(b.table)}
	}

	return Statement{
		Kind:   Insert,
		Handle: c.Handle,
		SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			b.table, strings.Join(names, ", "), strings.Join(placeholders, ", ")),
		Args: args,
	}
}

// where строит условие по baseline значениям; NULL → IS NULL.
// offset - количество уже занятых параметров.
func (b *builder) where(values []any, offset int) (string, []any) {
	conds := make([]string, 0, len(b.keys))
	var args []any

	for _, i := range b.keys {
		name := b.dialect.QuoteIdentifier(b.columns[i].Name)
		if values[i] == nil {
			conds = append(conds, name+" IS NULL")
			continue
		}
		args = append(args, values[i])
		conds = append(conds, fmt.Sprintf("%s = %s", name, b.dialect.Placeholder(offset+len(args))))
	}

	return strings.Join(conds, " AND "), args
}

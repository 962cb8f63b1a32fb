package mirror

import (
	"github.com/ruslano69/invmirror/pkg/core/schema"
)

// Handle - стабильный идентификатор строки зеркала.
// Не меняется при редактировании и не переиспользуется.
type Handle uint64

// RowState - состояние строки относительно baseline
type RowState int

const (
	Unchanged RowState = iota
	Added
	Modified
	Deleted
)

func (s RowState) String() string {
	switch s {
	case Unchanged:
		return "Unchanged"
	case Added:
		return "Added"
	case Modified:
		return "Modified"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Record - упорядоченное отображение колонка → значение.
// Снимок: изменения зеркала после получения Record на него не влияют.
type Record struct {
	Handle  Handle
	State   RowState
	columns []schema.Column
	values  []any
}

// Columns возвращает метаданные колонок
func (r Record) Columns() []schema.Column {
	return r.columns
}

// Get возвращает значение колонки по имени
func (r Record) Get(name string) (any, bool) {
	i := schema.Index(r.columns, name)
	if i < 0 || i >= len(r.values) {
		return nil, false
	}
	return r.values[i], true
}

// Text возвращает отображаемый текст значения ("" для NULL)
func (r Record) Text(name string) string {
	v, _ := r.Get(name)
	return schema.FormatValue(v)
}

// Values возвращает копию значений в порядке колонок
func (r Record) Values() []any {
	return copyValues(r.values)
}

// Texts возвращает отображаемый текст всех колонок
func (r Record) Texts() []string {
	out := make([]string, len(r.values))
	for i, v := range r.values {
		out[i] = schema.FormatValue(v)
	}
	return out
}

func copyValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			cp := make([]byte, len(b))
			copy(cp, b)
			v = cp
		}
		out[i] = v
	}
	return out
}

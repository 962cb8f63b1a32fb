package gateway

import (
	"github.com/ruslano69/invmirror/pkg/core/schema"
)

// Table - табличный результат запроса: метаданные колонок и строки
// с нормализованными значениями (nil, string, int64, float64, bool, time.Time, []byte)
type Table struct {
	Columns []schema.Column
	Rows    [][]any
}

// Len возвращает количество строк
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Value возвращает значение ячейки по имени колонки
func (t *Table) Value(row int, column string) (any, bool) {
	i := schema.Index(t.Columns, column)
	if i < 0 || row < 0 || row >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[row][i], true
}

// Strings возвращает строки таблицы в текстовом виде (для вывода и экспорта)
func (t *Table) Strings() [][]string {
	out := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		line := make([]string, len(row))
		for c, v := range row {
			line[c] = schema.FormatValue(v)
		}
		out[r] = line
	}
	return out
}

// Package export - выгрузка отображаемых строк таблицы: CSV, XLSX,
// HTML для печати, сжатие zstd и загрузка в S3.
//
// Экспорт работает со снимком (Snapshot), а не с живым Mirror:
// правки после снятия снимка на выгрузку не влияют.
package export

import (
	"time"

	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/ruslano69/invmirror/pkg/mirror"
)

// Snapshot - неизменяемая проекция отображаемых строк и видимых колонок
type Snapshot struct {
	Title     string
	Columns   []schema.Column
	Rows      [][]string
	CreatedAt time.Time
}

// NewSnapshot снимает копию записей. BLOB колонки в выгрузку не попадают.
func NewSnapshot(title string, columns []schema.Column, records []mirror.Record) *Snapshot {
	visible := make([]int, 0, len(columns))
	snap := &Snapshot{Title: title, CreatedAt: time.Now()}

	for i, col := range columns {
		if schema.IsBlobType(col.Type) {
			continue
		}
		visible = append(visible, i)
		snap.Columns = append(snap.Columns, col)
	}

	snap.Rows = make([][]string, 0, len(records))
	for _, rec := range records {
		texts := rec.Texts()
		row := make([]string, len(visible))
		for j, i := range visible {
			if i < len(texts) {
				row[j] = texts[i]
			}
		}
		snap.Rows = append(snap.Rows, row)
	}

	return snap
}

// Names - заголовки колонок
func (s *Snapshot) Names() []string {
	return schema.Names(s.Columns)
}

// Len - количество строк
func (s *Snapshot) Len() int {
	return len(s.Rows)
}

package mirror

import (
	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/ruslano69/invmirror/pkg/diff"
)

// Change - одна измененная строка
type Change struct {
	Handle  Handle
	Old     []any // baseline значения (nil для вставки)
	New     []any // текущие значения (nil для удаления)
	Changed []int // индексы измененных колонок (только для обновления)
}

// Delta - изменения зеркала относительно baseline
type Delta struct {
	Table   string
	Columns []schema.Column
	Keys    []string

	Deletes []Change // порядок baseline
	Updates []Change // текущий порядок
	Inserts []Change // текущий порядок

	Result *diff.DiffResult
}

func newDelta(table string, columns []schema.Column, keys []string, result *diff.DiffResult) *Delta {
	d := &Delta{
		Table:   table,
		Columns: columns,
		Keys:    keys,
		Result:  result,
	}

	for _, row := range result.Removed {
		d.Deletes = append(d.Deletes, Change{Handle: Handle(row.ID), Old: copyValues(row.Values)})
	}
	for _, mod := range result.Modified {
		d.Updates = append(d.Updates, Change{
			Handle:  Handle(mod.ID),
			Old:     copyValues(mod.OldRow),
			New:     copyValues(mod.NewRow),
			Changed: mod.ChangedColumns(),
		})
	}
	for _, row := range result.Added {
		d.Inserts = append(d.Inserts, Change{Handle: Handle(row.ID), New: copyValues(row.Values)})
	}

	return d
}

// Empty - изменений нет
func (d *Delta) Empty() bool {
	return d.Count() == 0
}

// Count - количество измененных строк
func (d *Delta) Count() int {
	return len(d.Deletes) + len(d.Updates) + len(d.Inserts)
}

// Summary возвращает текстовое описание изменений
func (d *Delta) Summary() string {
	return d.Result.FormatText()
}

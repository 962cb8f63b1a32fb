// Package diff сравнивает строки таблицы с их baseline (последним сохраненным состоянием).
//
// Строки идентифицируются не значением ключа, а стабильным ID (handle Mirror),
// поэтому изменение ключевой колонки - это Modified, а не пара Removed+Added.
package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ruslano69/invmirror/pkg/core/schema"
)

// Row - строка с идентификатором
type Row struct {
	ID     uint64
	Values []any
}

// DiffResult представляет результат сравнения baseline и текущих строк
type DiffResult struct {
	Added    []Row         // Добавленные строки (есть в current, нет в baseline), порядок current
	Removed  []Row         // Удалённые строки (есть в baseline, нет в current), порядок baseline
	Modified []ModifiedRow // Изменённые строки, порядок current
	Stats    DiffStats
	Columns  []schema.Column
}

// ModifiedRow представляет изменённую строку
type ModifiedRow struct {
	ID      uint64
	OldRow  []any
	NewRow  []any
	Changes map[int]FieldChange // Изменения по индексам колонок
}

// ChangedColumns возвращает индексы измененных колонок по возрастанию
func (m ModifiedRow) ChangedColumns() []int {
	idx := make([]int, 0, len(m.Changes))
	for i := range m.Changes {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// FieldChange представляет изменение одного поля
type FieldChange struct {
	FieldName string
	OldValue  any
	NewValue  any
}

// DiffStats содержит статистику сравнения
type DiffStats struct {
	TotalBaseline  int
	TotalCurrent   int
	AddedCount     int
	RemovedCount   int
	ModifiedCount  int
	UnchangedCount int
}

// DiffOptions опции для сравнения
type DiffOptions struct {
	// IgnoreColumns - не учитывать эти колонки при сравнении
	IgnoreColumns []string
}

// Differ выполняет сравнение
type Differ struct {
	options DiffOptions
}

// NewDiffer создаёт новый Differ
func NewDiffer(options DiffOptions) *Differ {
	return &Differ{
		options: options,
	}
}

// Compare сравнивает baseline с текущими строками по ID
func (d *Differ) Compare(columns []schema.Column, baseline, current []Row) *DiffResult {
	ignore := d.ignoredIndices(columns)

	result := &DiffResult{
		Columns: columns,
		Stats: DiffStats{
			TotalBaseline: len(baseline),
			TotalCurrent:  len(current),
		},
	}

	baseByID := make(map[uint64][]any, len(baseline))
	for _, row := range baseline {
		baseByID[row.ID] = row.Values
	}
	currentIDs := make(map[uint64]struct{}, len(current))

	for _, row := range current {
		currentIDs[row.ID] = struct{}{}

		old, existed := baseByID[row.ID]
		if !existed {
			result.Added = append(result.Added, row)
			result.Stats.AddedCount++
			continue
		}

		if changes := d.compareRows(columns, old, row.Values, ignore); len(changes) > 0 {
			result.Modified = append(result.Modified, ModifiedRow{
				ID:      row.ID,
				OldRow:  old,
				NewRow:  row.Values,
				Changes: changes,
			})
			result.Stats.ModifiedCount++
		} else {
			result.Stats.UnchangedCount++
		}
	}

	for _, row := range baseline {
		if _, ok := currentIDs[row.ID]; !ok {
			result.Removed = append(result.Removed, row)
			result.Stats.RemovedCount++
		}
	}

	return result
}

// ignoredIndices возвращает индексы игнорируемых колонок
func (d *Differ) ignoredIndices(columns []schema.Column) map[int]bool {
	ignore := make(map[int]bool, len(d.options.IgnoreColumns))
	for _, name := range d.options.IgnoreColumns {
		if i := schema.Index(columns, name); i >= 0 {
			ignore[i] = true
		}
	}
	return ignore
}

// compareRows сравнивает две строки и возвращает изменения
func (d *Differ) compareRows(columns []schema.Column, oldRow, newRow []any, ignore map[int]bool) map[int]FieldChange {
	var changes map[int]FieldChange

	n := len(oldRow)
	if len(newRow) > n {
		n = len(newRow)
	}

	for i := 0; i < n; i++ {
		if ignore[i] {
			continue
		}

		var oldVal, newVal any
		if i < len(oldRow) {
			oldVal = oldRow[i]
		}
		if i < len(newRow) {
			newVal = newRow[i]
		}

		if !Equal(oldVal, newVal) {
			if changes == nil {
				changes = make(map[int]FieldChange)
			}
			name := ""
			if i < len(columns) {
				name = columns[i].Name
			}
			changes[i] = FieldChange{
				FieldName: name,
				OldValue:  oldVal,
				NewValue:  newVal,
			}
		}
	}

	return changes
}

// FormatText форматирует результат в текстовый вид
func (r *DiffResult) FormatText() string {
	var sb strings.Builder

	sb.WriteString("=== Pending Changes ===\n")
	sb.WriteString(fmt.Sprintf("Baseline:   %d\n", r.Stats.TotalBaseline))
	sb.WriteString(fmt.Sprintf("Current:    %d\n", r.Stats.TotalCurrent))
	sb.WriteString(fmt.Sprintf("Added:      %d\n", r.Stats.AddedCount))
	sb.WriteString(fmt.Sprintf("Removed:    %d\n", r.Stats.RemovedCount))
	sb.WriteString(fmt.Sprintf("Modified:   %d\n", r.Stats.ModifiedCount))
	sb.WriteString(fmt.Sprintf("Unchanged:  %d\n\n", r.Stats.UnchangedCount))

	if len(r.Added) > 0 {
		sb.WriteString(fmt.Sprintf("=== Added (%d) ===\n", len(r.Added)))
		for _, row := range r.Added {
			sb.WriteString(fmt.Sprintf("+ %s\n", formatRow(row.Values)))
		}
		sb.WriteString("\n")
	}

	if len(r.Removed) > 0 {
		sb.WriteString(fmt.Sprintf("=== Removed (%d) ===\n", len(r.Removed)))
		for _, row := range r.Removed {
			sb.WriteString(fmt.Sprintf("- %s\n", formatRow(row.Values)))
		}
		sb.WriteString("\n")
	}

	if len(r.Modified) > 0 {
		sb.WriteString(fmt.Sprintf("=== Modified (%d) ===\n", len(r.Modified)))
		for _, mod := range r.Modified {
			sb.WriteString(fmt.Sprintf("~ %s\n", formatRow(mod.OldRow)))
			for _, idx := range mod.ChangedColumns() {
				change := mod.Changes[idx]
				sb.WriteString(fmt.Sprintf("  %s: '%s' → '%s'\n",
					change.FieldName, schema.FormatValue(change.OldValue), schema.FormatValue(change.NewValue)))
			}
		}
	}

	return sb.String()
}

func formatRow(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = schema.FormatValue(v)
	}
	return strings.Join(parts, " | ")
}

// IsEqual проверяет отсутствие изменений
func (r *DiffResult) IsEqual() bool {
	return r.Stats.AddedCount == 0 &&
		r.Stats.RemovedCount == 0 &&
		r.Stats.ModifiedCount == 0
}

// Package mirror - изменяемый снимок одной таблицы БД в памяти.
//
// Mirror хранит текущие строки и baseline (последнее сохраненное состояние).
// Состояние строки (Added/Modified/Deleted) не хранится, а вычисляется сравнением
// с baseline, поэтому правка, вернувшая значения к исходным, снимает пометку Modified.
//
// Mirror не потокобезопасен: им владеет одна сессия (см. pkg/session).
package mirror

import (
	"context"
	"fmt"

	"github.com/ruslano69/invmirror/pkg/adapters/base"
	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/ruslano69/invmirror/pkg/diff"
	"github.com/ruslano69/invmirror/pkg/gateway"
)

// Permit - разрешение на изменение данных (Edit Gate)
type Permit interface {
	Editable() bool
}

// Loader - часть Gateway, нужная для загрузки таблицы
type Loader interface {
	TableExists(ctx context.Context, name string) (bool, error)
	GetTableData(ctx context.Context, name string) (*gateway.Table, error)
	GetPrimaryKeys(ctx context.Context, name string) ([]string, error)
}

// Mirror - таблица в памяти с baseline
type Mirror struct {
	table   string
	columns []schema.Column
	keys    []string
	permit  Permit

	converter  *schema.Converter
	normalizer *base.ValueNormalizer

	next    Handle
	order   []Handle
	rows    map[Handle][]any
	fp      map[Handle]uint64
	touched map[Handle]bool

	baseOrder []Handle
	baseline  map[Handle][]any
	baseFP    map[Handle]uint64
}

// Load загружает таблицу целиком через Gateway. Baseline = загруженные строки.
func Load(ctx context.Context, loader Loader, table string, permit Permit) (*Mirror, error) {
	exists, err := loader.TableExists(ctx, table)
	if err != nil {
		return nil, &LoadError{Table: table, Err: err}
	}
	if !exists {
		return nil, &LoadError{Table: table, Err: ErrTableNotFound}
	}

	data, err := loader.GetTableData(ctx, table)
	if err != nil {
		return nil, &LoadError{Table: table, Err: err}
	}

	keys, err := loader.GetPrimaryKeys(ctx, table)
	if err != nil {
		return nil, &LoadError{Table: table, Err: err}
	}

	return New(table, data.Columns, data.Rows, keys, permit), nil
}

// New создает Mirror из уже полученных данных
func New(table string, columns []schema.Column, rows [][]any, keys []string, permit Permit) *Mirror {
	cols := make([]schema.Column, len(columns))
	copy(cols, columns)

	var keyNames []string
	for _, k := range keys {
		if i := schema.Index(cols, k); i >= 0 {
			cols[i].Key = true
			keyNames = append(keyNames, cols[i].Name)
		}
	}

	m := &Mirror{
		table:      table,
		columns:    cols,
		keys:       keyNames,
		permit:     permit,
		converter:  schema.NewConverter(),
		normalizer: base.NewValueNormalizer(),
		rows:       make(map[Handle][]any, len(rows)),
		fp:         make(map[Handle]uint64, len(rows)),
		touched:    make(map[Handle]bool),
	}

	for _, row := range rows {
		values := make([]any, len(cols))
		copy(values, row)

		h := m.newHandle()
		m.order = append(m.order, h)
		m.rows[h] = values
		m.fp[h] = diff.Fingerprint(values)
	}

	m.Commit()
	return m
}

// Table возвращает имя таблицы
func (m *Mirror) Table() string {
	return m.table
}

// Columns возвращает метаданные колонок
func (m *Mirror) Columns() []schema.Column {
	out := make([]schema.Column, len(m.columns))
	copy(out, m.columns)
	return out
}

// KeyColumns возвращает колонки первичного ключа (пусто если ключ не объявлен)
func (m *Mirror) KeyColumns() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len возвращает количество текущих (не удаленных) строк
func (m *Mirror) Len() int {
	return len(m.order)
}

// Handles возвращает handles текущих строк по порядку
func (m *Mirror) Handles() []Handle {
	out := make([]Handle, len(m.order))
	copy(out, m.order)
	return out
}

// Rows возвращает текущие строки по порядку
func (m *Mirror) Rows() []Record {
	out := make([]Record, 0, len(m.order))
	for _, h := range m.order {
		out = append(out, m.record(h))
	}
	return out
}

// Record возвращает текущую строку по handle
func (m *Mirror) Record(h Handle) (Record, error) {
	if _, ok := m.rows[h]; !ok {
		return Record{}, fmt.Errorf("record %d: %w", h, ErrUnknownRow)
	}
	return m.record(h), nil
}

func (m *Mirror) record(h Handle) Record {
	return Record{
		Handle:  h,
		State:   m.state(h),
		columns: m.columns,
		values:  copyValues(m.rows[h]),
	}
}

// State возвращает состояние строки относительно baseline
func (m *Mirror) State(h Handle) (RowState, error) {
	_, inCurrent := m.rows[h]
	_, inBaseline := m.baseline[h]
	if !inCurrent && !inBaseline {
		return Unchanged, fmt.Errorf("record %d: %w", h, ErrUnknownRow)
	}
	return m.state(h), nil
}

func (m *Mirror) state(h Handle) RowState {
	_, inCurrent := m.rows[h]
	_, inBaseline := m.baseline[h]

	switch {
	case inCurrent && !inBaseline:
		return Added
	case !inCurrent:
		return Deleted
	case m.modified(h):
		return Modified
	default:
		return Unchanged
	}
}

// modified сравнивает отпечатки, при совпадении подтверждает поэлементно
func (m *Mirror) modified(h Handle) bool {
	if !m.touched[h] {
		return false
	}
	if m.fp[h] != m.baseFP[h] {
		return true
	}
	return !diff.EqualRows(m.rows[h], m.baseline[h])
}

// ========== Mutations ==========

func (m *Mirror) checkEditable() error {
	if m.permit == nil || !m.permit.Editable() {
		return ErrNotEditable
	}
	return nil
}

// AddRow добавляет пустую строку (все значения NULL) в конец
func (m *Mirror) AddRow() (Handle, error) {
	if err := m.checkEditable(); err != nil {
		return 0, err
	}

	values := make([]any, len(m.columns))
	h := m.newHandle()
	m.order = append(m.order, h)
	m.rows[h] = values
	m.fp[h] = diff.Fingerprint(values)
	return h, nil
}

// RemoveRow удаляет строку. Строка из baseline становится Deleted,
// добавленная и еще не сохраненная - просто исчезает.
func (m *Mirror) RemoveRow(h Handle) error {
	if err := m.checkEditable(); err != nil {
		return err
	}

	idx := m.indexOf(h)
	if idx < 0 {
		return fmt.Errorf("record %d: %w", h, ErrUnknownRow)
	}

	m.order = append(m.order[:idx], m.order[idx+1:]...)
	delete(m.rows, h)
	delete(m.fp, h)
	delete(m.touched, h)
	return nil
}

// SetValue устанавливает значение колонки. Значение приводится к типу колонки
// так же, как значения, прочитанные из БД.
func (m *Mirror) SetValue(h Handle, column string, value any) error {
	if err := m.checkEditable(); err != nil {
		return err
	}

	row, col, err := m.cell(h, column)
	if err != nil {
		return err
	}

	m.set(h, row, col, m.normalizer.NormalizeValue(value, m.columns[col], ""))
	return nil
}

// SetText разбирает текст по типу колонки и устанавливает значение.
// Пустой текст для не текстовых колонок - NULL.
func (m *Mirror) SetText(h Handle, column, text string) error {
	if err := m.checkEditable(); err != nil {
		return err
	}

	row, col, err := m.cell(h, column)
	if err != nil {
		return err
	}

	value, err := m.converter.ParseText(text, m.columns[col])
	if err != nil {
		return fmt.Errorf("column %s: %w", m.columns[col].Name, err)
	}

	m.set(h, row, col, value)
	return nil
}

func (m *Mirror) cell(h Handle, column string) ([]any, int, error) {
	row, ok := m.rows[h]
	if !ok {
		return nil, 0, fmt.Errorf("record %d: %w", h, ErrUnknownRow)
	}
	col := schema.Index(m.columns, column)
	if col < 0 {
		return nil, 0, fmt.Errorf("%s.%s: %w", m.table, column, ErrUnknownColumn)
	}
	return row, col, nil
}

func (m *Mirror) set(h Handle, row []any, col int, value any) {
	// Копия строки: baseline и выданные Record не должны видеть правку
	updated := make([]any, len(row))
	copy(updated, row)
	updated[col] = value

	m.rows[h] = updated
	m.fp[h] = diff.Fingerprint(updated)
	if _, inBaseline := m.baseline[h]; inBaseline {
		m.touched[h] = true
	}
}

// ========== Baseline ==========

// HasPendingChanges - есть ли хоть одна строка, отличная от baseline
func (m *Mirror) HasPendingChanges() bool {
	kept := 0
	for _, h := range m.order {
		if _, inBaseline := m.baseline[h]; !inBaseline {
			return true
		}
		kept++
		if m.modified(h) {
			return true
		}
	}
	return kept != len(m.baseOrder)
}

// Changes вычисляет delta относительно baseline
func (m *Mirror) Changes() *Delta {
	baseline := make([]diff.Row, 0, len(m.baseOrder))
	for _, h := range m.baseOrder {
		baseline = append(baseline, diff.Row{ID: uint64(h), Values: m.baseline[h]})
	}
	current := make([]diff.Row, 0, len(m.order))
	for _, h := range m.order {
		current = append(current, diff.Row{ID: uint64(h), Values: m.rows[h]})
	}

	result := diff.NewDiffer(diff.DiffOptions{}).Compare(m.columns, baseline, current)
	return newDelta(m.table, m.Columns(), m.KeyColumns(), result)
}

// Commit переносит baseline на текущие строки. Вызывается после успешного сохранения.
func (m *Mirror) Commit() {
	m.baseOrder = make([]Handle, len(m.order))
	copy(m.baseOrder, m.order)

	m.baseline = make(map[Handle][]any, len(m.rows))
	m.baseFP = make(map[Handle]uint64, len(m.rows))
	for h, values := range m.rows {
		m.baseline[h] = copyValues(values)
		m.baseFP[h] = m.fp[h]
	}
	m.touched = make(map[Handle]bool)
}

// DiscardChanges возвращает все строки к baseline. Всегда успешно.
func (m *Mirror) DiscardChanges() {
	m.order = make([]Handle, len(m.baseOrder))
	copy(m.order, m.baseOrder)

	m.rows = make(map[Handle][]any, len(m.baseline))
	m.fp = make(map[Handle]uint64, len(m.baseline))
	for h, values := range m.baseline {
		m.rows[h] = copyValues(values)
		m.fp[h] = m.baseFP[h]
	}
	m.touched = make(map[Handle]bool)
}

func (m *Mirror) newHandle() Handle {
	m.next++
	return m.next
}

func (m *Mirror) indexOf(h Handle) int {
	for i, x := range m.order {
		if x == h {
			return i
		}
	}
	return -1
}

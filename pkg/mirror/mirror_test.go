package mirror

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/ruslano69/invmirror/pkg/gateway"
)

type permit bool

func (p permit) Editable() bool { return bool(p) }

func testColumns() []schema.Column {
	return []schema.Column{
		{Name: "ItemCode", Type: schema.TypeText},
		{Name: "ItemName", Type: schema.TypeText, Nullable: true},
		{Name: "Quantity", Type: schema.TypeInteger, Nullable: true},
	}
}

func newTestMirror(editable bool) *Mirror {
	rows := [][]any{
		{"S001", "Blue Pen", int64(10)},
		{"S002", "Red Pen", int64(5)},
		{"S003", "Stapler", nil},
	}
	return New("SuppliesInventory", testColumns(), rows, []string{"ItemCode"}, permit(editable))
}

type fakeLoader struct {
	exists    bool
	existsErr error
	dataErr   error
	table     *gateway.Table
	keys      []string
}

func (l *fakeLoader) TableExists(ctx context.Context, name string) (bool, error) {
	return l.exists, l.existsErr
}

func (l *fakeLoader) GetTableData(ctx context.Context, name string) (*gateway.Table, error) {
	return l.table, l.dataErr
}

func (l *fakeLoader) GetPrimaryKeys(ctx context.Context, name string) ([]string, error) {
	return l.keys, nil
}

func TestLoad(t *testing.T) {
	loader := &fakeLoader{
		exists: true,
		table: &gateway.Table{
			Columns: testColumns(),
			Rows:    [][]any{{"S001", "Blue Pen", int64(10)}},
		},
		keys: []string{"itemcode"},
	}

	m, err := Load(context.Background(), loader, "SuppliesInventory", permit(false))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Len() != 1 || m.Table() != "SuppliesInventory" {
		t.Errorf("Unexpected mirror: len=%d table=%s", m.Len(), m.Table())
	}
	if keys := m.KeyColumns(); len(keys) != 1 || keys[0] != "ItemCode" {
		t.Errorf("KeyColumns = %v", keys)
	}
	if !m.Columns()[0].Key {
		t.Error("ItemCode must be flagged as key")
	}
	if m.HasPendingChanges() {
		t.Error("Freshly loaded mirror must have no pending changes")
	}
}

func TestLoadErrors(t *testing.T) {
	queryErr := &gateway.QueryError{Op: "GetTableData", Err: errors.New("boom")}

	tests := []struct {
		name   string
		loader *fakeLoader
		target error
	}{
		{"missing table", &fakeLoader{exists: false}, ErrTableNotFound},
		{"query failure", &fakeLoader{exists: true, dataErr: queryErr}, queryErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.loader, "Missing", nil)
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Expected *LoadError, got %T (%v)", err, err)
			}
			if loadErr.Table != "Missing" {
				t.Errorf("Table = %q", loadErr.Table)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected wrapped %v, got %v", tt.target, err)
			}
		})
	}

	// Ошибка Gateway доступна через errors.As
	_, err := Load(context.Background(), &fakeLoader{exists: true, dataErr: queryErr}, "T", nil)
	var qe *gateway.QueryError
	if !errors.As(err, &qe) {
		t.Error("QueryError must propagate through LoadError")
	}
}

func TestMutationsRequireEditable(t *testing.T) {
	m := newTestMirror(false)
	h := m.Handles()[0]

	if _, err := m.AddRow(); !errors.Is(err, ErrNotEditable) {
		t.Errorf("AddRow: expected ErrNotEditable, got %v", err)
	}
	if err := m.RemoveRow(h); !errors.Is(err, ErrNotEditable) {
		t.Errorf("RemoveRow: expected ErrNotEditable, got %v", err)
	}
	if err := m.SetValue(h, "ItemName", "x"); !errors.Is(err, ErrNotEditable) {
		t.Errorf("SetValue: expected ErrNotEditable, got %v", err)
	}
	if err := m.SetText(h, "Quantity", "1"); !errors.Is(err, ErrNotEditable) {
		t.Errorf("SetText: expected ErrNotEditable, got %v", err)
	}

	if m.Len() != 3 || m.HasPendingChanges() {
		t.Error("Mirror must stay unchanged")
	}

	// nil permit - только чтение
	ro := New("T", testColumns(), nil, nil, nil)
	if _, err := ro.AddRow(); !errors.Is(err, ErrNotEditable) {
		t.Errorf("nil permit: expected ErrNotEditable, got %v", err)
	}
}

func TestAddRemoveScenario(t *testing.T) {
	m := newTestMirror(true)
	original := m.Handles()

	a1, err := m.AddRow()
	if err != nil {
		t.Fatalf("AddRow: %v", err)
	}
	a2, _ := m.AddRow()
	if err := m.RemoveRow(original[1]); err != nil {
		t.Fatalf("RemoveRow: %v", err)
	}

	if !m.HasPendingChanges() {
		t.Fatal("Expected pending changes")
	}
	if m.Len() != 4 {
		t.Errorf("Len = %d, want 4", m.Len())
	}

	if s, _ := m.State(a1); s != Added {
		t.Errorf("State(a1) = %s", s)
	}
	if s, _ := m.State(original[1]); s != Deleted {
		t.Errorf("State(deleted) = %s", s)
	}
	if _, err := m.Record(original[1]); !errors.Is(err, ErrUnknownRow) {
		t.Errorf("Deleted row must be absent, got %v", err)
	}

	delta := m.Changes()
	if len(delta.Inserts) != 2 || len(delta.Deletes) != 1 || len(delta.Updates) != 0 {
		t.Fatalf("Delta = %d inserts, %d deletes, %d updates", len(delta.Inserts), len(delta.Deletes), len(delta.Updates))
	}
	if delta.Inserts[0].Handle != a1 || delta.Inserts[1].Handle != a2 {
		t.Error("Inserts must follow current order")
	}
	if delta.Deletes[0].Old[0] != "S002" {
		t.Errorf("Delete carries baseline values, got %v", delta.Deletes[0].Old)
	}

	m.Commit()
	if m.HasPendingChanges() {
		t.Error("Commit must clear pending changes")
	}
	if s, _ := m.State(a1); s != Unchanged {
		t.Errorf("After commit State(a1) = %s", s)
	}
}

func TestRemoveAddedRowDiscardsIt(t *testing.T) {
	m := newTestMirror(true)

	h, _ := m.AddRow()
	if err := m.RemoveRow(h); err != nil {
		t.Fatalf("RemoveRow: %v", err)
	}

	if m.HasPendingChanges() {
		t.Error("Adding then removing a row must leave no changes")
	}
	if _, err := m.State(h); !errors.Is(err, ErrUnknownRow) {
		t.Errorf("Discarded row must be unknown, got %v", err)
	}
	if err := m.RemoveRow(h); !errors.Is(err, ErrUnknownRow) {
		t.Errorf("Second remove: expected ErrUnknownRow, got %v", err)
	}
}

func TestSetValueAndRevert(t *testing.T) {
	m := newTestMirror(true)
	h := m.Handles()[0]

	if err := m.SetText(h, "Quantity", "12"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if s, _ := m.State(h); s != Modified {
		t.Errorf("State = %s, want Modified", s)
	}

	delta := m.Changes()
	if len(delta.Updates) != 1 || len(delta.Updates[0].Changed) != 1 || delta.Updates[0].Changed[0] != 2 {
		t.Fatalf("Unexpected updates %+v", delta.Updates)
	}

	// Возврат к исходному значению (другой целый тип) снимает пометку
	if err := m.SetValue(h, "quantity", 10); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if s, _ := m.State(h); s != Unchanged {
		t.Errorf("State = %s, want Unchanged", s)
	}
	if m.HasPendingChanges() {
		t.Error("Reverted edit must not be pending")
	}
}

func TestSetTextErrors(t *testing.T) {
	m := newTestMirror(true)
	h := m.Handles()[0]

	if err := m.SetText(h, "Quantity", "many"); err == nil {
		t.Error("Expected parse error")
	}
	if err := m.SetText(h, "Missing", "1"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("Expected ErrUnknownColumn, got %v", err)
	}
	if err := m.SetText(Handle(999), "Quantity", "1"); !errors.Is(err, ErrUnknownRow) {
		t.Errorf("Expected ErrUnknownRow, got %v", err)
	}
	if m.HasPendingChanges() {
		t.Error("Failed edits must not change the mirror")
	}
}

func TestDiscardChanges(t *testing.T) {
	m := newTestMirror(true)
	before := m.Rows()
	handles := m.Handles()

	m.AddRow()
	m.RemoveRow(handles[0])
	m.SetText(handles[2], "ItemName", "Big Stapler")
	m.SetText(handles[2], "Quantity", "")

	m.DiscardChanges()

	if m.HasPendingChanges() {
		t.Fatal("DiscardChanges must clear pending changes")
	}
	after := m.Rows()
	if len(after) != len(before) {
		t.Fatalf("Len = %d, want %d", len(after), len(before))
	}
	for i := range before {
		if after[i].Handle != before[i].Handle {
			t.Errorf("Row %d handle = %d, want %d", i, after[i].Handle, before[i].Handle)
		}
		for _, col := range []string{"ItemCode", "ItemName", "Quantity"} {
			if after[i].Text(col) != before[i].Text(col) {
				t.Errorf("Row %d %s = %q, want %q", i, col, after[i].Text(col), before[i].Text(col))
			}
		}
	}

	// Handles не переиспользуются
	h, _ := m.AddRow()
	for _, old := range handles {
		if h == old {
			t.Errorf("Handle %d reused", h)
		}
	}
}

// Случайные последовательности AddRow/RemoveRow/SetText: признак изменений
// совпадает с дельтой на каждом шаге, DiscardChanges возвращает baseline.
func TestRandomEditSequences(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		m := newTestMirror(true)
		before := m.Rows()
		want := m.Len()

		for step := 0; step < 40; step++ {
			handles := m.Handles()
			switch op := rng.IntN(3); {
			case op == 0 || len(handles) == 0:
				if _, err := m.AddRow(); err != nil {
					t.Fatalf("seed %d step %d: AddRow: %v", seed, step, err)
				}
				want++
			case op == 1:
				if err := m.RemoveRow(handles[rng.IntN(len(handles))]); err != nil {
					t.Fatalf("seed %d step %d: RemoveRow: %v", seed, step, err)
				}
				want--
			default:
				text := []string{"", "Blue Pen", "Folder"}[rng.IntN(3)]
				if err := m.SetText(handles[rng.IntN(len(handles))], "ItemName", text); err != nil {
					t.Fatalf("seed %d step %d: SetText: %v", seed, step, err)
				}
			}

			if m.Len() != want {
				t.Fatalf("seed %d step %d: Len = %d, want %d", seed, step, m.Len(), want)
			}
			if pending, count := m.HasPendingChanges(), m.Changes().Count(); pending != (count > 0) {
				t.Fatalf("seed %d step %d: HasPendingChanges = %v with %d changes", seed, step, pending, count)
			}
		}

		m.DiscardChanges()
		if m.HasPendingChanges() || m.Changes().Count() != 0 {
			t.Fatalf("seed %d: changes left after DiscardChanges", seed)
		}
		after := m.Rows()
		if len(after) != len(before) {
			t.Fatalf("seed %d: Len = %d, want %d", seed, len(after), len(before))
		}
		for i := range before {
			if after[i].Handle != before[i].Handle {
				t.Errorf("seed %d: row %d handle = %d, want %d", seed, i, after[i].Handle, before[i].Handle)
			}
			for _, col := range []string{"ItemCode", "ItemName", "Quantity"} {
				if after[i].Text(col) != before[i].Text(col) {
					t.Errorf("seed %d: row %d %s = %q, want %q", seed, i, col, after[i].Text(col), before[i].Text(col))
				}
			}
		}
	}
}

func TestRecordIsSnapshot(t *testing.T) {
	m := newTestMirror(true)
	h := m.Handles()[0]

	rec, err := m.Record(h)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	m.SetText(h, "ItemName", "Green Pen")

	if rec.Text("ItemName") != "Blue Pen" {
		t.Errorf("Record changed after edit: %q", rec.Text("ItemName"))
	}
	if v, ok := rec.Get("quantity"); !ok || v != int64(10) {
		t.Errorf("Get(quantity) = %v, %v", v, ok)
	}
	if _, ok := rec.Get("Missing"); ok {
		t.Error("Get(Missing) must report false")
	}
	if texts := rec.Texts(); texts[2] != "10" {
		t.Errorf("Texts = %v", texts)
	}
}

func TestRowStateString(t *testing.T) {
	if Deleted.String() != "Deleted" || RowState(42).String() != "Unknown" {
		t.Error("Unexpected RowState names")
	}
}

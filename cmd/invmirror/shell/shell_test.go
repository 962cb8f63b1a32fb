package shell

import (
	"errors"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/ruslano69/invmirror/pkg/editgate"
	"github.com/ruslano69/invmirror/pkg/mirror"
	"github.com/ruslano69/invmirror/pkg/session"
)

type allow struct{}

func (allow) Editable() bool { return true }

func testMirror(t *testing.T) (*mirror.Mirror, []schema.Column) {
	t.Helper()
	columns := []schema.Column{
		{Name: "ItemCode", Type: schema.TypeVarchar, Nullable: false},
		{Name: "ItemName", Type: schema.TypeVarchar, Nullable: true},
		{Name: "Quantity", Type: schema.TypeInt, Nullable: true},
	}
	rows := [][]any{
		{"S001", "Blue Pen", int64(10)},
		{"S002", "Red Pen", nil},
	}
	return mirror.New("SuppliesInventory", columns, rows, []string{"ItemCode"}, allow{}), columns
}

func TestRenderGrid(t *testing.T) {
	m, columns := testMirror(t)

	modified := m.Handles()[0]
	if err := m.SetText(modified, "Quantity", "12"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	added, err := m.AddRow()
	if err != nil {
		t.Fatalf("AddRow: %v", err)
	}

	table := tview.NewTable()
	handles := renderGrid(table, columns, m.Rows())

	if len(handles) != 3 || table.GetRowCount() != 4 {
		t.Fatalf("handles=%d rows=%d, want 3 and 4", len(handles), table.GetRowCount())
	}
	if got := table.GetCell(0, 1).Text; got != "ItemName" {
		t.Errorf("Header cell = %q", got)
	}
	if table.GetCell(0, 0).NotSelectable != true {
		t.Error("Header must not be selectable")
	}

	if got := table.GetCell(1, 2).Text; got != "12" {
		t.Errorf("Modified quantity = %q", got)
	}
	if table.GetCell(1, 0).Color != tcell.ColorYellow {
		t.Error("Modified row must be yellow")
	}

	null := table.GetCell(2, 2)
	if null.Text != "NULL" || null.Color != tcell.ColorGray {
		t.Errorf("NULL cell = %q %v", null.Text, null.Color)
	}
	if table.GetCell(2, 0).Color != tcell.ColorWhite {
		t.Error("Unchanged row must be white")
	}

	if handles[2] != added || table.GetCell(3, 0).Color != tcell.ColorGreen {
		t.Error("Added row must be last and green")
	}
	if ref, _ := table.GetCell(3, 1).GetReference().(mirror.Handle); ref != added {
		t.Errorf("Cell reference = %v, want %v", ref, added)
	}
}

func TestColumnWidths(t *testing.T) {
	m, columns := testMirror(t)
	if err := m.SetText(m.Handles()[0], "ItemName", strings.Repeat("w", 60)); err != nil {
		t.Fatalf("SetText: %v", err)
	}

	widths := columnWidths(columns, m.Rows())
	want := []int{minColWidth, maxColWidth, minColWidth}
	for i := range want {
		if widths[i] != want[i] {
			t.Errorf("width[%d] = %d, want %d", i, widths[i], want[i])
		}
	}
}

func TestHeaderText(t *testing.T) {
	admin := auth.NewIdentity("admin", "Admin")

	text := headerText("Inventory", admin, session.Supplies, "SuppliesInventory", editgate.Editable, 2)
	for _, want := range []string{"admin (Admin)", "Table: SuppliesInventory (Supplies)", "EDIT", "2 unsaved change(s)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Header missing %q: %s", want, text)
		}
	}

	text = headerText("Inventory", auth.Guest(), "", "", editgate.ReadOnly, 0)
	if !strings.Contains(text, "READ-ONLY") || strings.Contains(text, "Table:") || strings.Contains(text, "unsaved") {
		t.Errorf("Guest header: %s", text)
	}
}

func TestChoiceFor(t *testing.T) {
	tests := []struct {
		label string
		want  session.Choice
	}{
		{"Save", session.SaveChanges},
		{"Discard", session.DiscardChanges},
		{"Cancel", session.Cancel},
		{"", session.Cancel},
	}
	for _, tt := range tests {
		if got := choiceFor(tt.label); got != tt.want {
			t.Errorf("choiceFor(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}

func TestLoginMessage(t *testing.T) {
	if got := loginMessage(auth.ErrInvalidPassword); got != "Invalid username or password" {
		t.Errorf("invalid password: %q", got)
	}
	if got := loginMessage(auth.ErrUnknownUser); got != "Invalid username or password" {
		t.Errorf("unknown user: %q", got)
	}
	if got := loginMessage(errors.New("timeout")); !strings.Contains(got, "timeout") {
		t.Errorf("other error: %q", got)
	}
}

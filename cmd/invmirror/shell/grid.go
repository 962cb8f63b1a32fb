package shell

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/ruslano69/invmirror/pkg/editgate"
	"github.com/ruslano69/invmirror/pkg/mirror"
	"github.com/ruslano69/invmirror/pkg/session"
)

const (
	maxColWidth = 40
	minColWidth = 8
)

// renderGrid заполняет таблицу: строка 0 - заголовок, далее записи.
// Возвращает handles в порядке строк таблицы (строка i+1 -> handles[i]).
func renderGrid(table *tview.Table, columns []schema.Column, rows []mirror.Record) []mirror.Handle {
	table.Clear()

	widths := columnWidths(columns, rows)
	for c, col := range columns {
		cell := tview.NewTableCell(col.Name).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold).
			SetTextColor(tcell.ColorYellow).
			SetMaxWidth(widths[c])
		table.SetCell(0, c, cell)
	}

	handles := make([]mirror.Handle, len(rows))
	for r, rec := range rows {
		handles[r] = rec.Handle
		base := rowColor(rec.State)
		for c, col := range columns {
			text := rec.Text(col.Name)
			color := base
			if v, _ := rec.Get(col.Name); v == nil {
				text = "NULL"
				color = tcell.ColorGray
			}
			table.SetCell(r+1, c, tview.NewTableCell(text).
				SetTextColor(color).
				SetMaxWidth(widths[c]).
				SetReference(rec.Handle))
		}
	}

	return handles
}

// rowColor - цвет строки по состоянию: новые зеленые, измененные желтые
func rowColor(state mirror.RowState) tcell.Color {
	switch state {
	case mirror.Added:
		return tcell.ColorGreen
	case mirror.Modified:
		return tcell.ColorYellow
	default:
		return tcell.ColorWhite
	}
}

// columnWidths - ширина по заголовку и первым строкам в пределах min..max
func columnWidths(columns []schema.Column, rows []mirror.Record) []int {
	widths := make([]int, len(columns))
	for c, col := range columns {
		w := len([]rune(col.Name))
		if w < minColWidth {
			w = minColWidth
		}
		for i := 0; i < len(rows) && i < 20; i++ {
			if n := len([]rune(rows[i].Text(col.Name))); n > w {
				w = n
			}
		}
		if w > maxColWidth {
			w = maxColWidth
		}
		widths[c] = w
	}
	return widths
}

// headerText - строка заголовка: приложение, пользователь, таблица, режим, изменения
func headerText(title string, id auth.Identity, kind session.Kind, table string, state editgate.State, pending int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[::b]%s[::-]  User: %s", title, tview.Escape(id.String()))

	if table != "" {
		fmt.Fprintf(&b, "  Table: %s (%s)", tview.Escape(table), kind)
	}

	if state == editgate.Editable {
		b.WriteString("  Mode: [green]EDIT[-]")
	} else {
		b.WriteString("  Mode: [red]READ-ONLY[-]")
	}

	if pending > 0 {
		fmt.Fprintf(&b, "  [yellow]● %d unsaved change(s)[-]", pending)
	}
	return b.String()
}

// helpLine - подсказка клавиш внизу экрана
const helpLine = "[yellow]1[-] Supplies  [yellow]2[-] Assets  [yellow]3[-] Accounts  " +
	"[yellow]e[-] Edit mode  [yellow]a[-] Add  [yellow]d[-] Delete  [yellow]Enter[-] Edit cell  " +
	"[yellow]s[-] Save  [yellow]u[-] Discard  [yellow]r[-] Reload  [yellow]/[-] Search  [yellow]x[-] Export  [yellow]q[-] Quit"

// choiceFor - ответ модального окна несохраненных изменений; Esc = Cancel
func choiceFor(label string) session.Choice {
	switch label {
	case session.SaveChanges.String():
		return session.SaveChanges
	case session.DiscardChanges.String():
		return session.DiscardChanges
	default:
		return session.Cancel
	}
}

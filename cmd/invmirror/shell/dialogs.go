package shell

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/ruslano69/invmirror/cmd/invmirror/commands"
	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/mirror"
	"github.com/ruslano69/invmirror/pkg/session"
)

// centered - примитив по центру экрана заданного размера
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (s *Shell) showDialog(p tview.Primitive, width, height int) {
	s.pages.AddPage(pageDialog, centered(p, width, height), true, true)
	s.app.SetFocus(p)
}

func (s *Shell) closeDialog() {
	s.pages.RemovePage(pageDialog)
	s.app.SetFocus(s.grid)
}

// ========== Вход ==========

func (s *Shell) loginForm() tview.Primitive {
	form := tview.NewForm()
	message := tview.NewTextView().SetDynamicColors(true)

	form.AddInputField("Username", "", 24, nil, nil).
		AddPasswordField("Password", "", 24, '*', nil)

	form.AddButton("Login", func() {
		username := strings.TrimSpace(form.GetFormItemByLabel("Username").(*tview.InputField).GetText())
		password := form.GetFormItemByLabel("Password").(*tview.InputField).GetText()
		if username == "" {
			message.SetText("[red]Please enter username")
			return
		}
		message.SetText("[yellow]Checking credentials...")

		go func() {
			id, err := s.opts.Auth.Login(s.ctx, username, password)
			s.app.QueueUpdateDraw(func() {
				if err != nil {
					s.opts.Logger.Warn().Str("user", username).Err(err).Msg("login failed")
					message.SetText("[red]" + tview.Escape(loginMessage(err)))
					return
				}
				s.startSession(id)
			})
		}()
	})
	form.AddButton("Guest", func() { s.startSession(auth.Guest()) })
	form.AddButton("Quit", func() { s.app.Stop() })

	form.SetBorder(true).SetTitle(" " + s.opts.Title + " - Login ")

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(message, 1, 0, false)
	return centered(layout, 50, 12)
}

// loginMessage - текст ошибки входа для пользователя
func loginMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrUnknownUser), errors.Is(err, auth.ErrInvalidPassword):
		return "Invalid username or password"
	case errors.Is(err, auth.ErrEmptyUsername):
		return "Please enter username"
	default:
		return fmt.Sprintf("Login failed: %v", err)
	}
}

// ========== Несохраненные изменения ==========

// askChoice - Resolver для модального окна Save/Discard/Cancel.
// Вызывается только из фоновой goroutine: ждет ответа пользователя.
func (s *Shell) askChoice(pending *mirror.Delta) session.Choice {
	answer := make(chan session.Choice, 1)

	s.app.QueueUpdateDraw(func() {
		modal := tview.NewModal().
			SetText(fmt.Sprintf("You have %d unsaved change(s).\n\nSave changes before continuing?", pending.Count())).
			AddButtons([]string{
				session.SaveChanges.String(),
				session.DiscardChanges.String(),
				session.Cancel.String(),
			}).
			SetDoneFunc(func(_ int, label string) {
				s.pages.RemovePage(pageResolve)
				s.app.SetFocus(s.grid)
				answer <- choiceFor(label)
			})
		s.pages.AddPage(pageResolve, modal, true, true)
		s.app.SetFocus(modal)
	})

	select {
	case c := <-answer:
		return c
	case <-s.ctx.Done():
		return session.Cancel
	}
}

// ========== Редактирование ==========

// editCell - форма значения ячейки; пустое значение не текстовой колонки = NULL
func (s *Shell) editCell(row, col int) {
	h, ok := s.selected()
	columns := s.sess.Columns()
	if !ok || col < 0 || col >= len(columns) {
		return
	}
	column := columns[col].Name

	rec, err := s.sess.Record(h)
	if err != nil {
		s.setStatus("[red]%s", tview.Escape(err.Error()))
		return
	}

	form := tview.NewForm()
	form.AddInputField(column, rec.Text(column), 40, nil, nil)
	form.AddButton("OK", func() {
		text := form.GetFormItem(0).(*tview.InputField).GetText()
		s.closeDialog()
		if err := s.sess.SetText(h, column, text); err != nil {
			return // ошибка приходит событием
		}
		s.refreshGrid()
		s.grid.Select(row, col)
	})
	form.AddButton("Cancel", s.closeDialog)
	form.SetCancelFunc(s.closeDialog)
	form.SetBorder(true).SetTitle(" Edit cell ")

	s.showDialog(form, 60, 7)
}

// confirmDelete - подтверждение удаления выбранной строки
func (s *Shell) confirmDelete() {
	h, ok := s.selected()
	if !ok {
		s.setStatus("[red]%s", session.ErrNoSelection)
		return
	}

	modal := tview.NewModal().
		SetText("Delete the selected record?").
		AddButtons([]string{"Delete", "Cancel"}).
		SetDoneFunc(func(_ int, label string) {
			s.closeDialog()
			if label != "Delete" {
				return
			}
			if _, err := s.sess.RemoveRows(h); err != nil {
				return
			}
			s.refreshGrid()
		})
	s.pages.AddPage(pageDialog, modal, true, true)
	s.app.SetFocus(modal)
}

// ========== Выгрузка ==========

// exportForm - выгрузка текущего вида (с учетом поиска) в CSV/XLSX/HTML
func (s *Shell) exportForm() {
	kind, _ := s.sess.Current()
	if kind == "" {
		s.setStatus("[red]Load a table before exporting")
		return
	}

	opts := s.opts.Export
	opts.Kind = kind
	defaultPath := commands.DefaultExportFile(opts.Dir, kind, time.Now())

	form := tview.NewForm()
	form.AddInputField("File", defaultPath, 50, nil, nil)
	form.AddInputField("Sheet", opts.Sheet, 20, nil, nil)
	form.AddCheckbox("Upload", opts.Uploader != nil, nil)

	form.AddButton("Export", func() {
		opts.OutputFile = strings.TrimSpace(form.GetFormItemByLabel("File").(*tview.InputField).GetText())
		opts.Sheet = form.GetFormItemByLabel("Sheet").(*tview.InputField).GetText()
		if !form.GetFormItemByLabel("Upload").(*tview.Checkbox).IsChecked() {
			opts.Uploader = nil
		}
		s.closeDialog()
		s.setStatus("[yellow]Exporting...")

		sess := s.sess
		go func() {
			var out bytes.Buffer
			_, err := commands.ExportSnapshot(s.ctx, sess, s.opts.Audit, opts, &out)
			s.app.QueueUpdateDraw(func() {
				if err != nil {
					s.setStatus("[red]%s", tview.Escape(err.Error()))
					return
				}
				s.setStatus("[green]%s", tview.Escape(strings.ReplaceAll(strings.TrimSpace(out.String()), "\n", "  ")))
			})
		}()
	})
	form.AddButton("Cancel", s.closeDialog)
	form.SetCancelFunc(s.closeDialog)
	form.SetBorder(true).SetTitle(fmt.Sprintf(" Export %s ", kind))

	s.showDialog(form, 70, 11)
}

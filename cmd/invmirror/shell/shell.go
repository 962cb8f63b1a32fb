// Package shell - терминальный интерфейс редактора: вход, таблица, поиск,
// режим редактирования, сохранение и выгрузка.
//
// Все вызовы сессии, которые ходят в БД (загрузка, сохранение, Resolve, Close),
// выполняются в отдельных goroutine; интерфейс обновляется через QueueUpdateDraw.
package shell

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"

	"github.com/ruslano69/invmirror/cmd/invmirror/commands"
	"github.com/ruslano69/invmirror/pkg/audit"
	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/editgate"
	"github.com/ruslano69/invmirror/pkg/mirror"
	"github.com/ruslano69/invmirror/pkg/session"
)

// Имена страниц
const (
	pageLogin   = "login"
	pageMain    = "main"
	pageDialog  = "dialog"
	pageResolve = "resolve"
)

// Options - зависимости интерфейса
type Options struct {
	Title string

	// Auth - вход по таблице Users (nil = только гость)
	Auth *auth.Service

	// Guest - сразу открыть гостевую сессию без окна входа
	Guest bool

	// NewSession открывает сессию для вошедшего пользователя
	NewSession func(auth.Identity) *session.Session

	// Export - каталог, сжатие и загрузка для клавиши x
	Export commands.ExportOptions

	Audit  audit.Logger
	Logger zerolog.Logger
}

// Shell - приложение tview
type Shell struct {
	opts Options
	ctx  context.Context

	app    *tview.Application
	pages  *tview.Pages
	header *tview.TextView
	status *tview.TextView
	grid   *tview.Table
	search *tview.InputField

	// изменяются только в goroutine интерфейса
	sess     *session.Session
	identity auth.Identity
	handles  []mirror.Handle
	pending  int
}

// New собирает интерфейс
func New(opts Options) *Shell {
	if opts.Title == "" {
		opts.Title = "Inventory Management System"
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewNullLogger()
	}

	s := &Shell{
		opts:   opts,
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		header: tview.NewTextView().SetDynamicColors(true),
		status: tview.NewTextView().SetDynamicColors(true),
		grid:   tview.NewTable().SetFixed(1, 0).SetSelectable(true, true),
		search: tview.NewInputField(),
	}

	s.grid.SetBorder(true)
	s.grid.SetSelectedFunc(func(row, col int) { s.editCell(row, col) })
	s.grid.SetInputCapture(s.gridKeys)

	s.search.SetLabel("Search: ").
		SetPlaceholder("Search...").
		SetFieldWidth(0).
		SetChangedFunc(func(text string) { s.applySearch(text) }).
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEscape {
				s.search.SetText("")
			}
			s.app.SetFocus(s.grid)
		})

	help := tview.NewTextView().SetDynamicColors(true).SetText(helpLine)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.header, 1, 0, false).
		AddItem(s.search, 1, 0, false).
		AddItem(s.grid, 0, 1, true).
		AddItem(s.status, 1, 0, false).
		AddItem(help, 1, 0, false)

	s.pages.AddPage(pageMain, layout, true, false)
	s.pages.AddPage(pageLogin, s.loginForm(), true, true)

	s.app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyCtrlC {
			s.quit()
			return nil
		}
		return ev
	})

	return s
}

// Run запускает интерфейс до выхода пользователя
func (s *Shell) Run(ctx context.Context) error {
	s.ctx = ctx

	if s.opts.Guest || s.opts.Auth == nil {
		s.pages.SwitchToPage(pageMain)
		s.startSession(auth.Guest())
	}

	err := s.app.SetRoot(s.pages, true).EnableMouse(true).Run()

	// выход без Close (ошибка терминала): несохраненные изменения не пишутся
	if s.sess != nil {
		s.sess.Close(context.Background(), session.Always(session.Cancel))
	}
	return err
}

// startSession открывает сессию пользователя и загружает Supplies
func (s *Shell) startSession(id auth.Identity) {
	s.identity = id
	s.sess = s.opts.NewSession(id)
	s.opts.Logger.Info().Str("user", id.Username).Str("role", id.Role).Msg("session started")

	go s.watch(s.sess)

	s.pages.SwitchToPage(pageMain)
	s.app.SetFocus(s.grid)
	s.refreshHeader()
	s.setStatus("[yellow]%s", fmt.Sprintf("Welcome, %s", tview.Escape(id.String())))
	s.open(session.Supplies)
}

// watch переносит события сессии в интерфейс; завершается после Close
func (s *Shell) watch(sess *session.Session) {
	for ev := range sess.Events() {
		ev := ev
		s.app.QueueUpdateDraw(func() { s.handleEvent(ev) })
	}
}

func (s *Shell) handleEvent(ev session.Event) {
	switch e := ev.(type) {
	case session.StatusEvent:
		s.setStatus("[green]%s", tview.Escape(e.Message))
	case session.ErrorEvent:
		s.setStatus("[red]%s", tview.Escape(e.Message))
	case session.PendingChangesEvent:
		s.pending = e.Count
		s.refreshHeader()
	case session.LoadedEvent:
		s.search.SetText("")
		s.refreshGrid()
		s.grid.Select(1, 0)
		s.refreshHeader()
	case session.SavedEvent:
		s.search.SetText("")
		s.refreshGrid()
		s.refreshHeader()
	}
}

// ========== Отображение ==========

func (s *Shell) setStatus(format string, args ...any) {
	s.status.SetText(fmt.Sprintf(format, args...))
}

func (s *Shell) refreshHeader() {
	if s.sess == nil {
		s.header.SetText(fmt.Sprintf("[::b]%s", s.opts.Title))
		return
	}
	kind, table := s.sess.Current()
	s.header.SetText(headerText(s.opts.Title, s.identity, kind, table, s.sess.EditState(), s.pending))
}

func (s *Shell) refreshGrid() {
	view, err := s.sess.View()
	if err != nil {
		s.setStatus("[red]%s", tview.Escape(err.Error()))
		return
	}
	s.handles = renderGrid(s.grid, s.sess.Columns(), view.Rows())

	kind, _ := s.sess.Current()
	title := fmt.Sprintf(" %s - %d records ", kind, view.Len())
	if view.Filtered() {
		title = fmt.Sprintf(" %s - %d records matching '%s' ", kind, view.Len(), tview.Escape(view.Query()))
	}
	s.grid.SetTitle(title)
}

// selected - handle выбранной строки
func (s *Shell) selected() (mirror.Handle, bool) {
	row, _ := s.grid.GetSelection()
	if row < 1 || row > len(s.handles) {
		return 0, false
	}
	return s.handles[row-1], true
}

// ========== Клавиши ==========

func (s *Shell) gridKeys(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() != tcell.KeyRune {
		return ev
	}

	switch ev.Rune() {
	case '1':
		s.open(session.Supplies)
	case '2':
		s.open(session.Assets)
	case '3':
		s.open(session.Accounts)
	case 'e':
		s.toggleEdit()
	case 'a':
		s.addRow()
	case 'd':
		s.confirmDelete()
	case 's':
		s.save()
	case 'u':
		s.discard()
	case 'r':
		if kind, _ := s.sess.Current(); kind != "" {
			s.open(kind)
		}
	case '/':
		s.app.SetFocus(s.search)
	case 'x':
		s.exportForm()
	case 'q':
		s.quit()
	default:
		return ev
	}
	return nil
}

// open загружает таблицу; сначала разрешаются несохраненные изменения
func (s *Shell) open(kind session.Kind) {
	sess := s.sess
	go func() {
		if err := sess.Resolve(s.ctx, s.askChoice); err != nil {
			s.queueError(err)
			return
		}
		progress := func(percent int, message string) {
			s.app.QueueUpdateDraw(func() {
				if percent == 0 {
					s.setStatus("[red]%s", tview.Escape(message))
					return
				}
				s.setStatus("[yellow]%d%%[-] %s", percent, tview.Escape(message))
			})
		}
		if err := sess.LoadTable(s.ctx, kind, progress); err != nil {
			s.opts.Logger.Debug().Err(err).Str("kind", string(kind)).Msg("load failed")
			if errors.Is(err, session.ErrBusy) {
				s.queueError(err)
			}
		}
	}()
}

func (s *Shell) toggleEdit() {
	var err error
	if s.sess.EditState() == editgate.Editable {
		err = s.sess.DisableEdit()
	} else {
		err = s.sess.EnableEdit()
	}
	if errors.Is(err, session.ErrBusy) {
		s.setStatus("[red]%s", err)
	}
	s.refreshHeader()
}

func (s *Shell) addRow() {
	h, err := s.sess.AddRow()
	if err != nil {
		return // сообщение приходит событием
	}
	s.refreshGrid()
	for i, handle := range s.handles {
		if handle == h {
			s.grid.Select(i+1, 0)
			break
		}
	}
}

func (s *Shell) discard() {
	if err := s.sess.Discard(); err != nil {
		s.setStatus("[red]%s", tview.Escape(editgate.Message(err)))
		return
	}
	s.refreshGrid()
}

func (s *Shell) save() {
	sess := s.sess
	go func() {
		if _, err := sess.Save(s.ctx); errors.Is(err, session.ErrBusy) {
			s.queueError(err)
		}
		s.app.QueueUpdateDraw(s.refreshHeader)
	}()
}

func (s *Shell) applySearch(text string) {
	if s.sess == nil {
		return
	}
	if _, err := s.sess.Search(text); err != nil {
		s.setStatus("[red]%s", tview.Escape(err.Error()))
		return
	}
	s.refreshGrid()
}

// quit закрывает сессию; при несохраненных изменениях спрашивает Save/Discard/Cancel
func (s *Shell) quit() {
	if s.sess == nil {
		s.app.Stop()
		return
	}

	sess, id := s.sess, s.identity
	go func() {
		if err := sess.Close(s.ctx, s.askChoice); err != nil {
			s.queueError(err)
			return
		}
		if s.opts.Auth != nil && !id.IsGuest() {
			s.opts.Auth.LogLogout(s.ctx, id)
		}
		s.app.QueueUpdateDraw(func() { s.sess = nil })
		s.app.Stop()
	}()
}

// queueError показывает ошибку из фоновой goroutine
func (s *Shell) queueError(err error) {
	msg := err.Error()
	if errors.Is(err, session.ErrCancelled) {
		msg = "Operation cancelled"
	}
	s.app.QueueUpdateDraw(func() { s.setStatus("[red]%s", tview.Escape(msg)) })
}

// Package session - сессия окна редактирования: одна таблица, шлюз режима
// редактирования, поиск и сохранение.
//
// Все состояние сессии (зеркало, запрос поиска, флаг занятости) принадлежит
// одной goroutine-владельцу, которая обрабатывает очередь команд. Публичные
// методы ставят команду в очередь и ждут ее выполнения. Запросы к БД при
// загрузке и сохранении выполняются вне goroutine-владельца, результат
// возвращается в очередь отдельной командой.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ruslano69/invmirror/pkg/audit"
	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/ruslano69/invmirror/pkg/editgate"
	"github.com/ruslano69/invmirror/pkg/export"
	"github.com/ruslano69/invmirror/pkg/mirror"
	"github.com/ruslano69/invmirror/pkg/notify"
	"github.com/ruslano69/invmirror/pkg/reconcile"
	"github.com/ruslano69/invmirror/pkg/search"
)

var (
	// ErrBusy - загрузка или сохранение еще выполняется
	ErrBusy = errors.New("another load or save is still in progress")

	// ErrClosed - сессия закрыта
	ErrClosed = errors.New("session is closed")

	// ErrPendingChanges - есть несохраненные изменения; сначала Resolve
	ErrPendingChanges = errors.New("table has unsaved changes")

	// ErrNoSelection - не выбраны строки для удаления
	ErrNoSelection = errors.New("no records selected")
)

// Сообщения для пользователя
const (
	MsgSaving       = "Saving changes to database..."
	MsgRowAdded     = "New record added - Please fill in the details"
	MsgRowsDeleted  = "Record(s) marked for deletion - Remember to save changes"
	MsgDiscarded    = "Changes discarded"
	MsgEnableFirst  = "Please enable edit mode first."
	MsgSelectRecord = "Please select a record to delete."
	MsgNoData       = "No data loaded to save."
)

// Gateway - операции БД, нужные сессии
type Gateway interface {
	mirror.Loader
	reconcile.Executor
}

// Progress получает процент и сообщение во время загрузки
type Progress func(percent int, message string)

// Config - настройки сессии
type Config struct {
	Identity auth.Identity
	Tables   Tables

	// Audit - журнал категорий (nil = без журнала)
	Audit audit.Logger

	// Publisher - внешние получатели событий (nil = не публиковать)
	Publisher notify.Publisher

	SessionID string

	// SaveTimeout - таймаут транзакции сохранения (0 = таймаут Gateway)
	SaveTimeout time.Duration

	// EventBuffer - размер канала событий (0 = 64). При переполнении события теряются.
	EventBuffer int
}

// Session - сессия одного окна
type Session struct {
	cfg      Config
	gw       Gateway
	identity auth.Identity
	log      audit.Logger
	gate     *editgate.Gate
	overlay  *search.Overlay

	cmds   chan func()
	quit   chan struct{}
	done   chan struct{}
	events chan Event

	notes     chan notify.Event
	notesDone chan struct{}

	closeOnce sync.Once

	// принадлежат goroutine-владельцу
	mirror  *mirror.Mirror
	kind    Kind
	table   string
	busy    string
	pending bool
}

// New открывает сессию и запускает goroutine-владельца
func New(gw Gateway, cfg Config) *Session {
	if cfg.Audit == nil {
		cfg.Audit = audit.NewNullLogger()
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}

	s := &Session{
		cfg:      cfg,
		gw:       gw,
		identity: cfg.Identity,
		log:      cfg.Audit,
		gate:     editgate.New(cfg.Identity),
		overlay:  &search.Overlay{},
		cmds:     make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		events:   make(chan Event, cfg.EventBuffer),
	}

	if cfg.Publisher != nil {
		s.notes = make(chan notify.Event, cfg.EventBuffer)
		s.notesDone = make(chan struct{})
		go s.publish()
	}

	activeSessions.Inc()
	go s.run()

	s.log.LogMessage(string(audit.CategoryInit), fmt.Sprintf("Session started for user: %s", cfg.Identity))
	return s
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case cmd := <-s.cmds:
			cmd()
		case <-s.quit:
			return
		}
	}
}

// do выполняет fn в goroutine-владельце и ждет завершения
func (s *Session) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.cmds <- func() {
		defer close(finished)
		fn()
	}:
	case <-s.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// publish доставляет события внешним получателям по порядку
func (s *Session) publish() {
	defer close(s.notesDone)
	for n := range s.notes {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.cfg.Publisher.Publish(ctx, n); err != nil {
			s.log.LogMessage(string(audit.CategoryWarning), fmt.Sprintf("Notification failed: %v", err))
		}
		cancel()
	}
}

// Events - канал уведомлений; закрывается после Close
func (s *Session) Events() <-chan Event {
	return s.events
}

// emit вызывается только из goroutine-владельца
func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
	}

	if s.notes == nil {
		return
	}
	if n, ok := s.toNotification(e); ok {
		select {
		case s.notes <- n:
		default:
			s.log.LogMessage(string(audit.CategoryWarning), "Notification queue full, event dropped")
		}
	}
}

func (s *Session) status(message string) {
	s.emit(StatusEvent{Message: message})
}

func (s *Session) fail(op, message string, err error) {
	s.log.LogMessage(string(audit.CategoryError), message)
	s.emit(ErrorEvent{Op: op, Message: message, Err: err})
}

// notePending сообщает об изменении флага несохраненных изменений
func (s *Session) notePending() {
	pending := s.mirror != nil && s.mirror.HasPendingChanges()
	if pending == s.pending {
		return
	}
	s.pending = pending
	count := 0
	if pending {
		count = s.mirror.Changes().Count()
	}
	s.emit(PendingChangesEvent{Pending: pending, Count: count})
}

// ========== Загрузка ==========

// LoadTable загружает таблицу и заменяет текущее зеркало.
// Несохраненные изменения не теряются: сначала нужно вызвать Resolve.
// Таблица учетных записей (с паролями) доступна только администратору.
func (s *Session) LoadTable(ctx context.Context, kind Kind, progress Progress) error {
	table, err := s.cfg.Tables.Name(kind)
	if err != nil {
		return err
	}

	var startErr error
	if err := s.do(func() {
		if !s.canRead(kind, table) {
			startErr = editgate.ErrAccessDenied
			message := fmt.Sprintf("Access to %s table '%s' denied for user: %s", Accounts, table, s.identity)
			s.log.Log(ctx, audit.NewEntry(audit.CategorySecurity, message).
				WithOperation(audit.OpLoad, audit.StatusFailure).
				WithUser(s.identity.Username).
				WithResource(table).
				WithSessionID(s.cfg.SessionID).
				WithError(startErr))
			s.emit(ErrorEvent{Op: "load", Message: message, Err: startErr})
			return
		}
		if s.busy != "" {
			startErr = ErrBusy
			return
		}
		if s.mirror != nil && s.mirror.HasPendingChanges() {
			startErr = ErrPendingChanges
			return
		}
		s.busy = "load"
	}); err != nil {
		return err
	}
	if startErr != nil {
		return startErr
	}

	report(progress, 40, fmt.Sprintf("Loading %s data...", strings.ToLower(string(kind))))

	started := time.Now()
	m, loadErr := mirror.Load(ctx, s.gw, table, s.gate)
	elapsed := time.Since(started)

	var message string
	if err := s.do(func() {
		s.busy = ""
		message = s.finishLoad(ctx, kind, table, m, loadErr, elapsed)
	}); err != nil {
		return err
	}

	observe("load", loadErr)
	if loadErr != nil {
		report(progress, 0, message)
		return loadErr
	}
	report(progress, 100, message)
	return nil
}

// canRead - таблица учетных записей, под своим видом или под чужим именем
func (s *Session) canRead(kind Kind, table string) bool {
	if s.identity.IsAdmin() {
		return true
	}
	accounts, _ := s.cfg.Tables.Name(Accounts)
	return kind != Accounts && !strings.EqualFold(table, accounts)
}

func (s *Session) finishLoad(ctx context.Context, kind Kind, table string, m *mirror.Mirror, err error, elapsed time.Duration) string {
	if err != nil {
		message := fmt.Sprintf("Error loading %s data from table '%s': %v", kind, table, err)
		s.log.Log(ctx, audit.NewEntry(audit.CategoryData, message).
			WithOperation(audit.OpLoad, audit.StatusFailure).
			WithUser(s.identity.Username).
			WithResource(table).
			WithDuration(elapsed).
			WithSessionID(s.cfg.SessionID).
			WithError(err))
		s.emit(ErrorEvent{Op: "load", Message: message, Err: err})
		return message
	}

	s.mirror = m
	s.kind = kind
	s.table = table
	s.gate.Disable()
	s.overlay.Reset()
	s.pending = false

	message := fmt.Sprintf("%s data loaded successfully - %d records", kind, m.Len())
	s.log.Log(ctx, audit.NewEntry(audit.CategoryData, message).
		WithOperation(audit.OpLoad, audit.StatusSuccess).
		WithUser(s.identity.Username).
		WithResource(table).
		WithRecordsAffected(int64(m.Len())).
		WithDuration(elapsed).
		WithSessionID(s.cfg.SessionID))

	s.emit(LoadedEvent{Kind: kind, Table: table, Records: m.Len()})
	s.status(message)
	s.emit(PendingChangesEvent{Pending: false})
	return message
}

// ReloadTable перезагружает текущую таблицу
func (s *Session) ReloadTable(ctx context.Context, progress Progress) error {
	var kind Kind
	if err := s.do(func() { kind = s.kind }); err != nil {
		return err
	}
	if kind == "" {
		return editgate.ErrNotInitialized
	}
	return s.LoadTable(ctx, kind, progress)
}

func report(progress Progress, percent int, message string) {
	if progress != nil {
		progress(percent, message)
	}
}

// ========== Режим редактирования ==========

// EnableEdit включает режим редактирования (только администратор, таблица загружена)
func (s *Session) EnableEdit() error {
	var result error
	if err := s.do(func() {
		if s.busy != "" {
			result = ErrBusy
			return
		}
		result = s.gate.Enable(s.mirror != nil)
		switch {
		case errors.Is(result, editgate.ErrAccessDenied):
			s.log.LogMessage(string(audit.CategorySecurity), "Unauthorized edit mode attempt")
			s.emit(ErrorEvent{Op: "edit", Message: editgate.Message(result), Err: result})
		case result != nil:
			s.emit(ErrorEvent{Op: "edit", Message: editgate.Message(result), Err: result})
		default:
			s.log.LogMessage(string(audit.CategoryEdit), "Edit mode enabled")
			s.status(editgate.MsgEnabled)
		}
	}); err != nil {
		return err
	}
	return result
}

// DisableEdit выключает режим редактирования. Несохраненные изменения остаются.
func (s *Session) DisableEdit() error {
	var result error
	if err := s.do(func() {
		if s.busy != "" {
			result = ErrBusy
			return
		}
		s.gate.Disable()
		s.log.LogMessage(string(audit.CategoryEdit), "Edit mode disabled")
		s.status(editgate.MsgDisabled)
	}); err != nil {
		return err
	}
	return result
}

// EditState - состояние шлюза
func (s *Session) EditState() editgate.State {
	return s.gate.State()
}

// ========== Изменения ==========

// mutate выполняет изменение зеркала в goroutine-владельце
func (s *Session) mutate(op string, fn func(m *mirror.Mirror) error) error {
	var result error
	if err := s.do(func() {
		switch {
		case s.busy != "":
			result = ErrBusy
			return
		case s.mirror == nil:
			result = editgate.ErrNotInitialized
			s.emit(ErrorEvent{Op: op, Message: editgate.MsgNotInitialized, Err: result})
			return
		}

		result = fn(s.mirror)
		if errors.Is(result, mirror.ErrNotEditable) {
			s.emit(ErrorEvent{Op: op, Message: MsgEnableFirst, Err: result})
			return
		}
		s.notePending()
	}); err != nil {
		return err
	}
	return result
}

// AddRow добавляет пустую строку
func (s *Session) AddRow() (mirror.Handle, error) {
	var h mirror.Handle
	err := s.mutate("add", func(m *mirror.Mirror) error {
		var err error
		if h, err = m.AddRow(); err != nil {
			return err
		}
		s.log.LogMessage(string(audit.CategoryEdit), "New record added to data table")
		s.status(MsgRowAdded)
		return nil
	})
	return h, err
}

// RemoveRows помечает строки на удаление. Неизвестный handle отменяет всю операцию.
func (s *Session) RemoveRows(handles ...mirror.Handle) (int, error) {
	if len(handles) == 0 {
		s.do(func() { s.emit(ErrorEvent{Op: "delete", Message: MsgSelectRecord, Err: ErrNoSelection}) })
		return 0, ErrNoSelection
	}

	count := 0
	err := s.mutate("delete", func(m *mirror.Mirror) error {
		for _, h := range handles {
			if _, err := m.Record(h); err != nil {
				s.fail("delete", fmt.Sprintf("Error deleting record: %v", err), err)
				return err
			}
		}
		for _, h := range handles {
			if err := m.RemoveRow(h); err != nil {
				return err
			}
			count++
		}
		s.log.LogMessage(string(audit.CategoryEdit), fmt.Sprintf("%d record(s) marked for deletion", count))
		s.status(MsgRowsDeleted)
		return nil
	})
	return count, err
}

// SetText записывает текст ячейки, разобранный по типу колонки
func (s *Session) SetText(h mirror.Handle, column, text string) error {
	return s.mutate("edit", func(m *mirror.Mirror) error {
		if err := m.SetText(h, column, text); err != nil {
			if !errors.Is(err, mirror.ErrNotEditable) {
				s.fail("edit", fmt.Sprintf("Invalid value for %s: %v", column, err), err)
			}
			return err
		}
		return nil
	})
}

// Discard отменяет все несохраненные изменения
func (s *Session) Discard() error {
	var result error
	if err := s.do(func() {
		switch {
		case s.busy != "":
			result = ErrBusy
			return
		case s.mirror == nil:
			result = editgate.ErrNotInitialized
			return
		}
		s.mirror.DiscardChanges()
		observe("discard", nil)
		s.log.LogMessage(string(audit.CategoryEdit), "Pending changes discarded")
		s.status(MsgDiscarded)
		s.notePending()
	}); err != nil {
		return err
	}
	return result
}

// ========== Сохранение ==========

// Save сохраняет изменения в одной транзакции. При успехе baseline продвигается,
// режим редактирования выключается, поиск сбрасывается.
func (s *Session) Save(ctx context.Context) (int64, error) {
	var (
		stmts   []reconcile.Statement
		table   string
		prepErr error
	)
	if err := s.do(func() {
		if s.busy != "" {
			prepErr = ErrBusy
			return
		}
		if s.mirror == nil {
			prepErr = reconcile.ErrNoData
			s.fail("save", MsgNoData, prepErr)
			return
		}
		stmts, prepErr = reconcile.Prepare(s.gate, s.mirror, s.gw.Dialect())
		if prepErr != nil {
			if errors.Is(prepErr, mirror.ErrNotEditable) {
				s.emit(ErrorEvent{Op: "save", Message: MsgEnableFirst, Err: prepErr})
			} else {
				s.fail("save", fmt.Sprintf("Save error: %v", prepErr), prepErr)
			}
			return
		}
		table = s.table
		s.busy = "save"
		s.status(MsgSaving)
		s.log.LogMessage(string(audit.CategoryDatabase), "Starting save operation...")
	}); err != nil {
		return 0, err
	}
	if prepErr != nil {
		observe("save", prepErr)
		return 0, prepErr
	}

	started := time.Now()
	n, execErr := reconcile.Execute(ctx, s.gw, table, stmts, reconcile.Options{Timeout: s.cfg.SaveTimeout})
	elapsed := time.Since(started)

	if err := s.do(func() {
		s.busy = ""
		s.finishSave(ctx, table, n, execErr, elapsed)
	}); err != nil {
		return 0, err
	}

	observe("save", execErr)
	if execErr != nil {
		return 0, execErr
	}
	rowsSaved.Add(float64(n))
	return n, nil
}

func (s *Session) finishSave(ctx context.Context, table string, n int64, err error, elapsed time.Duration) {
	entry := audit.NewEntry(audit.CategoryDatabase, "").
		WithUser(s.identity.Username).
		WithResource(table).
		WithDuration(elapsed).
		WithSessionID(s.cfg.SessionID)

	if err != nil {
		message := fmt.Sprintf("Database save error: %v", err)
		entry.Message = message
		s.log.Log(ctx, entry.WithOperation(audit.OpSave, audit.StatusFailure).WithError(err))
		s.emit(ErrorEvent{Op: "save", Message: message, Err: err})
		return
	}

	reconcile.Commit(s.gate, s.mirror)
	s.overlay.Reset()

	message := fmt.Sprintf("Changes saved successfully - %d rows affected", n)
	entry.Message = message
	s.log.Log(ctx, entry.WithOperation(audit.OpSave, audit.StatusSuccess).WithRecordsAffected(n))

	s.emit(SavedEvent{Table: table, RowsAffected: n})
	s.status(message)
	s.notePending()
}

// ========== Просмотр и поиск ==========

// Search применяет запрос поиска и возвращает отфильтрованное представление
func (s *Session) Search(text string) (search.View, error) {
	var view search.View
	err := s.do(func() {
		s.overlay.Set(text)
		view = s.overlay.View(s.mirror)
		if s.overlay.Active() {
			s.log.LogMessage(string(audit.CategorySearch),
				fmt.Sprintf("Search performed: '%s' - %d results found", strings.ToLower(s.overlay.Query()), view.Len()))
		}
	})
	return view, err
}

// ClearSearch сбрасывает поиск
func (s *Session) ClearSearch() (search.View, error) {
	var view search.View
	err := s.do(func() {
		s.overlay.Reset()
		view = s.overlay.View(s.mirror)
	})
	return view, err
}

// View - текущее представление (с учетом поиска и несохраненных правок)
func (s *Session) View() (search.View, error) {
	var view search.View
	err := s.do(func() { view = s.overlay.View(s.mirror) })
	return view, err
}

// Snapshot - снимок отображаемых строк для экспорта и печати
func (s *Session) Snapshot() (*export.Snapshot, error) {
	var (
		snap   *export.Snapshot
		result error
	)
	err := s.do(func() {
		if s.mirror == nil {
			result = editgate.ErrNotInitialized
			return
		}
		view := s.overlay.View(s.mirror)
		snap = export.NewSnapshot(string(s.kind), s.mirror.Columns(), view.Rows())
	})
	if err != nil {
		return nil, err
	}
	return snap, result
}

// PendingChanges - есть ли несохраненные изменения.
// Для закрытой сессии возвращает ErrClosed.
func (s *Session) PendingChanges() (bool, error) {
	var pending bool
	err := s.do(func() { pending = s.mirror != nil && s.mirror.HasPendingChanges() })
	return pending, err
}

// Changes - текущие изменения относительно baseline (nil если таблица не загружена)
func (s *Session) Changes() (*mirror.Delta, error) {
	var delta *mirror.Delta
	err := s.do(func() {
		if s.mirror != nil {
			delta = s.mirror.Changes()
		}
	})
	return delta, err
}

// Columns - колонки загруженной таблицы.
// После Close (ErrClosed) и до загрузки возвращает nil.
func (s *Session) Columns() []schema.Column {
	var cols []schema.Column
	s.do(func() {
		if s.mirror != nil {
			cols = s.mirror.Columns()
		}
	})
	return cols
}

// Record возвращает копию строки
func (s *Session) Record(h mirror.Handle) (mirror.Record, error) {
	var (
		rec    mirror.Record
		result error
	)
	if err := s.do(func() {
		if s.mirror == nil {
			result = editgate.ErrNotInitialized
			return
		}
		rec, result = s.mirror.Record(h)
	}); err != nil {
		return rec, err
	}
	return rec, result
}

// Current - загруженная таблица (Kind и имя в БД).
// После Close (ErrClosed) и до загрузки возвращает пустые значения.
func (s *Session) Current() (Kind, string) {
	var (
		kind  Kind
		table string
	)
	s.do(func() { kind, table = s.kind, s.table })
	return kind, table
}

// Identity - пользователь сессии
func (s *Session) Identity() auth.Identity {
	return s.identity
}

package session

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ruslano69/invmirror/pkg/adapters"
	_ "github.com/ruslano69/invmirror/pkg/adapters/sqlite"
	"github.com/ruslano69/invmirror/pkg/audit"
	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/editgate"
	"github.com/ruslano69/invmirror/pkg/gateway"
	"github.com/ruslano69/invmirror/pkg/mirror"
	"github.com/ruslano69/invmirror/pkg/notify"
	"github.com/ruslano69/invmirror/pkg/reconcile"
)

const seedSQL = `
	CREATE TABLE SuppliesInventory (
		ItemCode TEXT PRIMARY KEY,
		ItemName TEXT NOT NULL,
		Quantity INTEGER
	);
	INSERT INTO SuppliesInventory VALUES ('S001', 'Blue Pen', 10);
	INSERT INTO SuppliesInventory VALUES ('S002', 'Red Pen', 5);
	INSERT INTO SuppliesInventory VALUES ('S003', 'Stapler', NULL);
	CREATE TABLE AssetsInventory (AssetTag TEXT PRIMARY KEY, Description TEXT);
	INSERT INTO AssetsInventory VALUES ('A-1', 'Laptop');
`

// recorder - audit.Logger в памяти
type recorder struct {
	mu      sync.Mutex
	entries []*audit.Entry
}

func (r *recorder) Log(_ context.Context, e *audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *recorder) LogMessage(category, message string) {
	r.Log(context.Background(), audit.NewEntry(audit.Category(category), message))
}

func (r *recorder) Flush() error { return nil }
func (r *recorder) Close() error { return nil }

func (r *recorder) has(category audit.Category, substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Category == category && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// stubPublisher собирает опубликованные события
type stubPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *stubPublisher) Publish(_ context.Context, e notify.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

func (p *stubPublisher) types() []notify.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func newTestGateway(t *testing.T) *gateway.Gateway {
	t.Helper()
	ctx := context.Background()

	adapter, err := adapters.New(ctx, adapters.Config{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "session.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	t.Cleanup(func() { adapter.Close(ctx) })

	if _, err := adapter.DB().ExecContext(ctx, seedSQL); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}
	return gateway.New(adapter, gateway.Options{})
}

func newTestSession(t *testing.T, gw Gateway, id auth.Identity) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := New(gw, Config{Identity: id, Audit: rec, SessionID: "test"})
	t.Cleanup(func() { s.Close(context.Background(), Always(DiscardChanges)) })
	return s, rec
}

func admin() auth.Identity {
	return auth.NewIdentity("admin", auth.RoleAdmin)
}

func pending(t *testing.T, s *Session) bool {
	t.Helper()
	p, err := s.PendingChanges()
	if err != nil {
		t.Fatalf("PendingChanges: %v", err)
	}
	return p
}

type progressLog struct {
	percents []int
	messages []string
}

func (p *progressLog) report(percent int, message string) {
	p.percents = append(p.percents, percent)
	p.messages = append(p.messages, message)
}

func TestLoadTableProgress(t *testing.T) {
	ctx := context.Background()
	s, rec := newTestSession(t, newTestGateway(t), admin())

	var p progressLog
	if err := s.LoadTable(ctx, Supplies, p.report); err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	if len(p.percents) != 2 || p.percents[0] != 40 || p.percents[1] != 100 {
		t.Fatalf("Progress = %v", p.percents)
	}
	if p.messages[0] != "Loading supplies data..." {
		t.Errorf("Progress 40 message = %q", p.messages[0])
	}
	if p.messages[1] != "Supplies data loaded successfully - 3 records" {
		t.Errorf("Progress 100 message = %q", p.messages[1])
	}

	kind, table := s.Current()
	if kind != Supplies || table != "SuppliesInventory" {
		t.Errorf("Current = %s/%s", kind, table)
	}
	if !rec.has(audit.CategoryData, "Supplies data loaded successfully") {
		t.Error("Load must be logged in DATA category")
	}

	view, err := s.View()
	if err != nil || view.Len() != 3 {
		t.Errorf("View = %d, %v", view.Len(), err)
	}
}

func TestLoadTableMissing(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, newTestGateway(t), admin())
	s.cfg.Tables.Accounts = "NoSuchTable"

	var p progressLog
	err := s.LoadTable(ctx, Accounts, p.report)

	var loadErr *mirror.LoadError
	if !errors.As(err, &loadErr) || !errors.Is(err, mirror.ErrTableNotFound) {
		t.Fatalf("Expected LoadError/ErrTableNotFound, got %v", err)
	}
	if last := p.percents[len(p.percents)-1]; last != 0 {
		t.Errorf("Failure progress = %d, want 0", last)
	}
	if !strings.Contains(p.messages[len(p.messages)-1], "NoSuchTable") {
		t.Errorf("Failure message = %q", p.messages[len(p.messages)-1])
	}
}

func TestLoadAccountsRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	for _, q := range []string{
		"CREATE TABLE Users (Username TEXT PRIMARY KEY, Password TEXT, Role TEXT)",
		"INSERT INTO Users VALUES ('admin', 's3cret', 'Admin')",
	} {
		if _, err := gw.ExecuteNonQuery(ctx, q, nil, 0); err != nil {
			t.Fatalf("seed Users: %v", err)
		}
	}

	for _, id := range []auth.Identity{auth.Guest(), auth.NewIdentity("clerk", auth.RoleUser)} {
		t.Run(id.Username, func(t *testing.T) {
			s, rec := newTestSession(t, gw, id)

			if err := s.LoadTable(ctx, Accounts, nil); !errors.Is(err, editgate.ErrAccessDenied) {
				t.Fatalf("LoadTable(Accounts): expected ErrAccessDenied, got %v", err)
			}
			if _, err := s.Snapshot(); !errors.Is(err, editgate.ErrNotInitialized) {
				t.Errorf("Snapshot after denied load: expected ErrNotInitialized, got %v", err)
			}
			if !rec.has(audit.CategorySecurity, "denied") {
				t.Error("Denied load must be logged in SECURITY category")
			}

			// Та же таблица под видом Supplies тоже закрыта
			s.cfg.Tables.Supplies = "users"
			if err := s.LoadTable(ctx, Supplies, nil); !errors.Is(err, editgate.ErrAccessDenied) {
				t.Errorf("LoadTable(users as Supplies): expected ErrAccessDenied, got %v", err)
			}
		})
	}

	s, _ := newTestSession(t, gw, admin())
	if err := s.LoadTable(ctx, Accounts, nil); err != nil {
		t.Fatalf("admin LoadTable(Accounts): %v", err)
	}
	if snap, err := s.Snapshot(); err != nil || len(snap.Rows) != 1 {
		t.Errorf("admin Snapshot = %v, %v", snap, err)
	}
}

func TestQueriesAfterClose(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, newTestGateway(t), admin())
	if err := s.LoadTable(ctx, Supplies, nil); err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if err := s.Close(ctx, Always(DiscardChanges)); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := s.PendingChanges(); !errors.Is(err, ErrClosed) {
		t.Errorf("PendingChanges after Close: expected ErrClosed, got %v", err)
	}
	if _, err := s.Changes(); !errors.Is(err, ErrClosed) {
		t.Errorf("Changes after Close: expected ErrClosed, got %v", err)
	}
	if cols := s.Columns(); cols != nil {
		t.Errorf("Columns after Close = %v, want nil", cols)
	}
	if kind, table := s.Current(); kind != "" || table != "" {
		t.Errorf("Current after Close = %s/%s", kind, table)
	}
}

func TestSaveScenario(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s, rec := newTestSession(t, gw, admin())

	if err := s.LoadTable(ctx, Supplies, nil); err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if err := s.EnableEdit(); err != nil {
		t.Fatalf("EnableEdit: %v", err)
	}

	view, _ := s.View()
	original := view.Handles()

	for i, code := range []string{"S004", "S005"} {
		h, err := s.AddRow()
		if err != nil {
			t.Fatalf("AddRow %d: %v", i, err)
		}
		if err := s.SetText(h, "ItemCode", code); err != nil {
			t.Fatalf("SetText: %v", err)
		}
		if err := s.SetText(h, "ItemName", "Item "+code); err != nil {
			t.Fatalf("SetText: %v", err)
		}
	}
	if n, err := s.RemoveRows(original[1]); err != nil || n != 1 {
		t.Fatalf("RemoveRows = %d, %v", n, err)
	}

	if !pending(t, s) {
		t.Fatal("Expected pending changes")
	}

	n, err := s.Save(ctx)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != 3 {
		t.Errorf("Rows affected = %d, want 3", n)
	}
	if pending(t, s) {
		t.Error("No pending changes expected after save")
	}
	if s.EditState() != editgate.ReadOnly {
		t.Error("Edit mode must be disabled after save")
	}
	if !rec.has(audit.CategoryDatabase, "Changes saved successfully - 3 rows affected") {
		t.Error("Save must be logged")
	}

	v, _ := gw.ExecuteScalar(ctx, "SELECT COUNT(*) FROM SuppliesInventory", nil, 0)
	if v != int64(4) {
		t.Errorf("Rows in DB = %v, want 4", v)
	}
}

func TestEnableEditNonAdmin(t *testing.T) {
	ctx := context.Background()
	s, rec := newTestSession(t, newTestGateway(t), auth.NewIdentity("clerk", auth.RoleUser))

	if err := s.LoadTable(ctx, Supplies, nil); err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	drain(s)

	err := s.EnableEdit()
	if !errors.Is(err, editgate.ErrAccessDenied) {
		t.Fatalf("Expected ErrAccessDenied, got %v", err)
	}
	if s.EditState() != editgate.ReadOnly {
		t.Error("Gate must remain ReadOnly")
	}
	if !rec.has(audit.CategorySecurity, "Unauthorized edit mode attempt") {
		t.Error("Denied attempt must be logged as SECURITY")
	}

	ev := nextEvent(t, s, func(e Event) bool { _, ok := e.(ErrorEvent); return ok }).(ErrorEvent)
	if ev.Message != editgate.MsgAccessDenied {
		t.Errorf("Error message = %q", ev.Message)
	}
}

func TestEnableEditBeforeLoad(t *testing.T) {
	s, _ := newTestSession(t, newTestGateway(t), admin())

	if err := s.EnableEdit(); !errors.Is(err, editgate.ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if _, err := s.AddRow(); !errors.Is(err, editgate.ErrNotInitialized) {
		t.Errorf("AddRow before load: %v", err)
	}
	if _, err := s.Save(context.Background()); !errors.Is(err, reconcile.ErrNoData) {
		t.Errorf("Save before load: %v", err)
	}
}

func TestMutationsReadOnly(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, newTestGateway(t), admin())
	if err := s.LoadTable(ctx, Supplies, nil); err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	view, _ := s.View()

	if _, err := s.AddRow(); !errors.Is(err, mirror.ErrNotEditable) {
		t.Errorf("AddRow: %v", err)
	}
	if _, err := s.RemoveRows(view.Handles()[0]); !errors.Is(err, mirror.ErrNotEditable) {
		t.Errorf("RemoveRows: %v", err)
	}
	if _, err := s.Save(ctx); !errors.Is(err, mirror.ErrNotEditable) {
		t.Errorf("Save: %v", err)
	}
	if _, err := s.RemoveRows(); !errors.Is(err, ErrNoSelection) {
		t.Errorf("RemoveRows without selection: %v", err)
	}
	if pending(t, s) {
		t.Error("Mirror must be unchanged")
	}
}

func TestRemoveRowsUnknownHandle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, newTestGateway(t), admin())
	s.LoadTable(ctx, Supplies, nil)
	s.EnableEdit()

	view, _ := s.View()
	n, err := s.RemoveRows(view.Handles()[0], mirror.Handle(9999))
	if !errors.Is(err, mirror.ErrUnknownRow) || n != 0 {
		t.Errorf("RemoveRows = %d, %v", n, err)
	}
	if pending(t, s) {
		t.Error("Nothing must be removed when a handle is unknown")
	}
}

func TestSearchAndReset(t *testing.T) {
	ctx := context.Background()
	s, rec := newTestSession(t, newTestGateway(t), admin())
	s.LoadTable(ctx, Supplies, nil)

	view, err := s.Search("  BLUE ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if view.Len() != 1 || view.Rows()[0].Text("ItemName") != "Blue Pen" {
		t.Errorf("Search result = %d rows", view.Len())
	}
	if !rec.has(audit.CategorySearch, "Search performed: 'blue' - 1 results found") {
		t.Error("Search must be logged")
	}

	snap, err := s.Snapshot()
	if err != nil || snap.Len() != 1 || snap.Title != "Supplies" {
		t.Errorf("Snapshot must follow the filtered view: %v, %v", snap, err)
	}

	for _, q := range []string{"", "   ", "Search..."} {
		v, _ := s.Search(q)
		if v.Len() != 3 || v.Filtered() {
			t.Errorf("Search(%q) = %d rows", q, v.Len())
		}
	}

	s.Search("pen")
	if err := s.ReloadTable(ctx, nil); err != nil {
		t.Fatalf("ReloadTable: %v", err)
	}
	view, _ = s.View()
	if view.Filtered() || view.Len() != 3 {
		t.Error("Reload must reset the search overlay")
	}

	view, _ = s.ClearSearch()
	if view.Len() != 3 {
		t.Errorf("ClearSearch = %d rows", view.Len())
	}
}

func TestLoadWithPendingChanges(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, newTestGateway(t), admin())
	s.LoadTable(ctx, Supplies, nil)
	s.EnableEdit()
	s.AddRow()

	if err := s.LoadTable(ctx, Assets, nil); !errors.Is(err, ErrPendingChanges) {
		t.Fatalf("Expected ErrPendingChanges, got %v", err)
	}

	if err := s.Resolve(ctx, Always(Cancel)); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Expected ErrCancelled, got %v", err)
	}
	if !pending(t, s) {
		t.Fatal("Cancel must keep pending changes")
	}

	if err := s.Resolve(ctx, Always(DiscardChanges)); err != nil {
		t.Fatalf("Resolve discard: %v", err)
	}
	if err := s.LoadTable(ctx, Assets, nil); err != nil {
		t.Fatalf("LoadTable after discard: %v", err)
	}
	if kind, _ := s.Current(); kind != Assets {
		t.Errorf("Current = %s", kind)
	}
}

func TestCloseResolvesPendingChanges(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s := New(gw, Config{Identity: admin()})

	s.LoadTable(ctx, Supplies, nil)
	s.EnableEdit()
	view, _ := s.View()
	if err := s.SetText(view.Handles()[0], "Quantity", "42"); err != nil {
		t.Fatalf("SetText: %v", err)
	}

	var called bool
	err := s.Close(ctx, func(d *mirror.Delta) Choice {
		called = true
		if d.Count() != 1 {
			t.Errorf("Resolver delta count = %d", d.Count())
		}
		return Cancel
	})
	if !errors.Is(err, ErrCancelled) || !called {
		t.Fatalf("Close with cancel = %v (called %v)", err, called)
	}

	// сессия остается открытой
	if !pending(t, s) {
		t.Fatal("Session must stay open with pending changes")
	}

	// изменения остаются после выключения режима редактирования и сохраняются при закрытии
	s.DisableEdit()
	if err := s.Close(ctx, Always(SaveChanges)); err != nil {
		t.Fatalf("Close with save: %v", err)
	}

	v, _ := gw.ExecuteScalar(ctx, "SELECT Quantity FROM SuppliesInventory WHERE ItemCode = 'S001'", nil, 0)
	if v != int64(42) {
		t.Errorf("Quantity = %v, want 42", v)
	}

	if _, err := s.View(); !errors.Is(err, ErrClosed) {
		t.Errorf("View after close: %v", err)
	}
	// канал закрыт после вычитывания буфера
	for range s.Events() {
	}
}

func TestCloseFailedSaveKeepsSession(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	s, _ := newTestSession(t, gw, admin())

	s.LoadTable(ctx, Supplies, nil)
	s.EnableEdit()
	h, _ := s.AddRow()
	s.SetText(h, "ItemCode", "S001") // дубликат ключа
	s.SetText(h, "ItemName", "Duplicate")

	err := s.Close(ctx, Always(SaveChanges))
	if err == nil {
		t.Fatal("Expected save failure")
	}
	if !pending(t, s) {
		t.Error("Failed save must keep pending changes and the session open")
	}
}

// blockingGateway задерживает загрузку до release
type blockingGateway struct {
	*gateway.Gateway
	started chan struct{}
	release chan struct{}
}

func (g *blockingGateway) GetTableData(ctx context.Context, name string) (*gateway.Table, error) {
	close(g.started)
	<-g.release
	return g.Gateway.GetTableData(ctx, name)
}

func TestBusy(t *testing.T) {
	ctx := context.Background()
	gw := &blockingGateway{
		Gateway: newTestGateway(t),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s, _ := newTestSession(t, gw, admin())

	loadErr := make(chan error, 1)
	go func() { loadErr <- s.LoadTable(ctx, Supplies, nil) }()
	<-gw.started

	if err := s.LoadTable(ctx, Assets, nil); !errors.Is(err, ErrBusy) {
		t.Errorf("Second load: expected ErrBusy, got %v", err)
	}
	if _, err := s.Save(ctx); !errors.Is(err, ErrBusy) {
		t.Errorf("Save during load: expected ErrBusy, got %v", err)
	}
	if err := s.EnableEdit(); !errors.Is(err, ErrBusy) {
		t.Errorf("EnableEdit during load: expected ErrBusy, got %v", err)
	}

	// чтение не блокируется загрузкой
	if pending(t, s) {
		t.Error("No pending changes expected")
	}

	close(gw.release)
	if err := <-loadErr; err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
}

func TestEventsAndNotifications(t *testing.T) {
	ctx := context.Background()
	pub := &stubPublisher{}
	s := New(newTestGateway(t), Config{Identity: admin(), Publisher: pub, SessionID: "s1"})

	s.LoadTable(ctx, Supplies, nil)
	s.EnableEdit()
	h, _ := s.AddRow()
	s.SetText(h, "ItemCode", "S009")
	s.SetText(h, "ItemName", "Tape")
	if _, err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Close(ctx, nil); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got []string
	for e := range s.Events() {
		switch ev := e.(type) {
		case LoadedEvent:
			got = append(got, "loaded")
			if ev.Records != 3 || ev.Table != "SuppliesInventory" {
				t.Errorf("LoadedEvent = %+v", ev)
			}
		case SavedEvent:
			got = append(got, "saved")
			if ev.RowsAffected != 1 {
				t.Errorf("SavedEvent = %+v", ev)
			}
		case PendingChangesEvent:
			if ev.Pending {
				got = append(got, "pending")
			} else {
				got = append(got, "clean")
			}
		}
	}
	if strings.Join(got, ",") != "loaded,clean,pending,saved,clean" {
		t.Errorf("Events = %v", got)
	}

	types := pub.types()
	want := []notify.EventType{notify.EventLoaded, notify.EventPendingChanges, notify.EventPendingChanges, notify.EventSaved, notify.EventPendingChanges}
	if len(types) != len(want) {
		t.Fatalf("Published = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("Published[%d] = %s, want %s", i, types[i], want[i])
		}
	}

	pub.mu.Lock()
	first := pub.events[0]
	pub.mu.Unlock()
	if first.User != "admin" || first.Session != "s1" || first.Table != "SuppliesInventory" {
		t.Errorf("Notification = %+v", first)
	}
}

func TestParseKindAndTables(t *testing.T) {
	k, err := ParseKind(" assets ")
	if err != nil || k != Assets {
		t.Errorf("ParseKind = %s, %v", k, err)
	}
	if _, err := ParseKind("orders"); err == nil {
		t.Error("Expected error for unknown kind")
	}

	tables := Tables{Assets: "Equipment"}
	if name, _ := tables.Name(Assets); name != "Equipment" {
		t.Errorf("Assets = %s", name)
	}
	if name, _ := tables.Name(Supplies); name != "SuppliesInventory" {
		t.Errorf("Supplies default = %s", name)
	}
	if name, _ := tables.Name(Accounts); name != "Users" {
		t.Errorf("Accounts default = %s", name)
	}
}

func drain(s *Session) {
	for {
		select {
		case <-s.Events():
		default:
			return
		}
	}
}

func nextEvent(t *testing.T, s *Session, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-s.Events():
			if match(e) {
				return e
			}
		case <-timeout:
			t.Fatal("Timed out waiting for event")
			return nil
		}
	}
}

package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ruslano69/invmirror/pkg/adapters"
	_ "github.com/ruslano69/invmirror/pkg/adapters/sqlite"
	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/editgate"
	"github.com/ruslano69/invmirror/pkg/gateway"
	"github.com/ruslano69/invmirror/pkg/security"
	"github.com/ruslano69/invmirror/pkg/session"
)

func newTestGateway(t *testing.T) *gateway.Gateway {
	t.Helper()
	ctx := context.Background()

	adapter, err := adapters.New(ctx, adapters.Config{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "commands.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	t.Cleanup(func() { adapter.Close(ctx) })

	_, err = adapter.DB().ExecContext(ctx, `
		CREATE TABLE SuppliesInventory (ItemCode TEXT PRIMARY KEY, ItemName TEXT NOT NULL, Quantity INTEGER);
		INSERT INTO SuppliesInventory VALUES ('S001', 'Blue Pen', 10);
		INSERT INTO SuppliesInventory VALUES ('S002', 'Red Pen', 5);
		INSERT INTO SuppliesInventory VALUES ('S003', 'Stapler', 2);
		CREATE TABLE Vendors (Name TEXT);
		INSERT INTO Vendors VALUES ('Acme');
		CREATE TABLE Users (Username TEXT PRIMARY KEY, Password TEXT NOT NULL, Role TEXT NOT NULL);
		CREATE TABLE UserAuditLog (Username TEXT, Action TEXT, Description TEXT, Timestamp DATETIME);
		INSERT INTO Users VALUES ('admin', 'admin123', 'Admin');
		INSERT INTO Users VALUES ('clerk', 'clerk123', 'User');
	`)
	if err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}
	return gateway.New(adapter, gateway.Options{})
}

func newTestAuth(t *testing.T, gw *gateway.Gateway) *auth.Service {
	t.Helper()
	svc, err := auth.NewService(gw, auth.Config{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestListTables(t *testing.T) {
	gw := newTestGateway(t)
	var out bytes.Buffer

	if err := ListTables(context.Background(), gw, session.DefaultTables(), &out); err != nil {
		t.Fatalf("ListTables: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Database: SQLite ") {
		t.Errorf("Server version must be printed:\n%s", text)
	}
	if !strings.Contains(text, "SuppliesInventory  [Supplies]") {
		t.Errorf("Supplies table must be marked:\n%s", text)
	}
	if !strings.Contains(text, "Users  [Accounts]") {
		t.Errorf("Users table must be marked as Accounts:\n%s", text)
	}
	if !strings.Contains(text, "Vendors") || strings.Contains(text, "Vendors  [") {
		t.Errorf("Vendors must be listed without kind:\n%s", text)
	}
}

func TestShowTable(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	cfg := session.Config{Tables: session.DefaultTables()}

	var out bytes.Buffer
	if err := ShowTable(ctx, gw, cfg, "supplies", 0, &out); err != nil {
		t.Fatalf("ShowTable: %v", err)
	}
	text := out.String()
	for _, want := range []string{"SuppliesInventory (Supplies)", "ItemCode", "Blue Pen", "(3 rows)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Output missing %q:\n%s", want, text)
		}
	}

	out.Reset()
	if err := ShowTable(ctx, gw, cfg, "supplies", 2, &out); err != nil {
		t.Fatalf("ShowTable limit: %v", err)
	}
	if !strings.Contains(out.String(), "... 2 of 3 rows shown") || strings.Contains(out.String(), "Stapler") {
		t.Errorf("Limit not applied:\n%s", out.String())
	}

	out.Reset()
	if err := ShowTable(ctx, gw, cfg, "Vendors", 0, &out); err != nil {
		t.Fatalf("ShowTable by name: %v", err)
	}
	if !strings.Contains(out.String(), "Acme") {
		t.Errorf("Vendors output:\n%s", out.String())
	}

	if err := ShowTable(ctx, gw, cfg, "Missing", 0, &out); err == nil {
		t.Error("Expected error for missing table")
	}

	// Пароли не печатаются без прав администратора
	for _, target := range []string{"accounts", "Users"} {
		out.Reset()
		if err := ShowTable(ctx, gw, cfg, target, 0, &out); !errors.Is(err, editgate.ErrAccessDenied) {
			t.Errorf("ShowTable(%s) as guest: expected ErrAccessDenied, got %v", target, err)
		}
		if strings.Contains(out.String(), "admin123") {
			t.Errorf("Password leaked:\n%s", out.String())
		}
	}

	cfg.Identity = auth.NewIdentity("admin", auth.RoleAdmin)
	out.Reset()
	if err := ShowTable(ctx, gw, cfg, "accounts", 0, &out); err != nil {
		t.Fatalf("ShowTable(accounts) as admin: %v", err)
	}
}

type stubUploader struct {
	path string
	fail bool
}

func (u *stubUploader) Upload(_ context.Context, key, filePath string) (string, error) {
	if u.fail {
		return "", errors.New("bucket unavailable")
	}
	u.path = filePath
	return "exports/" + filepath.Base(filePath), nil
}

func TestExportTable(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	cfg := session.Config{Tables: session.DefaultTables()}
	dir := t.TempDir()

	up := &stubUploader{}
	var out bytes.Buffer
	path, err := ExportTable(ctx, gw, cfg, ExportOptions{
		Kind:       session.Supplies,
		OutputFile: filepath.Join(dir, "supplies.csv"),
		Uploader:   up,
	}, &out)
	if err != nil {
		t.Fatalf("ExportTable: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "ItemCode,ItemName,Quantity\n") {
		t.Errorf("CSV header:\n%s", data)
	}
	if !strings.Contains(out.String(), "Exported 3 records") || !strings.Contains(out.String(), "exports/supplies.csv") {
		t.Errorf("Output:\n%s", out.String())
	}
	if up.path != path {
		t.Errorf("Uploaded %q, want %q", up.path, path)
	}

	// Ошибка загрузки не удаляет локальный файл
	path, err = ExportTable(ctx, gw, cfg, ExportOptions{
		Kind:       session.Supplies,
		OutputFile: filepath.Join(dir, "again.csv"),
		Uploader:   &stubUploader{fail: true},
	}, &out)
	if err == nil {
		t.Fatal("Expected upload error")
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("Local export must remain: %v", statErr)
	}
}

func TestDefaultExportFile(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	got := DefaultExportFile("exports", session.Assets, now)
	if got != filepath.Join("exports", "assets_20240309_140506.csv") {
		t.Errorf("DefaultExportFile = %q", got)
	}
}

func TestRunQuery(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	safe := security.NewSQLValidator(true)

	var out bytes.Buffer
	err := RunQuery(ctx, gw, safe, "SELECT ItemName, Quantity FROM SuppliesInventory WHERE Quantity < 6 ORDER BY Quantity", 0, &out)
	if err != nil {
		t.Fatalf("RunQuery: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Stapler") || !strings.Contains(text, "Red Pen") || strings.Contains(text, "Blue Pen") {
		t.Errorf("Unexpected result:\n%s", text)
	}
	if strings.Index(text, "Stapler") > strings.Index(text, "Red Pen") {
		t.Errorf("ORDER BY not preserved:\n%s", text)
	}

	err = RunQuery(ctx, gw, safe, "DELETE FROM SuppliesInventory", 0, &out)
	if !errors.Is(err, security.ErrReadOnlyQuery) {
		t.Errorf("Expected ErrReadOnlyQuery, got %v", err)
	}

	n, _ := gw.ExecuteScalar(ctx, "SELECT COUNT(*) FROM SuppliesInventory", nil, 0)
	if n != int64(3) {
		t.Errorf("Rejected query must not run, rows = %v", n)
	}
}

func TestUserCommands(t *testing.T) {
	ctx := context.Background()
	gw := newTestGateway(t)
	svc := newTestAuth(t, gw)
	admin := auth.NewIdentity("admin", "Admin")
	clerk := auth.NewIdentity("clerk", "User")
	var out bytes.Buffer

	if err := CreateUser(ctx, svc, clerk, "intern", "pw", "User", &out); !errors.Is(err, ErrAdminRequired) {
		t.Errorf("Non-admin CreateUser: %v", err)
	}
	if err := CreateUser(ctx, svc, admin, "intern", "", "User", &out); err == nil {
		t.Error("Expected error for empty password")
	}
	if err := CreateUser(ctx, svc, admin, "intern", "pw", "User", &out); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := SetRole(ctx, svc, admin, "intern", "Admin", &out); err != nil {
		t.Fatalf("SetRole: %v", err)
	}

	out.Reset()
	if err := ListUsers(ctx, svc, &out); err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if !strings.Contains(out.String(), "intern") || !strings.Contains(out.String(), "(3 rows)") {
		t.Errorf("ListUsers:\n%s", out.String())
	}

	if err := ChangePassword(ctx, svc, "intern", "pw", "pw2", &out); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if ok, _ := svc.ValidateCredentials(ctx, "intern", "pw2"); !ok {
		t.Error("New password must be accepted")
	}

	if err := DeleteUser(ctx, svc, clerk, "intern", &out); !errors.Is(err, ErrAdminRequired) {
		t.Errorf("Non-admin DeleteUser: %v", err)
	}
	if err := DeleteUser(ctx, svc, admin, "admin", &out); !errors.Is(err, auth.ErrDeleteSelf) {
		t.Errorf("Self delete: %v", err)
	}
	if err := DeleteUser(ctx, svc, admin, "intern", &out); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
}

func TestPrintTableTruncates(t *testing.T) {
	var out bytes.Buffer
	long := strings.Repeat("x", 60)
	if err := printTable(&out, []string{"A"}, [][]string{{long}, {"line1\nline2"}}, 0); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), long) {
		t.Error("Long value must be truncated")
	}
	if !strings.Contains(out.String(), "line1 line2") {
		t.Errorf("Newlines must be flattened:\n%s", out.String())
	}
}

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/adapters/base"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()

	ctx := context.Background()
	adapter, err := NewAdapter(ctx, filepath.Join(t.TempDir(), "inventory.db"))
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	t.Cleanup(func() { adapter.Close(ctx) })

	_, err = adapter.DB().ExecContext(ctx, `
		CREATE TABLE SuppliesInventory (
			ItemCode TEXT PRIMARY KEY,
			ItemName TEXT NOT NULL,
			Quantity INTEGER
		)`)
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	_, err = adapter.DB().ExecContext(ctx, `
		CREATE TABLE AssetAssignments (
			AssetTag TEXT,
			Employee TEXT,
			Notes TEXT,
			PRIMARY KEY (Employee, AssetTag)
		)`)
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	return adapter
}

func TestAdapter_Registered(t *testing.T) {
	if !adapters.IsRegistered("sqlite") {
		t.Fatal("sqlite adapter is not registered")
	}
	if !adapters.IsRegistered("sqlite3") {
		t.Error("sqlite3 alias is not registered")
	}
}

func TestAdapter_TableExists(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	exists, err := adapter.TableExists(ctx, "SuppliesInventory")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if !exists {
		t.Error("SuppliesInventory should exist")
	}

	exists, err = adapter.TableExists(ctx, "Missing")
	if err != nil {
		t.Fatalf("TableExists failed: %v", err)
	}
	if exists {
		t.Error("Missing should not exist")
	}
}

func TestAdapter_GetTableNames(t *testing.T) {
	adapter := newTestAdapter(t)

	names, err := adapter.GetTableNames(context.Background())
	if err != nil {
		t.Fatalf("GetTableNames failed: %v", err)
	}
	if len(names) != 2 || names[0] != "AssetAssignments" || names[1] != "SuppliesInventory" {
		t.Errorf("GetTableNames = %v", names)
	}
}

func TestAdapter_GetPrimaryKeys(t *testing.T) {
	adapter := newTestAdapter(t)
	ctx := context.Background()

	keys, err := adapter.GetPrimaryKeys(ctx, "SuppliesInventory")
	if err != nil {
		t.Fatalf("GetPrimaryKeys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "ItemCode" {
		t.Errorf("keys = %v, want [ItemCode]", keys)
	}

	// Порядок объявления в PRIMARY KEY, а не порядок колонок
	keys, err = adapter.GetPrimaryKeys(ctx, "AssetAssignments")
	if err != nil {
		t.Fatalf("GetPrimaryKeys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "Employee" || keys[1] != "AssetTag" {
		t.Errorf("keys = %v, want [Employee AssetTag]", keys)
	}
}

func TestAdapter_Version(t *testing.T) {
	adapter := newTestAdapter(t)

	version, err := adapter.GetDatabaseVersion(context.Background())
	if err != nil {
		t.Fatalf("GetDatabaseVersion failed: %v", err)
	}
	if !strings.HasPrefix(version, "SQLite ") {
		t.Errorf("version = %s", version)
	}
	if adapter.GetDatabaseType() != "sqlite" {
		t.Errorf("type = %s", adapter.GetDatabaseType())
	}
}

func TestAdapter_MemoryDSN(t *testing.T) {
	ctx := context.Background()
	adapter, err := NewAdapter(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	defer adapter.Close(ctx)

	if _, err := adapter.DB().ExecContext(ctx, "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Fatalf("create: %v", err)
	}
	// Второе подключение из пула должно видеть ту же базу
	conn, err := adapter.DB().Conn(ctx)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	conn.Close()

	exists, err := adapter.TableExists(ctx, "t")
	if err != nil || !exists {
		t.Errorf("table t not visible: exists=%v err=%v", exists, err)
	}
}

func TestAdapter_Closed(t *testing.T) {
	ctx := context.Background()
	adapter, err := NewAdapter(ctx, filepath.Join(t.TempDir(), "closed.db"))
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}

	if err := adapter.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := adapter.Close(ctx); err != nil {
		t.Errorf("Second Close must be a no-op: %v", err)
	}
	if err := adapter.Ping(ctx); !errors.Is(err, base.ErrNotConnected) {
		t.Errorf("Ping after Close = %v", err)
	}
	if _, err := adapter.GetTableNames(ctx); !errors.Is(err, base.ErrNotConnected) {
		t.Errorf("GetTableNames after Close = %v", err)
	}
	if adapter.Dialect().QuoteIdentifier("Item Name") != `"Item Name"` {
		t.Error("Dialect must survive Close")
	}
}

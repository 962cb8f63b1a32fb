package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruslano69/invmirror/pkg/adapters"
	_ "github.com/ruslano69/invmirror/pkg/adapters/sqlite"
	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/ruslano69/invmirror/pkg/security"
)

type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) LogMessage(category, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, category+": "+message)
}

func (l *recordingLogger) has(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

func newTestGateway(t *testing.T) (*Gateway, *recordingLogger) {
	t.Helper()
	ctx := context.Background()

	adapter, err := adapters.New(ctx, adapters.Config{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "gateway.db"),
	})
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	t.Cleanup(func() { adapter.Close(ctx) })

	_, err = adapter.DB().ExecContext(ctx, `
		CREATE TABLE SuppliesInventory (
			ItemCode TEXT PRIMARY KEY,
			ItemName TEXT NOT NULL,
			Quantity INTEGER,
			UnitPrice DECIMAL(10,2),
			IsActive BOOLEAN
		);
		INSERT INTO SuppliesInventory VALUES ('S001', 'Blue Pen', 10, 1.5, 1);
		INSERT INTO SuppliesInventory VALUES ('S002', 'Red Pen', 5, 2, 0);
		INSERT INTO SuppliesInventory VALUES ('S003', 'Stapler', NULL, NULL, NULL);
	`)
	if err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	logger := &recordingLogger{}
	return New(adapter, Options{Logger: logger}), logger
}

func TestSafeQuery(t *testing.T) {
	got := SafeQuery("SELECT *\n  FROM   Users\r\nWHERE id = ?")
	if got != "SELECT * FROM Users WHERE id = ?" {
		t.Errorf("SafeQuery = %q", got)
	}

	long := "SELECT " + strings.Repeat("x", 300)
	got = SafeQuery(long)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != 203 {
		t.Errorf("SafeQuery(long) len = %d", len([]rune(got)))
	}
}

func TestGateway_TestConnection(t *testing.T) {
	g, logger := newTestGateway(t)

	ok, err := g.TestConnection(context.Background())
	if err != nil || !ok {
		t.Fatalf("TestConnection = %v, %v", ok, err)
	}
	if !logger.has("DATABASE: Database connection test: SUCCESS") {
		t.Errorf("missing success log: %v", logger.entries)
	}
}

func TestGateway_TestConnectionClosed(t *testing.T) {
	g, logger := newTestGateway(t)
	g.Adapter().Close(context.Background())

	ok, err := g.TestConnection(context.Background())
	if ok {
		t.Fatal("TestConnection on closed db must fail")
	}
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %T: %v", err, err)
	}
	if !logger.has("ERROR: ") {
		t.Error("failure must be logged with ERROR category")
	}
}

func TestGateway_ExecuteQuery(t *testing.T) {
	g, logger := newTestGateway(t)

	table, err := g.ExecuteQuery(context.Background(),
		"SELECT * FROM SuppliesInventory WHERE Quantity >= ? ORDER BY ItemCode", []any{5}, 0)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("rows = %d, want 2", table.Len())
	}
	if names := schema.Names(table.Columns); strings.Join(names, ",") != "ItemCode,ItemName,Quantity,UnitPrice,IsActive" {
		t.Errorf("columns = %v", names)
	}
	if table.Columns[2].Type != schema.TypeInteger {
		t.Errorf("Quantity type = %s", table.Columns[2].Type)
	}

	row := table.Rows[0]
	if row[0] != "S001" || row[1] != "Blue Pen" {
		t.Errorf("row = %v", row)
	}
	if q, ok := row[2].(int64); !ok || q != 10 {
		t.Errorf("Quantity = %#v, want int64(10)", row[2])
	}
	if p, ok := row[3].(float64); !ok || p != 1.5 {
		t.Errorf("UnitPrice = %#v, want 1.5", row[3])
	}
	if b, ok := row[4].(bool); !ok || !b {
		t.Errorf("IsActive = %#v, want true", row[4])
	}

	if v, _ := table.Value(1, "UnitPrice"); v != float64(2) {
		t.Errorf("UnitPrice of S002 = %#v, want float64(2)", v)
	}

	if !logger.has("DATABASE: Executing query: SELECT * FROM SuppliesInventory") {
		t.Errorf("missing query log: %v", logger.entries)
	}
	if !logger.has("DATABASE: Query executed successfully - 2 rows returned") {
		t.Errorf("missing result log: %v", logger.entries)
	}
}

func TestGateway_ExecuteQueryError(t *testing.T) {
	g, logger := newTestGateway(t)

	_, err := g.ExecuteQuery(context.Background(), "SELEC nonsense", nil, 0)
	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("expected *QueryError, got %T: %v", err, err)
	}
	if queryErr.Op != "ExecuteQuery" || queryErr.Query != "SELEC nonsense" {
		t.Errorf("QueryError = %+v", queryErr)
	}
	if !logger.has("ERROR: Error executing query") {
		t.Errorf("missing error log: %v", logger.entries)
	}
}

func TestGateway_Timeout(t *testing.T) {
	g, _ := newTestGateway(t)

	_, err := g.ExecuteQuery(context.Background(), "SELECT 1", nil, time.Nanosecond)
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %T: %v", err, err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("TimeoutError must unwrap to context.DeadlineExceeded: %v", err)
	}
}

func TestGateway_ExecuteNonQuery(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	n, err := g.ExecuteNonQuery(ctx, "UPDATE SuppliesInventory SET Quantity = Quantity + 1 WHERE Quantity IS NOT NULL", nil, 0)
	if err != nil {
		t.Fatalf("ExecuteNonQuery: %v", err)
	}
	if n != 2 {
		t.Errorf("rows affected = %d, want 2", n)
	}

	_, err = g.ExecuteNonQuery(ctx, "INSERT INTO SuppliesInventory (ItemCode, ItemName) VALUES (?, ?)", []any{"S001", "dup"}, 0)
	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("constraint violation must be *QueryError, got %T: %v", err, err)
	}
}

func TestGateway_ExecuteScalar(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	v, err := g.ExecuteScalar(ctx, "SELECT COUNT(*) FROM SuppliesInventory", nil, 0)
	if err != nil {
		t.Fatalf("ExecuteScalar: %v", err)
	}
	if v != int64(3) {
		t.Errorf("count = %#v, want int64(3)", v)
	}

	v, err = g.ExecuteScalar(ctx, "SELECT ItemName FROM SuppliesInventory WHERE ItemCode = ?", []any{"none"}, 0)
	if err != nil {
		t.Fatalf("ExecuteScalar: %v", err)
	}
	if v != nil {
		t.Errorf("no rows must give nil, got %#v", v)
	}
}

func TestGateway_TableMetadata(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	exists, err := g.TableExists(ctx, "SuppliesInventory")
	if err != nil || !exists {
		t.Errorf("TableExists = %v, %v", exists, err)
	}
	exists, err = g.TableExists(ctx, "  ")
	if err != nil || exists {
		t.Errorf("TableExists(blank) = %v, %v", exists, err)
	}

	names, err := g.GetTableNames(ctx)
	if err != nil || len(names) != 1 {
		t.Errorf("GetTableNames = %v, %v", names, err)
	}

	keys, err := g.GetPrimaryKeys(ctx, "SuppliesInventory")
	if err != nil || len(keys) != 1 || keys[0] != "ItemCode" {
		t.Errorf("GetPrimaryKeys = %v, %v", keys, err)
	}
}

func TestGateway_GetTableData(t *testing.T) {
	g, logger := newTestGateway(t)
	ctx := context.Background()

	table, err := g.GetTableData(ctx, "SuppliesInventory")
	if err != nil {
		t.Fatalf("GetTableData: %v", err)
	}
	if table.Len() != 3 {
		t.Errorf("rows = %d, want 3", table.Len())
	}
	if !logger.has("DATA: Loading table data: SuppliesInventory") {
		t.Errorf("missing DATA log: %v", logger.entries)
	}

	_, err = g.GetTableData(ctx, "Users; DROP TABLE Users")
	if !errors.Is(err, security.ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Errorf("invalid name must be reported as *QueryError, got %T", err)
	}
}

func TestGateway_InTx(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()

	err := g.InTx(ctx, 0, func(ctx context.Context, tx Execer) error {
		if _, err := tx.ExecuteNonQuery(ctx, "DELETE FROM SuppliesInventory WHERE ItemCode = ?", []any{"S003"}); err != nil {
			return err
		}
		table, err := tx.ExecuteQuery(ctx, "SELECT COUNT(*) FROM SuppliesInventory", nil)
		if err != nil {
			return err
		}
		if table.Rows[0][0] != int64(2) {
			t.Errorf("count inside tx = %v", table.Rows[0][0])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("InTx commit: %v", err)
	}

	count, _ := g.ExecuteScalar(ctx, "SELECT COUNT(*) FROM SuppliesInventory", nil, 0)
	if count != int64(2) {
		t.Errorf("count after commit = %v, want 2", count)
	}
}

func TestGateway_InTxRollback(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()
	errAbort := errors.New("abort")
	okBefore := testutil.ToFloat64(callsTotal.WithLabelValues("InTx", "ok"))
	failedBefore := testutil.ToFloat64(callsTotal.WithLabelValues("InTx", "query_error"))

	err := g.InTx(ctx, 0, func(ctx context.Context, tx Execer) error {
		if _, err := tx.ExecuteNonQuery(ctx, "DELETE FROM SuppliesInventory", nil); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("InTx must return fn error as is, got %v", err)
	}

	count, _ := g.ExecuteScalar(ctx, "SELECT COUNT(*) FROM SuppliesInventory", nil, 0)
	if count != int64(3) {
		t.Errorf("count after rollback = %v, want 3", count)
	}

	// Ошибка СУБД внутри транзакции классифицируется
	err = g.InTx(ctx, 0, func(ctx context.Context, tx Execer) error {
		_, err := tx.ExecuteNonQuery(ctx, "INSERT INTO Missing VALUES (1)", nil)
		return err
	})
	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Errorf("expected *QueryError, got %T: %v", err, err)
	}

	// Откаченные транзакции не считаются успешными
	if got := testutil.ToFloat64(callsTotal.WithLabelValues("InTx", "ok")); got != okBefore {
		t.Errorf("InTx ok counter grew by %v on rollback", got-okBefore)
	}
	if got := testutil.ToFloat64(callsTotal.WithLabelValues("InTx", "query_error")); got != failedBefore+2 {
		t.Errorf("InTx query_error counter = %v, want %v", got, failedBefore+2)
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&TimeoutError{}, "timeout"},
		{&ConnectionError{}, "connection_error"},
		{&QueryError{}, "query_error"},
		{&rollbackError{err: &TimeoutError{}}, "timeout"},
		{&rollbackError{err: errors.New("abort")}, "query_error"},
	}
	for _, tt := range tests {
		if got := statusOf(tt.err); got != tt.want {
			t.Errorf("statusOf(%T) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

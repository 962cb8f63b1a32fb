// Package gateway - Connection/Query Gateway: единая точка выполнения SQL.
//
// Каждая операция получает собственное подключение из пула (db.Conn) и
// возвращает его после выполнения. Вызывающий код не должен рассчитывать
// на повторное использование подключения между вызовами.
//
// Ошибки классифицируются: *ConnectionError, *QueryError, *TimeoutError.
// О каждом вызове сообщается внешнему Logger (категории DATABASE / ERROR);
// сам Gateway состояния логирования не хранит.
package gateway

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/adapters/base"
	"github.com/ruslano69/invmirror/pkg/core/schema"
	"github.com/ruslano69/invmirror/pkg/security"
)

// DefaultTimeout - таймаут операции, если вызывающий не указал свой
const DefaultTimeout = 30 * time.Second

// maxLoggedQuery - длина текста запроса в логе
const maxLoggedQuery = 200

// Категории сообщений для Logger
const (
	CategoryDatabase = "DATABASE"
	CategoryData     = "DATA"
	CategoryError    = "ERROR"
)

// Logger - внешний получатель сообщений (category, message)
type Logger interface {
	LogMessage(category, message string)
}

type nopLogger struct{}

func (nopLogger) LogMessage(string, string) {}

// Options - настройки Gateway
type Options struct {
	// Logger получает сообщение о каждом вызове (nil = не логировать)
	Logger Logger

	// Timeout - таймаут по умолчанию (0 = DefaultTimeout)
	Timeout time.Duration
}

// Execer выполняет запросы внутри транзакции InTx
type Execer interface {
	ExecuteQuery(ctx context.Context, query string, params []any) (*Table, error)
	ExecuteNonQuery(ctx context.Context, query string, params []any) (int64, error)
}

// Gateway выполняет параметризованные запросы через адаптер
type Gateway struct {
	adapter    adapters.Adapter
	db         *sql.DB
	dbType     string
	logger     Logger
	timeout    time.Duration
	normalizer *base.ValueNormalizer
}

// New создает Gateway поверх подключенного адаптера
func New(adapter adapters.Adapter, opts Options) *Gateway {
	g := &Gateway{
		adapter:    adapter,
		db:         adapter.DB(),
		dbType:     adapter.GetDatabaseType(),
		logger:     opts.Logger,
		timeout:    opts.Timeout,
		normalizer: base.NewValueNormalizer(),
	}
	if g.logger == nil {
		g.logger = nopLogger{}
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	return g
}

// Adapter возвращает адаптер Gateway
func (g *Gateway) Adapter() adapters.Adapter {
	return g.adapter
}

// Dialect возвращает правила квотирования и параметров СУБД
func (g *Gateway) Dialect() adapters.Dialect {
	return g.adapter.Dialect()
}

// DatabaseType возвращает тип СУБД ("sqlite", "mssql", ...)
func (g *Gateway) DatabaseType() string {
	return g.dbType
}

// SafeQuery сворачивает запрос в одну строку и обрезает до 200 символов + "..."
func SafeQuery(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	if utf8.RuneCountInString(q) <= maxLoggedQuery {
		return q
	}
	runes := []rune(q)
	return string(runes[:maxLoggedQuery]) + "..."
}

// ========== Операции ==========

// TestConnection открывает подключение и сразу проверяет его
func (g *Gateway) TestConnection(ctx context.Context) (bool, error) {
	const op = "TestConnection"
	err := g.observe(ctx, op, "", 0, func(ctx context.Context) error {
		conn, err := g.db.Conn(ctx)
		if err != nil {
			return &ConnectionError{Op: op, Err: err}
		}
		defer conn.Close()
		if err := conn.PingContext(ctx); err != nil {
			return &ConnectionError{Op: op, Err: err}
		}
		return nil
	})
	if err != nil {
		g.logger.LogMessage(CategoryError, fmt.Sprintf("Database connection test failed: %v", err))
		return false, err
	}
	g.logger.LogMessage(CategoryDatabase, "Database connection test: SUCCESS")
	return true, nil
}

// ExecuteQuery выполняет параметризованный запрос чтения
func (g *Gateway) ExecuteQuery(ctx context.Context, query string, params []any, timeout time.Duration) (*Table, error) {
	const op = "ExecuteQuery"
	g.logger.LogMessage(CategoryDatabase, "Executing query: "+SafeQuery(query))

	var table *Table
	err := g.withConn(ctx, op, query, timeout, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, params...)
		if err != nil {
			return err
		}
		defer rows.Close()
		table, err = g.readTable(rows)
		return err
	})
	if err != nil {
		g.logger.LogMessage(CategoryError, fmt.Sprintf("Error executing query: %v", err))
		return nil, err
	}

	g.logger.LogMessage(CategoryDatabase, fmt.Sprintf("Query executed successfully - %d rows returned", table.Len()))
	return table, nil
}

// ExecuteNonQuery выполняет параметризованную команду записи и возвращает число затронутых строк
func (g *Gateway) ExecuteNonQuery(ctx context.Context, query string, params []any, timeout time.Duration) (int64, error) {
	const op = "ExecuteNonQuery"
	g.logger.LogMessage(CategoryDatabase, "Executing non-query: "+SafeQuery(query))

	var affected int64
	err := g.withConn(ctx, op, query, timeout, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, query, params...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		g.logger.LogMessage(CategoryError, fmt.Sprintf("Error executing command: %v", err))
		return 0, err
	}

	g.logger.LogMessage(CategoryDatabase, fmt.Sprintf("Non-query executed successfully - %d rows affected", affected))
	return affected, nil
}

// ExecuteScalar возвращает первую колонку первой строки (nil если строк нет)
func (g *Gateway) ExecuteScalar(ctx context.Context, query string, params []any, timeout time.Duration) (any, error) {
	const op = "ExecuteScalar"
	g.logger.LogMessage(CategoryDatabase, "Executing scalar query: "+SafeQuery(query))

	var result any
	err := g.withConn(ctx, op, query, timeout, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, params...)
		if err != nil {
			return err
		}
		defer rows.Close()
		table, err := g.readTable(rows)
		if err != nil {
			return err
		}
		if table.Len() > 0 && len(table.Columns) > 0 {
			result = table.Rows[0][0]
		}
		return nil
	})
	if err != nil {
		g.logger.LogMessage(CategoryError, fmt.Sprintf("Error executing scalar: %v", err))
		return nil, err
	}

	g.logger.LogMessage(CategoryDatabase, "Scalar query executed successfully")
	return result, nil
}

// TableExists проверяет наличие таблицы. Пустое имя - false без обращения к БД.
func (g *Gateway) TableExists(ctx context.Context, name string) (bool, error) {
	const op = "TableExists"
	if strings.TrimSpace(name) == "" {
		return false, nil
	}

	var exists bool
	err := g.observe(ctx, op, "", 0, func(ctx context.Context) error {
		var err error
		exists, err = g.adapter.TableExists(ctx, name)
		return err
	})
	if err != nil {
		g.logger.LogMessage(CategoryError, fmt.Sprintf("Table existence check failed for: %s: %v", name, err))
		return false, err
	}

	g.logger.LogMessage(CategoryDatabase, fmt.Sprintf("Table existence check: %s = %v", name, exists))
	return exists, nil
}

// GetTableData возвращает все строки таблицы (SELECT * FROM <name>)
func (g *Gateway) GetTableData(ctx context.Context, name string) (*Table, error) {
	if err := security.ValidateIdentifier(name); err != nil {
		g.logger.LogMessage(CategoryError, fmt.Sprintf("Table name rejected: %v", err))
		return nil, &QueryError{Op: "GetTableData", Err: err}
	}

	g.logger.LogMessage(CategoryData, "Loading table data: "+name)
	query := "SELECT * FROM " + g.Dialect().QualifyTable(name)
	return g.ExecuteQuery(ctx, query, nil, 0)
}

// GetTableNames возвращает список таблиц БД
func (g *Gateway) GetTableNames(ctx context.Context) ([]string, error) {
	const op = "GetTableNames"
	g.logger.LogMessage(CategoryDatabase, "Retrieving table names from database")

	var names []string
	err := g.observe(ctx, op, "", 0, func(ctx context.Context) error {
		var err error
		names, err = g.adapter.GetTableNames(ctx)
		return err
	})
	if err != nil {
		g.logger.LogMessage(CategoryError, fmt.Sprintf("Error retrieving table names: %v", err))
		return nil, err
	}

	g.logger.LogMessage(CategoryDatabase, fmt.Sprintf("Retrieved %d table names", len(names)))
	return names, nil
}

// GetPrimaryKeys возвращает колонки первичного ключа таблицы
func (g *Gateway) GetPrimaryKeys(ctx context.Context, name string) ([]string, error) {
	const op = "GetPrimaryKeys"

	var keys []string
	err := g.observe(ctx, op, "", 0, func(ctx context.Context) error {
		var err error
		keys, err = g.adapter.GetPrimaryKeys(ctx, name)
		return err
	})
	if err != nil {
		g.logger.LogMessage(CategoryError, fmt.Sprintf("Error reading primary key of %s: %v", name, err))
		return nil, err
	}

	g.logger.LogMessage(CategoryDatabase, fmt.Sprintf("Primary key of %s: %v", name, keys))
	return keys, nil
}

// InTx выполняет fn в одной транзакции на одном подключении.
// Ошибка fn откатывает транзакцию и возвращается как есть;
// ошибки BEGIN/COMMIT оборачиваются в *QueryError.
func (g *Gateway) InTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx Execer) error) error {
	const op = "InTx"
	g.logger.LogMessage(CategoryDatabase, "Starting transaction")

	err := g.withConn(ctx, op, "", timeout, func(ctx context.Context, conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if fnErr := fn(ctx, &txExecer{g: g, tx: tx}); fnErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				g.logger.LogMessage(CategoryError, fmt.Sprintf("Rollback failed: %v", rbErr))
			}
			return &rollbackError{err: fnErr}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
	var rb *rollbackError
	if errors.As(err, &rb) {
		err = rb.err
	}
	if err != nil {
		g.logger.LogMessage(CategoryError, fmt.Sprintf("Transaction rolled back: %v", err))
		return err
	}

	g.logger.LogMessage(CategoryDatabase, "Transaction committed")
	return nil
}

// ========== Внутреннее ==========

// withConn получает отдельное подключение на время fn и классифицирует ошибки
func (g *Gateway) withConn(ctx context.Context, op, query string, timeout time.Duration, fn func(ctx context.Context, conn *sql.Conn) error) error {
	return g.observe(ctx, op, query, timeout, func(ctx context.Context) error {
		conn, err := g.db.Conn(ctx)
		if err != nil {
			return &ConnectionError{Op: op, Err: err}
		}
		defer conn.Close()
		return fn(ctx, conn)
	})
}

// observe применяет таймаут, классифицирует ошибку и пишет метрики
func (g *Gateway) observe(ctx context.Context, op, query string, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = g.timeout
	}
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil {
		err = classify(callCtx, op, query, timeout, err)
	}

	callsTotal.WithLabelValues(op, statusOf(err)).Inc()
	callDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return err
}

// classify приводит ошибку драйвера к таксономии Gateway
func classify(ctx context.Context, op, query string, timeout time.Duration, err error) error {
	var (
		connErr    *ConnectionError
		queryErr   *QueryError
		timeoutErr *TimeoutError
	)
	safe := SafeQuery(query)

	var rb *rollbackError
	switch {
	case errors.As(err, &rb):
		return err
	case errors.As(err, &timeoutErr), errors.As(err, &queryErr):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &TimeoutError{Op: op, Query: safe, Timeout: timeout, Err: err}
	case errors.As(err, &connErr):
		return err
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return &ConnectionError{Op: op, Err: err}
	default:
		return &QueryError{Op: op, Query: safe, Err: err}
	}
}

// readTable читает метаданные колонок и нормализует значения
func (g *Gateway) readTable(rows *sql.Rows) (*Table, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	columns := make([]schema.Column, len(types))
	for i, ct := range types {
		col := schema.Column{
			Name:     ct.Name(),
			DBType:   strings.ToUpper(ct.DatabaseTypeName()),
			Nullable: true,
		}
		col.Type = schema.FromDBType(col.DBType)
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		}
		if length, ok := ct.Length(); ok && schema.IsTextType(col.Type) && length > 0 && length < 1<<30 {
			col.Length = int(length)
		}
		columns[i] = col
	}

	table := &Table{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			values[i] = g.normalizer.NormalizeValue(v, columns[i], g.dbType)
		}
		table.Rows = append(table.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading rows: %w", err)
	}
	return table, nil
}

// txExecer - Execer поверх *sql.Tx
type txExecer struct {
	g  *Gateway
	tx *sql.Tx
}

func (e *txExecer) ExecuteQuery(ctx context.Context, query string, params []any) (*Table, error) {
	const op = "ExecuteQuery"
	e.g.logger.LogMessage(CategoryDatabase, "Executing query in transaction: "+SafeQuery(query))

	rows, err := e.tx.QueryContext(ctx, query, params...)
	if err != nil {
		err = classify(ctx, op, query, e.g.timeout, err)
		e.g.logger.LogMessage(CategoryError, fmt.Sprintf("Error executing query: %v", err))
		return nil, err
	}
	defer rows.Close()

	table, err := e.g.readTable(rows)
	if err != nil {
		return nil, classify(ctx, op, query, e.g.timeout, err)
	}
	return table, nil
}

func (e *txExecer) ExecuteNonQuery(ctx context.Context, query string, params []any) (int64, error) {
	const op = "ExecuteNonQuery"
	e.g.logger.LogMessage(CategoryDatabase, "Executing non-query in transaction: "+SafeQuery(query))

	res, err := e.tx.ExecContext(ctx, query, params...)
	if err == nil {
		var affected int64
		if affected, err = res.RowsAffected(); err == nil {
			e.g.logger.LogMessage(CategoryDatabase, fmt.Sprintf("Non-query executed successfully - %d rows affected", affected))
			return affected, nil
		}
	}

	err = classify(ctx, op, query, e.g.timeout, err)
	e.g.logger.LogMessage(CategoryError, fmt.Sprintf("Error executing command: %v", err))
	return 0, err
}

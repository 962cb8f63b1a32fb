package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/security"
)

// dbTimeLayout - время хранится текстом фиксированной ширины в UTC,
// чтобы сортировка и сравнение строк совпадали с хронологией на любой СУБД
const dbTimeLayout = "2006-01-02T15:04:05.000000Z"

// DatabaseAppender - запись журнала в таблицу БД
type DatabaseAppender struct {
	db         *sql.DB
	dialect    adapters.Dialect
	tableName  string
	table      string // квотированное имя
	level      Level
	batchSize  int
	batchQueue []*Entry
	insertSQL  string
}

// DatabaseAppenderConfig - конфигурация database appender
type DatabaseAppenderConfig struct {
	// DB - подключение к базе данных
	DB *sql.DB

	// Dialect - квотирование и параметры СУБД
	Dialect adapters.Dialect

	// TableName - имя таблицы журнала
	TableName string

	// Level - уровень логирования
	Level Level

	// BatchSize - размер batch для группового insert (0 = без batching)
	BatchSize int

	// AutoCreateTable - автоматически создать таблицу если не существует
	AutoCreateTable bool
}

// NewDatabaseAppender - создать database appender
func NewDatabaseAppender(config DatabaseAppenderConfig) (*DatabaseAppender, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if config.Dialect == nil {
		return nil, fmt.Errorf("dialect is required")
	}
	if config.TableName == "" {
		config.TableName = "audit_log"
	}
	if err := security.ValidateIdentifier(config.TableName); err != nil {
		return nil, fmt.Errorf("audit table: %w", err)
	}

	da := &DatabaseAppender{
		db:         config.DB,
		dialect:    config.Dialect,
		tableName:  config.TableName,
		table:      config.Dialect.QualifyTable(config.TableName),
		level:      config.Level,
		batchSize:  config.BatchSize,
		batchQueue: make([]*Entry, 0, config.BatchSize),
	}

	if config.AutoCreateTable {
		if err := da.createTable(); err != nil {
			return nil, fmt.Errorf("failed to create audit table: %w", err)
		}
	}

	da.insertSQL = da.buildInsert()
	return da, nil
}

var auditColumns = []string{
	"id", "logged_at", "category", "message", "operation", "status", "user_name",
	"resource", "records_affected", "duration_ms", "error_message", "metadata", "session_id",
}

// createTable - создать таблицу журнала
func (da *DatabaseAppender) createTable() error {
	query := fmt.Sprintf(`
		CREATE TABLE %s (
			id VARCHAR(64) PRIMARY KEY,
			logged_at VARCHAR(32) NOT NULL,
			category VARCHAR(20) NOT NULL,
			message VARCHAR(2000),
			operation VARCHAR(50),
			status VARCHAR(20),
			user_name VARCHAR(255),
			resource VARCHAR(255),
			records_affected BIGINT,
			duration_ms BIGINT,
			error_message VARCHAR(2000),
			metadata VARCHAR(4000),
			session_id VARCHAR(255)
		)
	`, da.table)

	// Таблица уже есть - ничего не делаем
	var n int
	if err := da.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=0", da.table)).Scan(&n); err == nil {
		return nil
	}

	_, err := da.db.Exec(query)
	return err
}

// buildInsert - INSERT с параметрами диалекта
func (da *DatabaseAppender) buildInsert() string {
	names := make([]string, len(auditColumns))
	params := make([]string, len(auditColumns))
	for i, c := range auditColumns {
		names[i] = da.dialect.QuoteIdentifier(c)
		params[i] = da.dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		da.table, strings.Join(names, ", "), strings.Join(params, ", "))
}

// Append - записать entry в базу данных
func (da *DatabaseAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(da.level)

	if da.batchSize > 0 {
		da.batchQueue = append(da.batchQueue, filtered)
		if len(da.batchQueue) >= da.batchSize {
			return da.flushBatch(ctx)
		}
		return nil
	}

	_, err := da.db.ExecContext(ctx, da.insertSQL, entryArgs(filtered)...)
	return err
}

func entryArgs(entry *Entry) []any {
	metadata := ""
	if len(entry.Metadata) > 0 {
		if data, err := json.Marshal(entry.Metadata); err == nil {
			metadata = string(data)
		}
	}

	return []any{
		entry.ID,
		entry.Timestamp.UTC().Format(dbTimeLayout),
		string(entry.Category),
		entry.Message,
		string(entry.Operation),
		string(entry.Status),
		entry.User,
		entry.Resource,
		entry.RecordsAffected,
		entry.Duration.Milliseconds(),
		entry.ErrorMessage,
		metadata,
		entry.SessionID,
	}
}

// flushBatch - записать batch entries в одной транзакции
func (da *DatabaseAppender) flushBatch(ctx context.Context) error {
	if len(da.batchQueue) == 0 {
		return nil
	}

	tx, err := da.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, entry := range da.batchQueue {
		if _, err := tx.ExecContext(ctx, da.insertSQL, entryArgs(entry)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	da.batchQueue = da.batchQueue[:0]
	return nil
}

// Flush - сбросить batch queue
func (da *DatabaseAppender) Flush() error {
	if da.batchSize > 0 && len(da.batchQueue) > 0 {
		return da.flushBatch(context.Background())
	}
	return nil
}

// Close - сбросить оставшиеся записи
func (da *DatabaseAppender) Close() error {
	return da.Flush()
}

// QueryFilter - фильтр для запроса записей журнала
type QueryFilter struct {
	Category  Category
	Operation Operation
	User      string
	Resource  string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// where строит условие фильтра
func (da *DatabaseAppender) where(filter QueryFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(column string, op string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s %s %s",
			da.dialect.QuoteIdentifier(column), op, da.dialect.Placeholder(len(args))))
	}

	if filter.Category != "" {
		add("category", "=", string(filter.Category))
	}
	if filter.Operation != "" {
		add("operation", "=", string(filter.Operation))
	}
	if filter.User != "" {
		add("user_name", "=", filter.User)
	}
	if filter.Resource != "" {
		add("resource", "=", filter.Resource)
	}
	if !filter.StartTime.IsZero() {
		add("logged_at", ">=", filter.StartTime.UTC().Format(dbTimeLayout))
	}
	if !filter.EndTime.IsZero() {
		add("logged_at", "<=", filter.EndTime.UTC().Format(dbTimeLayout))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Query - запросить записи журнала (новые первыми)
func (da *DatabaseAppender) Query(ctx context.Context, filter QueryFilter) ([]*Entry, error) {
	names := make([]string, len(auditColumns))
	for i, c := range auditColumns {
		names[i] = da.dialect.QuoteIdentifier(c)
	}

	where, args := da.where(filter)
	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s DESC",
		strings.Join(names, ", "), da.table, where, da.dialect.QuoteIdentifier("logged_at"))

	rows, err := da.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)

	for rows.Next() {
		var (
			entry                                 Entry
			loggedAt, category, op, status        string
			message, user, resource, errMsg, meta sql.NullString
			sessionID                             sql.NullString
			records, durationMs                   sql.NullInt64
		)

		if err := rows.Scan(&entry.ID, &loggedAt, &category, &message, &op, &status, &user,
			&resource, &records, &durationMs, &errMsg, &meta, &sessionID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entry.Timestamp, _ = time.Parse(dbTimeLayout, loggedAt)
		entry.Category = Category(category)
		entry.Message = message.String
		entry.Operation = Operation(op)
		entry.Status = Status(status)
		entry.User = user.String
		entry.Resource = resource.String
		entry.RecordsAffected = records.Int64
		entry.Duration = time.Duration(durationMs.Int64) * time.Millisecond
		entry.ErrorMessage = errMsg.String
		entry.SessionID = sessionID.String
		if meta.String != "" {
			json.Unmarshal([]byte(meta.String), &entry.Metadata)
		}

		entries = append(entries, &entry)
		if filter.Limit > 0 && len(entries) >= filter.Limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// Count - подсчитать количество записей
func (da *DatabaseAppender) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	where, args := da.where(filter)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", da.table, where)

	var count int64
	if err := da.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	return count, nil
}

// DeleteOlderThan - удалить старые записи
func (da *DatabaseAppender) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s < %s",
		da.table, da.dialect.QuoteIdentifier("logged_at"), da.dialect.Placeholder(1))

	result, err := da.db.ExecContext(ctx, query, before.UTC().Format(dbTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// TableName - имя таблицы журнала
func (da *DatabaseAppender) TableName() string {
	return da.tableName
}

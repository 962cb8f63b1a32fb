package base

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Placeholders рендерит параметры 1..n в стиле диалекта
type Placeholders interface {
	Placeholder(n int) string
}

// SplitTableName разделяет "schema.table". Без схемы возвращает defaultSchema.
func SplitTableName(name, defaultSchema string) (schema, table string) {
	if s, t, ok := strings.Cut(name, "."); ok {
		return s, t
	}
	return defaultSchema, name
}

// QueryPrimaryKeys читает колонки первичного ключа из INFORMATION_SCHEMA
// (MS SQL Server, PostgreSQL, MySQL). Пустая schema означает текущую БД (MySQL).
func QueryPrimaryKeys(ctx context.Context, db *sql.DB, ph Placeholders, schema, table string) ([]string, error) {
	schemaFilter := "tc.TABLE_SCHEMA = " + ph.Placeholder(1)
	args := []any{schema}
	tableParam := ph.Placeholder(2)
	if schema == "" {
		schemaFilter = "tc.TABLE_SCHEMA = DATABASE()"
		args = nil
		tableParam = ph.Placeholder(1)
	}
	args = append(args, table)

	query := fmt.Sprintf(`
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
		 AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		 AND tc.TABLE_NAME = kcu.TABLE_NAME
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		  AND %s
		  AND tc.TABLE_NAME = %s
		ORDER BY kcu.ORDINAL_POSITION
	`, schemaFilter, tableParam)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan primary key: %w", err)
		}
		keys = append(keys, name)
	}

	return keys, rows.Err()
}

// QueryStrings выполняет запрос, возвращающий одну строковую колонку
func QueryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ruslano69/invmirror/pkg/gateway"
	"github.com/ruslano69/invmirror/pkg/security"
)

// QueryRunner - часть Gateway для произвольных запросов
type QueryRunner interface {
	ExecuteQuery(ctx context.Context, query string, params []any, timeout time.Duration) (*gateway.Table, error)
}

// RunQuery проверяет запрос валидатором и печатает результат
func RunQuery(ctx context.Context, q QueryRunner, validator *security.SQLValidator, sql string, limit int, w io.Writer) error {
	if err := validator.Validate(sql); err != nil {
		return fmt.Errorf("query rejected: %w", err)
	}

	table, err := q.ExecuteQuery(ctx, sql, nil, 0)
	if err != nil {
		return err
	}

	headers := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		headers[i] = c.Name
	}
	return printTable(w, headers, table.Strings(), limit)
}

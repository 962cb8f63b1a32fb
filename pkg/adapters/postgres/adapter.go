package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/adapters/base"
)

// AdapterType идентификатор PostgreSQL адаптера
const AdapterType = "postgres"

const defaultSchema = "public"

var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{Conn: base.NewConn(AdapterType, dialect(defaultSchema)), schema: defaultSchema}
	}, "postgresql", "pgx")
}

// Adapter - PostgreSQL через pgxpool. Каталог читается нативным pgx,
// Gateway работает с тем же пулом через database/sql (pgx/v5/stdlib).
type Adapter struct {
	base.Conn
	pool   *pgxpool.Pool
	schema string
}

func dialect(schema string) adapters.Dialect {
	return base.NewStandardDialect(AdapterType, schema, `"`, base.PlaceholderDollar)
}

// Connect создает pgxpool. MaxConns по умолчанию 10.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolCfg.MaxConns = 10
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping postgres database: %w", err)
	}

	a.schema = cfg.Schema
	if a.schema == "" {
		a.schema = defaultSchema
	}
	a.pool = pool
	a.Attach(stdlib.OpenDBFromPool(pool), dialect(a.schema), pool.Close)
	return nil
}

// Pool возвращает pgxpool (nil до Connect)
func (a *Adapter) Pool() *pgxpool.Pool {
	return a.pool
}

// Schema - схема для имен без префикса
func (a *Adapter) Schema() string {
	if a.schema == "" {
		return defaultSchema
	}
	return a.schema
}

// TableExists - "schema.table" или таблица текущей схемы
func (a *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	if a.pool == nil {
		return false, base.ErrNotConnected
	}
	schema, table := base.SplitTableName(tableName, a.Schema())

	var exists bool
	err := a.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, schema, table).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return exists, nil
}

// GetTableNames - базовые таблицы текущей схемы
func (a *Adapter) GetTableNames(ctx context.Context) ([]string, error) {
	if a.pool == nil {
		return nil, base.ErrNotConnected
	}
	rows, err := a.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, a.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetPrimaryKeys - колонки ключа в порядке объявления
func (a *Adapter) GetPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	schema, table := base.SplitTableName(tableName, a.Schema())
	return a.PrimaryKeys(ctx, schema, table)
}

// GetDatabaseVersion - строка version() сервера
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	return a.Text(ctx, "SELECT version()")
}

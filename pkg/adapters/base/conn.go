package base

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ruslano69/invmirror/pkg/adapters"
)

// ErrNotConnected - вызов до Connect или после Close
var ErrNotConnected = errors.New("adapter not connected")

// Conn - общая часть адаптеров: пул database/sql, диалект и lifecycle.
// Драйвер встраивает Conn и реализует только запросы к каталогу своей СУБД.
type Conn struct {
	kind    string
	dialect adapters.Dialect
	db      *sql.DB

	// release освобождает ресурсы драйвера помимо db (pgx pool)
	release func()
}

// NewConn создает неподключенный Conn. Диалект доступен сразу:
// им пользуются до подключения (проверка конфигурации, тесты).
func NewConn(kind string, dialect adapters.Dialect) Conn {
	return Conn{kind: kind, dialect: dialect}
}

// Open открывает пул через database/sql, применяет настройки пула и проверяет связь.
// dialect != nil заменяет диалект по умолчанию (схема из конфигурации).
func (c *Conn) Open(ctx context.Context, driver string, cfg adapters.Config, dialect adapters.Dialect) error {
	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", c.kind, err)
	}
	adapters.ConfigureDB(db, cfg)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping %s database: %w", c.kind, err)
	}

	c.Attach(db, dialect, nil)
	return nil
}

// Attach подключает уже открытый пул (pgx stdlib поверх pgxpool)
func (c *Conn) Attach(db *sql.DB, dialect adapters.Dialect, release func()) {
	c.db = db
	c.release = release
	if dialect != nil {
		c.dialect = dialect
	}
}

// Close закрывает пул; повторный вызов ничего не делает
func (c *Conn) Close(ctx context.Context) error {
	var err error
	if c.db != nil {
		err = c.db.Close()
		c.db = nil
	}
	if c.release != nil {
		c.release()
		c.release = nil
	}
	return err
}

// Ping проверяет доступность БД
func (c *Conn) Ping(ctx context.Context) error {
	if c.db == nil {
		return ErrNotConnected
	}
	return c.db.PingContext(ctx)
}

// DB возвращает пул для Gateway (nil до Connect)
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Dialect возвращает правила построения SQL
func (c *Conn) Dialect() adapters.Dialect {
	return c.dialect
}

// GetDatabaseType возвращает ключ адаптера в фабрике
func (c *Conn) GetDatabaseType() string {
	return c.kind
}

// Names выполняет запрос к каталогу, возвращающий одну колонку имен
func (c *Conn) Names(ctx context.Context, query string, args ...any) ([]string, error) {
	if c.db == nil {
		return nil, ErrNotConnected
	}
	names, err := QueryStrings(ctx, c.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s catalog: %w", c.kind, err)
	}
	return names, nil
}

// Exists выполняет запрос COUNT(*) к каталогу
func (c *Conn) Exists(ctx context.Context, query string, args ...any) (bool, error) {
	if c.db == nil {
		return false, ErrNotConnected
	}
	var count int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

// Text выполняет запрос, возвращающий одну строку (версия сервера)
func (c *Conn) Text(ctx context.Context, query string, args ...any) (string, error) {
	if c.db == nil {
		return "", ErrNotConnected
	}
	var s string
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&s); err != nil {
		return "", fmt.Errorf("failed to read %s server info: %w", c.kind, err)
	}
	return s, nil
}

// PrimaryKeys - колонки первичного ключа из INFORMATION_SCHEMA
func (c *Conn) PrimaryKeys(ctx context.Context, schema, table string) ([]string, error) {
	if c.db == nil {
		return nil, ErrNotConnected
	}
	return QueryPrimaryKeys(ctx, c.db, c.dialect, schema, table)
}

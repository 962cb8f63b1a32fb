package sqlite

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/adapters/base"
	_ "modernc.org/sqlite"
)

// AdapterType идентификатор SQLite адаптера (modernc, без cgo)
const AdapterType = "sqlite"

var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter { return newAdapter() }, "sqlite3")
}

// Adapter - файл SQLite. Используется для локальных копий инвентаря и в тестах.
type Adapter struct {
	base.Conn
}

func newAdapter() *Adapter {
	return &Adapter{Conn: base.NewConn(AdapterType,
		base.NewStandardDialect(AdapterType, "", `"`, base.PlaceholderQuestion))}
}

// NewAdapter открывает файл БД
func NewAdapter(ctx context.Context, filePath string) (*Adapter, error) {
	a := newAdapter()
	if err := a.Connect(ctx, adapters.Config{Type: AdapterType, DSN: filePath}); err != nil {
		return nil, err
	}
	return a, nil
}

// Connect открывает файл и включает WAL
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	// in-memory база живет в одном подключении: второе подключение пула увидит пустую
	if isMemoryDSN(cfg.DSN) {
		cfg.MaxConns, cfg.MinConns, cfg.ConnMaxLifetime = 1, 1, 0
	}
	if err := a.Open(ctx, "sqlite", cfg, nil); err != nil {
		return err
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000", // ждать блокировку вместо SQLITE_BUSY
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := a.DB().ExecContext(ctx, pragma); err != nil {
			// WAL недоступен для :memory:
			log.Debug().Err(err).Str("pragma", pragma).Msg("sqlite pragma failed")
		}
	}
	return nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// GetDatabaseVersion возвращает версию библиотеки SQLite
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	v, err := a.Text(ctx, "SELECT sqlite_version()")
	if err != nil {
		return "", err
	}
	return "SQLite " + v, nil
}

// TableExists - регистр имени не учитывается, как в SQL Server с collation по умолчанию
func (a *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	return a.Exists(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ? COLLATE NOCASE`, tableName)
}

// GetTableNames - пользовательские таблицы без служебных sqlite_*
func (a *Adapter) GetTableNames(ctx context.Context) ([]string, error) {
	return a.Names(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
}

// GetPrimaryKeys - порядок колонок в PRIMARY KEY (pk = позиция в ключе)
func (a *Adapter) GetPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	return a.Names(ctx, `SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk`, tableName)
}

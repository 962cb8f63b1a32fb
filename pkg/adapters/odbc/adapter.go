//go:build odbc

// Package odbc - адаптер для источников ODBC (DSN из odbc.ini / Администратора ODBC).
// Требует cgo и драйвер-менеджер (unixODBC или Windows ODBC), поэтому собирается
// только с тегом odbc: go build -tags odbc ./...
package odbc

import (
	"context"

	_ "github.com/alexbrainman/odbc"

	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/adapters/base"
)

// AdapterType идентификатор ODBC адаптера
const AdapterType = "odbc"

// fallbackSchema - схема для поиска ключей, если в конфигурации не задана
const fallbackSchema = "dbo"

var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{Conn: base.NewConn(AdapterType, dialect(""))}
	})
}

// Adapter работает с любым источником ODBC, поддерживающим INFORMATION_SCHEMA
type Adapter struct {
	base.Conn
	schema string
}

func dialect(schema string) adapters.Dialect {
	return base.NewStandardDialect(AdapterType, schema, `"`, base.PlaceholderQuestion)
}

// Connect открывает источник. DSN: "DSN=Inventory;UID=user;PWD=pass"
// или строка драйвера "Driver={ODBC Driver 18 for SQL Server};Server=...".
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	a.schema = cfg.Schema
	return a.Open(ctx, "odbc", cfg, dialect(cfg.Schema))
}

// GetDatabaseVersion - у ODBC нет переносимого запроса версии
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	return "ODBC data source", nil
}

// GetTableNames - таблицы из INFORMATION_SCHEMA
func (a *Adapter) GetTableNames(ctx context.Context) ([]string, error) {
	return a.Names(ctx,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`)
}

// TableExists - только по имени таблицы, схема источника неизвестна
func (a *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	_, table := base.SplitTableName(tableName, a.schema)
	return a.Exists(ctx, `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = ?`, table)
}

// GetPrimaryKeys ищет ключ в заданной схеме или в dbo
func (a *Adapter) GetPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	schema, table := base.SplitTableName(tableName, a.schema)
	if schema == "" {
		schema = fallbackSchema
	}
	return a.PrimaryKeys(ctx, schema, table)
}

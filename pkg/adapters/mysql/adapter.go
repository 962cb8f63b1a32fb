package mysql

import (
	"context"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/adapters/base"
)

// AdapterType идентификатор MySQL адаптера
const AdapterType = "mysql"

var _ adapters.Adapter = (*Adapter)(nil)

// Adapter - MySQL / MariaDB. Схема = текущая БД из DSN, квотирование `name`.
type Adapter struct {
	base.Conn
}

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{Conn: base.NewConn(AdapterType, dialect())}
	}, "mariadb")
}

func dialect() adapters.Dialect {
	return base.NewStandardDialect(AdapterType, "", "`", base.PlaceholderQuestion)
}

// Connect открывает пул go-sql-driver/mysql. Для DATETIME колонок DSN должен
// содержать parseTime=true (BuildDSN добавляет его сам).
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	return a.Open(ctx, "mysql", cfg, nil)
}

// GetDatabaseVersion возвращает версию сервера
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	v, err := a.Text(ctx, "SELECT VERSION()")
	if err != nil {
		return "", err
	}
	return "MySQL " + v, nil
}

// GetTableNames - таблицы текущей БД
func (a *Adapter) GetTableNames(ctx context.Context) ([]string, error) {
	return a.Names(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
}

// TableExists проверяет таблицу в текущей БД
func (a *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	return a.Exists(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?`, tableName)
}

// GetPrimaryKeys - "db.table" ищется в указанной БД, иначе в текущей
func (a *Adapter) GetPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	schema, table := base.SplitTableName(tableName, "")
	return a.PrimaryKeys(ctx, schema, table)
}

package mssql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // MS SQL Server driver

	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/adapters/base"
)

// AdapterType is the factory key of the SQL Server adapter.
const AdapterType = "mssql"

// driverName selects the go-mssqldb flavour with native @pN parameters.
const driverName = "sqlserver"

var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{Conn: base.NewConn(AdapterType, base.NewMSSQLDialect(""))}
	}, "sqlserver")
}

// Adapter talks to Microsoft SQL Server, the inventory's primary store.
type Adapter struct {
	base.Conn

	productVersion string // SERVERPROPERTY('ProductVersion'), e.g. 15.0.2000.5
	compatLevel    int    // 110=2012 ... 160=2022
}

// Connect opens the pool and reads the server version. A server that
// refuses SERVERPROPERTY is not an inventory backend we can talk to.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	if err := a.Open(ctx, driverName, cfg, base.NewMSSQLDialect(cfg.Schema)); err != nil {
		return err
	}
	if err := a.detectVersion(ctx); err != nil {
		a.Close(ctx)
		return fmt.Errorf("failed to detect server version: %w", err)
	}
	return nil
}

func (a *Adapter) detectVersion(ctx context.Context) error {
	v, err := a.Text(ctx, "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))")
	if err != nil {
		return err
	}
	a.productVersion = v

	// compatibility level may be unreadable without VIEW DATABASE STATE; not fatal
	if err := a.DB().QueryRowContext(ctx,
		`SELECT compatibility_level FROM sys.databases WHERE name = DB_NAME()`).Scan(&a.compatLevel); err != nil {
		a.compatLevel = 0
	}
	return nil
}

// parseServerVersion returns the major number of a ProductVersion string.
//
//	"11.0.2100.60" -> 11 (SQL Server 2012)
//	"15.0.2000.5"  -> 15 (SQL Server 2019)
func parseServerVersion(version string) int {
	major, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0
	}
	return n
}

var releaseNames = map[int]string{
	11: "SQL Server 2012",
	12: "SQL Server 2014",
	13: "SQL Server 2016",
	14: "SQL Server 2017",
	15: "SQL Server 2019",
	16: "SQL Server 2022",
}

func serverVersionName(major int) string {
	if name, ok := releaseNames[major]; ok {
		return name
	}
	return fmt.Sprintf("SQL Server (version %d)", major)
}

// GetDatabaseVersion reports the release detected at Connect.
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	if a.productVersion == "" {
		return "", base.ErrNotConnected
	}
	s := serverVersionName(parseServerVersion(a.productVersion)) + " " + a.productVersion
	if a.compatLevel > 0 {
		s += fmt.Sprintf(" (compatibility level %d)", a.compatLevel)
	}
	return s, nil
}

func (a *Adapter) schemaName() string {
	return a.Dialect().(*base.MSSQLDialect).SchemaName()
}

// GetTableNames lists base tables of the default schema (dbo unless configured).
func (a *Adapter) GetTableNames(ctx context.Context) ([]string, error) {
	return a.Names(ctx, `
		SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`, a.schemaName())
}

// TableExists accepts "schema.table" or a bare name in the default schema.
func (a *Adapter) TableExists(ctx context.Context, tableName string) (bool, error) {
	schema, table := base.SplitTableName(tableName, a.schemaName())
	return a.Exists(ctx, `
		SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2 AND TABLE_TYPE = 'BASE TABLE'`, schema, table)
}

// GetPrimaryKeys returns key columns in constraint order.
func (a *Adapter) GetPrimaryKeys(ctx context.Context, tableName string) ([]string, error) {
	schema, table := base.SplitTableName(tableName, a.schemaName())
	return a.PrimaryKeys(ctx, schema, table)
}

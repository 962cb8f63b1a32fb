package base

import (
	"fmt"
	"strconv"
	"strings"
)

// PlaceholderStyle - стиль параметров запроса
type PlaceholderStyle int

const (
	// PlaceholderQuestion - "?" (SQLite, MySQL, ODBC)
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar - "$1" (PostgreSQL)
	PlaceholderDollar
	// PlaceholderAtP - "@p1" (MS SQL Server)
	PlaceholderAtP
)

// StandardDialect реализует adapters.Dialect для стандартного SQL (SQLite, PostgreSQL, MySQL)
type StandardDialect struct {
	dbType      string // "sqlite", "postgres", "mysql"
	schemaName  string // "" для SQLite/MySQL
	quoteChar   string // '`' для MySQL, '"' для PostgreSQL/SQLite
	placeholder PlaceholderStyle
}

// NewStandardDialect создает StandardDialect
func NewStandardDialect(dbType, schemaName, quoteChar string, placeholder PlaceholderStyle) *StandardDialect {
	return &StandardDialect{
		dbType:      dbType,
		schemaName:  schemaName,
		quoteChar:   quoteChar,
		placeholder: placeholder,
	}
}

// QuoteIdentifier квотирует идентификатор, удваивая символ кавычки внутри имени
func (d *StandardDialect) QuoteIdentifier(identifier string) string {
	escaped := strings.ReplaceAll(identifier, d.quoteChar, d.quoteChar+d.quoteChar)
	return d.quoteChar + escaped + d.quoteChar
}

// QualifyTable добавляет схему к имени таблицы если она задана.
// Имя вида "schema.table" квотируется по частям.
func (d *StandardDialect) QualifyTable(name string) string {
	if schema, table, ok := strings.Cut(name, "."); ok {
		return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
	}
	if d.schemaName != "" {
		return d.QuoteIdentifier(d.schemaName) + "." + d.QuoteIdentifier(name)
	}
	return d.QuoteIdentifier(name)
}

// Placeholder возвращает параметр с номером n
func (d *StandardDialect) Placeholder(n int) string {
	return placeholder(d.placeholder, n)
}

// InsertDefaults - у MySQL нет DEFAULT VALUES, пустой список колонок работает так же
func (d *StandardDialect) InsertDefaults(table string) string {
	if d.dbType == "mysql" {
		return "INSERT INTO " + table + " () VALUES ()"
	}
	return "INSERT INTO " + table + " DEFAULT VALUES"
}

// MSSQLDialect реализует adapters.Dialect для MS SQL Server
// Квалифицирует имена таблиц: [schema].[table]
type MSSQLDialect struct {
	schemaName string // "dbo" или custom schema
}

// NewMSSQLDialect создает MSSQLDialect
func NewMSSQLDialect(schemaName string) *MSSQLDialect {
	if schemaName == "" {
		schemaName = "dbo"
	}
	return &MSSQLDialect{
		schemaName: schemaName,
	}
}

// QuoteIdentifier квотирует идентификатор для SQL Server
func (d *MSSQLDialect) QuoteIdentifier(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// QualifyTable квалифицирует имя таблицы: [schema].[table]
func (d *MSSQLDialect) QualifyTable(name string) string {
	if schema, table, ok := strings.Cut(name, "."); ok {
		return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
	}
	return fmt.Sprintf("%s.%s", d.QuoteIdentifier(d.schemaName), d.QuoteIdentifier(name))
}

// Placeholder возвращает параметр @pN (go-mssqldb)
func (d *MSSQLDialect) Placeholder(n int) string {
	return placeholder(PlaceholderAtP, n)
}

// InsertDefaults - INSERT ... DEFAULT VALUES
func (d *MSSQLDialect) InsertDefaults(table string) string {
	return "INSERT INTO " + table + " DEFAULT VALUES"
}

// SchemaName возвращает схему по умолчанию
func (d *MSSQLDialect) SchemaName() string {
	return d.schemaName
}

func placeholder(style PlaceholderStyle, n int) string {
	switch style {
	case PlaceholderDollar:
		return "$" + strconv.Itoa(n)
	case PlaceholderAtP:
		return "@p" + strconv.Itoa(n)
	default:
		return "?"
	}
}

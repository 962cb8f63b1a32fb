// Package base предоставляет общие хелперы для всех адаптеров БД.
//
// # Основные компоненты
//
// StandardDialect / MSSQLDialect - правила построения SQL:
//   - QuoteIdentifier() - "name", `name`, [name]
//   - QualifyTable() - имя таблицы со схемой по умолчанию
//   - Placeholder() - ?, $1, @p1
//
// ValueNormalizer - приведение значений драйвера к общим Go типам:
//   - []byte → string (кроме BLOB колонок)
//   - целые → int64, BIT → bool, NUMERIC → float64
//   - UNIQUEIDENTIFIER (MS SQL) и UUID → строка GUID
//
// Conn - общая часть драйверов: Open/Attach пула, Close, Ping, DB, Dialect
// и запросы к каталогу (Names, Exists, Text, PrimaryKeys). Драйвер встраивает
// Conn и добавляет только SQL своей СУБД.
// Gateway использует ValueNormalizer для всех результатов запросов.
package base

package schema

import (
	"fmt"
	"strings"
	"time"
)

// DataType представляет тип данных колонки
type DataType string

// Поддерживаемые типы данных
const (
	TypeInteger   DataType = "INTEGER"
	TypeInt       DataType = "INT"
	TypeReal      DataType = "REAL"
	TypeFloat     DataType = "FLOAT"
	TypeDouble    DataType = "DOUBLE"
	TypeDecimal   DataType = "DECIMAL"
	TypeText      DataType = "TEXT"
	TypeVarchar   DataType = "VARCHAR"
	TypeChar      DataType = "CHAR"
	TypeString    DataType = "STRING"
	TypeBoolean   DataType = "BOOLEAN"
	TypeBool      DataType = "BOOL"
	TypeDate      DataType = "DATE"
	TypeDatetime  DataType = "DATETIME"
	TypeTimestamp DataType = "TIMESTAMP"
	TypeBlob      DataType = "BLOB"
)

// Column - метаданные колонки, полученные при загрузке таблицы
type Column struct {
	// Name - имя колонки в БД
	Name string

	// Type - нормализованный тип
	Type DataType

	// DBType - тип как его вернул драйвер (NVARCHAR, int4, ...)
	DBType string

	// Length - максимальная длина для текстовых колонок (0 = не ограничена)
	Length int

	// Nullable - допускает NULL (если драйвер не сообщает - true)
	Nullable bool

	// Key - входит в первичный ключ
	Key bool
}

// TypedValue представляет типизированное значение
type TypedValue struct {
	Type        DataType
	RawValue    string
	IsNull      bool
	IntValue    *int64
	FloatValue  *float64
	StringValue *string
	BoolValue   *bool
	TimeValue   *time.Time
	BlobValue   []byte
}

// Value возвращает значение в виде, пригодном для параметра SQL запроса
func (tv *TypedValue) Value() any {
	if tv == nil || tv.IsNull {
		return nil
	}
	switch {
	case tv.IntValue != nil:
		return *tv.IntValue
	case tv.FloatValue != nil:
		return *tv.FloatValue
	case tv.StringValue != nil:
		return *tv.StringValue
	case tv.BoolValue != nil:
		return *tv.BoolValue
	case tv.TimeValue != nil:
		return *tv.TimeValue
	case tv.BlobValue != nil:
		return tv.BlobValue
	}
	return tv.RawValue
}

// ValidationError ошибка валидации
type ValidationError struct {
	Field   string
	Message string
	Value   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s (value: '%s')",
		e.Field, e.Message, e.Value)
}

// FromDBType определяет тип колонки по имени типа драйвера.
// Покрывает имена SQLite, MS SQL, PostgreSQL и MySQL.
func FromDBType(dbType string) DataType {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}

	switch t {
	case "BIT", "BOOL", "BOOLEAN":
		return TypeBoolean
	case "DATE":
		return TypeDate
	case "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET", "TIME":
		return TypeDatetime
	case "TIMESTAMP", "TIMESTAMPTZ":
		return TypeTimestamp
	case "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return TypeDecimal
	case "ROWVERSION", "BINARY", "VARBINARY", "IMAGE", "BYTEA", "BLOB",
		"LONGBLOB", "MEDIUMBLOB", "TINYBLOB":
		return TypeBlob
	}

	switch {
	case strings.Contains(t, "INT"), t == "SERIAL", t == "BIGSERIAL":
		return TypeInteger
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOAT"), strings.Contains(t, "DOUBLE"):
		return TypeReal
	case strings.Contains(t, "BLOB"):
		return TypeBlob
	default:
		// CHAR, VARCHAR, NVARCHAR, TEXT, UNIQUEIDENTIFIER, UUID, JSON и пустой тип SQLite
		return TypeText
	}
}

// IsNumericType проверяет является ли тип числовым
func IsNumericType(t DataType) bool {
	switch t {
	case TypeInteger, TypeInt, TypeReal, TypeFloat, TypeDouble, TypeDecimal:
		return true
	default:
		return false
	}
}

// IsTextType проверяет является ли тип текстовым
func IsTextType(t DataType) bool {
	switch t {
	case TypeText, TypeVarchar, TypeChar, TypeString:
		return true
	default:
		return false
	}
}

// IsDateTimeType проверяет является ли тип временным
func IsDateTimeType(t DataType) bool {
	switch t {
	case TypeDate, TypeDatetime, TypeTimestamp:
		return true
	default:
		return false
	}
}

// IsBooleanType проверяет является ли тип логическим
func IsBooleanType(t DataType) bool {
	return t == TypeBoolean || t == TypeBool
}

// IsBlobType проверяет является ли тип бинарным
func IsBlobType(t DataType) bool {
	return t == TypeBlob
}

// NormalizeType нормализует синонимы типов
func NormalizeType(t DataType) DataType {
	switch t {
	case TypeInt:
		return TypeInteger
	case TypeFloat, TypeDouble:
		return TypeReal
	case TypeVarchar, TypeChar, TypeString:
		return TypeText
	case TypeBool:
		return TypeBoolean
	default:
		return t
	}
}

// IsValidType проверяет валидность типа данных
func IsValidType(t DataType) bool {
	switch NormalizeType(t) {
	case TypeInteger, TypeReal, TypeDecimal, TypeText,
		TypeBoolean, TypeDate, TypeDatetime, TypeTimestamp, TypeBlob:
		return true
	default:
		return false
	}
}

// Index возвращает позицию колонки по имени (без учета регистра) или -1
func Index(columns []Column, name string) int {
	for i, c := range columns {
		if c.Name == name {
			return i
		}
	}
	for i, c := range columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Names возвращает имена колонок в порядке следования
func Names(columns []Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

package base

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ruslano69/invmirror/pkg/core/schema"
)

// ValueNormalizer приводит значения, отданные драйвером, к единому набору Go типов:
// nil, string, int64, float64, bool, time.Time и []byte (только для BLOB колонок).
// Благодаря этому сравнение с baseline и отображение не зависят от СУБД.
type ValueNormalizer struct {
	converter *schema.Converter
}

// NewValueNormalizer создает новый ValueNormalizer
func NewValueNormalizer() *ValueNormalizer {
	return &ValueNormalizer{
		converter: schema.NewConverter(),
	}
}

// NormalizeValue нормализует значение колонки col, прочитанное драйвером dbType
func (n *ValueNormalizer) NormalizeValue(val any, col schema.Column, dbType string) any {
	if val == nil {
		return nil
	}

	colType := schema.NormalizeType(col.Type)

	switch v := val.(type) {
	case []byte:
		if colType == schema.TypeBlob {
			out := make([]byte, len(v))
			copy(out, v)
			return out
		}
		if dbType == "mssql" && len(v) == 16 && isGUIDColumn(col) {
			return formatMSSQLGUID(v)
		}
		return n.coerceText(string(v), col)

	case string:
		if colType == schema.TypeBlob {
			return []byte(v)
		}
		return n.coerceText(v, col)

	case [16]byte:
		return formatUUID(v[:])

	case int:
		return n.coerceInt(int64(v), colType)
	case int8:
		return n.coerceInt(int64(v), colType)
	case int16:
		return n.coerceInt(int64(v), colType)
	case int32:
		return n.coerceInt(int64(v), colType)
	case int64:
		return n.coerceInt(v, colType)
	case uint:
		return n.coerceInt(int64(v), colType)
	case uint8:
		return n.coerceInt(int64(v), colType)
	case uint16:
		return n.coerceInt(int64(v), colType)
	case uint32:
		return n.coerceInt(int64(v), colType)
	case uint64:
		return n.coerceInt(int64(v), colType)

	case float32:
		return float64(v)
	case float64:
		return v

	case bool:
		return v

	case time.Time:
		return v

	case pgtype.Numeric:
		// PostgreSQL NUMERIC/DECIMAL
		if !v.Valid {
			return nil
		}
		f64, err := v.Float64Value()
		if err == nil && f64.Valid {
			return f64.Float64
		}
		return v.Int.String()

	case map[string]any, []any:
		// JSON/JSONB
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(jsonBytes)

	default:
		if s, ok := val.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprint(val)
	}
}

// coerceInt приводит целое к типу колонки: BIT/BOOLEAN → bool, DECIMAL/REAL → float64
func (n *ValueNormalizer) coerceInt(v int64, colType schema.DataType) any {
	switch colType {
	case schema.TypeBoolean:
		return v != 0
	case schema.TypeReal, schema.TypeDecimal:
		return float64(v)
	default:
		return v
	}
}

// coerceText разбирает текстовое представление (MySQL text protocol, DECIMAL из go-mssqldb,
// даты SQLite в TEXT колонках). Если текст не разбирается - возвращается как есть.
func (n *ValueNormalizer) coerceText(s string, col schema.Column) any {
	colType := schema.NormalizeType(col.Type)
	if colType == schema.TypeText || colType == "" {
		return s
	}

	parseCol := col
	parseCol.Nullable = true
	parseCol.Length = 0

	tv, err := n.converter.ParseValue(s, parseCol)
	if err != nil || tv.IsNull {
		return s
	}
	return tv.Value()
}

func isGUIDColumn(col schema.Column) bool {
	switch col.DBType {
	case "UNIQUEIDENTIFIER", "uniqueidentifier":
		return true
	}
	return false
}

// formatMSSQLGUID форматирует UNIQUEIDENTIFIER из go-mssqldb.
// Первые три группы хранятся в little-endian.
func formatMSSQLGUID(b []byte) string {
	return fmt.Sprintf("%X-%X-%X-%X-%X",
		[]byte{b[3], b[2], b[1], b[0]},
		[]byte{b[5], b[4]},
		[]byte{b[7], b[6]},
		b[8:10], b[10:16])
}

// formatUUID форматирует 16 байт как UUID: xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx
func formatUUID(b []byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x",
		b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

package schema

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Форматы отображения дат в таблице
const (
	DateLayout     = "2006-01-02"
	DatetimeLayout = "2006-01-02 15:04:05"
)

// datetimeLayouts - форматы, которые принимаются при вводе даты/времени
var datetimeLayouts = []string{
	DatetimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04",
	DateLayout,
}

// Converter отвечает за конвертацию значений между текстом ячейки и типом колонки
type Converter struct{}

// NewConverter создает новый конвертер
func NewConverter() *Converter {
	return &Converter{}
}

// ParseText парсит текст ячейки и возвращает значение для записи в Mirror
func (c *Converter) ParseText(rawValue string, col Column) (any, error) {
	tv, err := c.ParseValue(rawValue, col)
	if err != nil {
		return nil, err
	}
	return tv.Value(), nil
}

// ParseValue парсит строковое значение согласно типу колонки
func (c *Converter) ParseValue(rawValue string, col Column) (*TypedValue, error) {
	tv := &TypedValue{
		Type:     col.Type,
		RawValue: rawValue,
	}

	normalized := NormalizeType(col.Type)

	// ВАЖНО: Для TEXT пустая строка "" - валидное значение, НЕ NULL!
	if normalized != TypeText && strings.TrimSpace(rawValue) == "" {
		tv.IsNull = true
		if !col.Nullable {
			return nil, &ValidationError{
				Field:   col.Name,
				Message: "field is not nullable",
				Value:   rawValue,
			}
		}
		return tv, nil
	}

	switch normalized {
	case TypeInteger:
		return c.parseInteger(tv, col)
	case TypeReal, TypeDecimal:
		return c.parseReal(tv, col)
	case TypeText, "":
		return c.parseText(tv, col)
	case TypeBoolean:
		return c.parseBoolean(tv, col)
	case TypeDate:
		return c.parseDate(tv, col)
	case TypeDatetime:
		return c.parseDatetime(tv, col, false)
	case TypeTimestamp:
		return c.parseDatetime(tv, col, true)
	case TypeBlob:
		return c.parseBlob(tv, col)
	default:
		return nil, &ValidationError{
			Field:   col.Name,
			Message: fmt.Sprintf("unsupported type: %s", col.Type),
			Value:   rawValue,
		}
	}
}

func (c *Converter) parseInteger(tv *TypedValue, col Column) (*TypedValue, error) {
	val, err := strconv.ParseInt(strings.TrimSpace(tv.RawValue), 10, 64)
	if err != nil {
		return nil, &ValidationError{
			Field:   col.Name,
			Message: "invalid integer value",
			Value:   tv.RawValue,
		}
	}
	tv.IntValue = &val
	return tv, nil
}

// parseReal парсит REAL/FLOAT/DECIMAL. Запятая принимается как десятичный разделитель.
func (c *Converter) parseReal(tv *TypedValue, col Column) (*TypedValue, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(tv.RawValue), ",", ".")
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &ValidationError{
			Field:   col.Name,
			Message: "invalid numeric value",
			Value:   tv.RawValue,
		}
	}
	tv.FloatValue = &val
	return tv, nil
}

func (c *Converter) parseText(tv *TypedValue, col Column) (*TypedValue, error) {
	val := tv.RawValue

	// Считаем Unicode символы, а не байты
	if col.Length > 0 && utf8.RuneCountInString(val) > col.Length {
		return nil, &ValidationError{
			Field:   col.Name,
			Message: fmt.Sprintf("text length exceeds %d", col.Length),
			Value:   tv.RawValue,
		}
	}

	tv.StringValue = &val
	return tv, nil
}

func (c *Converter) parseBoolean(tv *TypedValue, col Column) (*TypedValue, error) {
	var val bool
	switch strings.ToLower(strings.TrimSpace(tv.RawValue)) {
	case "0", "false", "no", "n":
		val = false
	case "1", "true", "yes", "y":
		val = true
	default:
		return nil, &ValidationError{
			Field:   col.Name,
			Message: "boolean must be 0/1 or true/false",
			Value:   tv.RawValue,
		}
	}
	tv.BoolValue = &val
	return tv, nil
}

// parseDate парсит DATE, временная часть отбрасывается
func (c *Converter) parseDate(tv *TypedValue, col Column) (*TypedValue, error) {
	val, ok := parseTime(tv.RawValue)
	if !ok {
		return nil, &ValidationError{
			Field:   col.Name,
			Message: "invalid date format, expected YYYY-MM-DD",
			Value:   tv.RawValue,
		}
	}
	val = time.Date(val.Year(), val.Month(), val.Day(), 0, 0, 0, 0, time.UTC)
	tv.TimeValue = &val
	return tv, nil
}

// parseDatetime парсит DATETIME/TIMESTAMP. TIMESTAMP всегда UTC.
func (c *Converter) parseDatetime(tv *TypedValue, col Column, utc bool) (*TypedValue, error) {
	val, ok := parseTime(tv.RawValue)
	if !ok {
		return nil, &ValidationError{
			Field:   col.Name,
			Message: "invalid datetime format, expected YYYY-MM-DD HH:MM:SS",
			Value:   tv.RawValue,
		}
	}
	if utc {
		val = val.UTC()
	}
	tv.TimeValue = &val
	return tv, nil
}

// parseBlob парсит BLOB (Base64)
func (c *Converter) parseBlob(tv *TypedValue, col Column) (*TypedValue, error) {
	val, err := base64.StdEncoding.DecodeString(strings.TrimSpace(tv.RawValue))
	if err != nil {
		return nil, &ValidationError{
			Field:   col.Name,
			Message: "invalid base64 encoding",
			Value:   tv.RawValue,
		}
	}
	tv.BlobValue = val
	return tv, nil
}

func parseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range datetimeLayouts {
		if val, err := time.Parse(layout, raw); err == nil {
			return val, true
		}
	}
	return time.Time{}, false
}

// FormatValue форматирует нормализованное значение ячейки для отображения,
// поиска и экспорта. NULL отображается пустой строкой.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(DateLayout)
		}
		return val.Format(DatetimeLayout)
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

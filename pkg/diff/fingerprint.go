package diff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/zeebo/xxh3"
)

// Теги типов в канонической кодировке
const (
	tagNull byte = iota
	tagString
	tagInt
	tagFloat
	tagBool
	tagTime
	tagBytes
)

// Fingerprint вычисляет xxh3 хэш строки.
// Равные по Equal строки дают одинаковый отпечаток.
func Fingerprint(values []any) uint64 {
	h := xxh3.New()
	var buf [9]byte
	for _, v := range values {
		h.Write(encodeValue(buf[:0], v))
	}
	return h.Sum64()
}

// encodeValue кодирует значение как тег + длина + данные
func encodeValue(dst []byte, v any) []byte {
	v = canonical(v)

	switch x := v.(type) {
	case nil:
		return append(dst, tagNull)
	case int64:
		dst = append(dst, tagInt)
		return binary.BigEndian.AppendUint64(dst, uint64(x))
	case float64:
		dst = append(dst, tagFloat)
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(x))
	case bool:
		if x {
			return append(dst, tagBool, 1)
		}
		return append(dst, tagBool, 0)
	case time.Time:
		return withLength(dst, tagTime, []byte(x.UTC().Format(time.RFC3339Nano)))
	case []byte:
		return withLength(dst, tagBytes, x)
	case string:
		return withLength(dst, tagString, []byte(x))
	default:
		return withLength(dst, tagString, []byte(fmt.Sprint(x)))
	}
}

func withLength(dst []byte, tag byte, data []byte) []byte {
	dst = append(dst, tag)
	dst = binary.BigEndian.AppendUint64(dst, uint64(len(data)))
	return append(dst, data...)
}

// canonical сводит значение к одному представлению:
// целые типы → int64, float32 → float64, целый float64 → int64.
func canonical(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		return int64(x)
	case uint64:
		return int64(x)
	case float32:
		return canonical(float64(x))
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x)
		}
		return x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	default:
		return v
	}
}

// Equal сравнивает два нормализованных значения
func Equal(a, b any) bool {
	a, b = canonical(a), canonical(b)

	switch x := a.(type) {
	case nil:
		return b == nil
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	case []byte:
		y, ok := b.([]byte)
		return ok && bytes.Equal(x, y)
	case int64, float64, bool, string:
		return a == b
	default:
		if b == nil {
			return false
		}
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

// EqualRows сравнивает строки поэлементно
func EqualRows(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

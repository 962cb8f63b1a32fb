package security

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// MaxIdentifierLength - предел длины имени таблицы/колонки (sysname в SQL Server)
const MaxIdentifierLength = 128

// ErrInvalidIdentifier возвращается для имен, которые нельзя подставить в SQL
var ErrInvalidIdentifier = errors.New("invalid identifier")

// ValidateIdentifier проверяет имя таблицы или колонки перед квотированием в SQL.
//
// Разрешены буквы, цифры, '_', '$', '#', точка (schema.table) и пробелы внутри имени.
// Кавычки, скобки, ';' и комментарии запрещены.
func ValidateIdentifier(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	}
	if len([]rune(name)) > MaxIdentifierLength {
		return fmt.Errorf("%w: %q exceeds %d characters", ErrInvalidIdentifier, name, MaxIdentifierLength)
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("%w: %q has leading or trailing spaces", ErrInvalidIdentifier, name)
	}
	if strings.Contains(name, "--") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}

	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
		case r == '_', r == '$', r == '#', r == '.', r == ' ':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidIdentifier, name, r)
		}
	}

	return nil
}

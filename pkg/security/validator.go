package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrReadOnlyQuery - в безопасном режиме разрешены только SELECT и WITH
	ErrReadOnlyQuery = errors.New("only SELECT and WITH queries allowed in safe mode")

	// ErrForbiddenKeyword - запрос содержит изменяющую команду
	ErrForbiddenKeyword = errors.New("forbidden keyword in safe mode")

	// ErrMultipleStatements - больше одной команды в запросе
	ErrMultipleStatements = errors.New("multiple statements not allowed in safe mode")

	// ErrComments - комментарии в запросе
	ErrComments = errors.New("SQL comments not allowed in safe mode")

	// ErrUnsafeDenied - небезопасный режим без прав администратора
	ErrUnsafeDenied = errors.New("unsafe mode requires administrator privileges")
)

// Изменяющие и служебные команды, запрещенные в безопасном режиме
var forbiddenKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "TRUNCATE": true, "MERGE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "RENAME": true,
	"GRANT": true, "REVOKE": true, "DENY": true,
	"EXECUTE": true, "EXEC": true, "CALL": true,
	"PRAGMA": true, "ATTACH": true, "DETACH": true, "VACUUM": true, "REINDEX": true,
	"BEGIN": true, "COMMIT": true, "ROLLBACK": true, "SAVEPOINT": true,
	"INTO": true, "SHUTDOWN": true, "KILL": true, "BACKUP": true, "RESTORE": true,
}

var (
	stringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)
	quotedName    = regexp.MustCompile(`"[^"]*"|\[[^\]]*\]|` + "`[^`]*`")
	word          = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
)

// SQLValidator проверяет произвольные запросы команды -query.
//
// В safe mode (по умолчанию) разрешен один SELECT или WITH без комментариев.
// Ключевые слова ищутся по токенам после удаления строковых литералов и
// квотированных имен, поэтому WHERE Note = 'DELETE' и колонка [Update Date]
// не считаются изменяющими командами.
//
// В unsafe mode все запросы разрешены.
type SQLValidator struct {
	safeMode bool
}

// NewSQLValidator создает валидатор; safeMode=false пропускает все запросы
func NewSQLValidator(safeMode bool) *SQLValidator {
	return &SQLValidator{safeMode: safeMode}
}

// Validate проверяет запрос
func (v *SQLValidator) Validate(sql string) error {
	if !v.safeMode {
		return nil
	}

	// комментарии проверяются до удаления литералов: '--' в строке тоже отклоняется
	if strings.Contains(sql, "--") || strings.Contains(sql, "/*") || strings.Contains(sql, "*/") {
		return ErrComments
	}

	scrubbed := Scrub(sql)

	if err := checkSingleStatement(scrubbed); err != nil {
		return err
	}

	tokens := word.FindAllString(strings.ToUpper(scrubbed), -1)
	if len(tokens) == 0 {
		return fmt.Errorf("%w, got: empty query", ErrReadOnlyQuery)
	}
	if tokens[0] != "SELECT" && tokens[0] != "WITH" {
		return fmt.Errorf("%w, got: %s", ErrReadOnlyQuery, tokens[0])
	}

	for _, tok := range tokens {
		if forbiddenKeywords[tok] {
			return fmt.Errorf("%w: '%s'", ErrForbiddenKeyword, tok)
		}
	}

	return nil
}

// Scrub заменяет строковые литералы и квотированные имена заглушками
func Scrub(sql string) string {
	out := stringLiteral.ReplaceAllString(sql, "''")
	return quotedName.ReplaceAllString(out, "_q")
}

// checkSingleStatement - не более одной ';' и только в конце
func checkSingleStatement(sql string) error {
	trimmed := strings.TrimSpace(sql)
	switch strings.Count(trimmed, ";") {
	case 0:
		return nil
	case 1:
		if strings.HasSuffix(trimmed, ";") {
			return nil
		}
	}
	return ErrMultipleStatements
}

// IsSafeMode возвращает текущий режим валидатора
func (v *SQLValidator) IsSafeMode() bool {
	return v.safeMode
}

// SetSafeMode устанавливает режим валидатора
func (v *SQLValidator) SetSafeMode(safeMode bool) {
	v.safeMode = safeMode
}

package gateway

import (
	"fmt"
	"time"
)

// ConnectionError - не удалось получить или проверить подключение к БД
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError - СУБД отклонила запрос (синтаксис, ограничения, права)
type QueryError struct {
	Op    string
	Query string // безопасный текст запроса, см. SafeQuery
	Err   error
}

func (e *QueryError) Error() string {
	if e.Query == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v (query: %s)", e.Op, e.Err, e.Query)
}

func (e *QueryError) Unwrap() error { return e.Err }

// TimeoutError - запрос не уложился в таймаут
type TimeoutError struct {
	Op      string
	Query   string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s (query: %s)", e.Op, e.Timeout, e.Query)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// rollbackError переносит ошибку fn из InTx через observe без классификации,
// метрика получает статус исходной ошибки
type rollbackError struct {
	err error
}

func (e *rollbackError) Error() string { return "transaction rolled back: " + e.err.Error() }
func (e *rollbackError) Unwrap() error { return e.err }

package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeLayout - формат времени в текстовом логе
const TimeLayout = "2006-01-02 15:04:05"

// Level - уровень детализации логирования
type Level int

const (
	// LevelMinimal - только категория и сообщение
	LevelMinimal Level = iota

	// LevelStandard - стандартная информация
	LevelStandard

	// LevelFull - полная информация включая метаданные
	LevelFull
)

// String - строковое представление уровня
func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelStandard:
		return "standard"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// ParseLevel разбирает уровень из конфигурации
func ParseLevel(s string) Level {
	switch s {
	case "minimal":
		return LevelMinimal
	case "full":
		return LevelFull
	default:
		return LevelStandard
	}
}

// Category - категория записи журнала
type Category string

const (
	CategorySystem   Category = "SYSTEM"
	CategoryDatabase Category = "DATABASE"
	CategoryData     Category = "DATA"
	CategoryEdit     Category = "EDIT"
	CategorySearch   Category = "SEARCH"
	CategorySecurity Category = "SECURITY"
	CategoryUser     Category = "USER"
	CategoryConfig   Category = "CONFIG"
	CategoryExport   Category = "EXPORT"
	CategoryError    Category = "ERROR"
	CategoryWarning  Category = "WARNING"
	CategoryInfo     Category = "INFO"
	CategoryInit     Category = "INIT"
)

// Operation - тип операции
type Operation string

const (
	OpLoad      Operation = "load"
	OpSave      Operation = "save"
	OpEdit      Operation = "edit"
	OpSearch    Operation = "search"
	OpExport    Operation = "export"
	OpQuery     Operation = "query"
	OpConnect   Operation = "connect"
	OpLogin     Operation = "login"
	OpLogout    Operation = "logout"
	OpUserAdmin Operation = "user_admin"
)

// Status - статус выполнения операции
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Entry - запись журнала
type Entry struct {
	// ID - уникальный идентификатор записи
	ID string `json:"id"`

	// Timestamp - время записи
	Timestamp time.Time `json:"timestamp"`

	// Category - категория (SYSTEM, DATABASE, ERROR, ...)
	Category Category `json:"category"`

	// Message - текст сообщения
	Message string `json:"message"`

	// Operation - тип операции (если запись описывает операцию)
	Operation Operation `json:"operation,omitempty"`

	// Status - статус выполнения
	Status Status `json:"status,omitempty"`

	// User - пользователь
	User string `json:"user,omitempty"`

	// Resource - таблица или файл
	Resource string `json:"resource,omitempty"`

	// RecordsAffected - количество затронутых записей
	RecordsAffected int64 `json:"records_affected,omitempty"`

	// Duration - длительность операции
	Duration time.Duration `json:"duration,omitempty"`

	// ErrorMessage - сообщение об ошибке
	ErrorMessage string `json:"error_message,omitempty"`

	// Metadata - дополнительные метаданные (только LevelFull)
	Metadata map[string]any `json:"metadata,omitempty"`

	// SessionID - идентификатор сессии
	SessionID string `json:"session_id,omitempty"`
}

// NewEntry - создать запись с категорией и сообщением
func NewEntry(category Category, message string) *Entry {
	return &Entry{
		ID:        generateID(),
		Timestamp: time.Now(),
		Category:  category,
		Message:   message,
	}
}

// WithOperation - установить операцию и статус
func (e *Entry) WithOperation(op Operation, status Status) *Entry {
	e.Operation = op
	e.Status = status
	return e
}

// WithUser - установить пользователя
func (e *Entry) WithUser(user string) *Entry {
	e.User = user
	return e
}

// WithResource - установить ресурс
func (e *Entry) WithResource(resource string) *Entry {
	e.Resource = resource
	return e
}

// WithRecordsAffected - установить количество записей
func (e *Entry) WithRecordsAffected(count int64) *Entry {
	e.RecordsAffected = count
	return e
}

// WithDuration - установить длительность
func (e *Entry) WithDuration(duration time.Duration) *Entry {
	e.Duration = duration
	return e
}

// WithError - установить ошибку; запись переходит в категорию ERROR
func (e *Entry) WithError(err error) *Entry {
	if err != nil {
		e.ErrorMessage = err.Error()
		e.Status = StatusFailure
		e.Category = CategoryError
	}
	return e
}

// WithMetadata - добавить метаданные
func (e *Entry) WithMetadata(key string, value any) *Entry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// WithSessionID - установить ID сессии
func (e *Entry) WithSessionID(sessionID string) *Entry {
	e.SessionID = sessionID
	return e
}

// ToJSON - преобразовать в JSON
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// String - строка текстового журнала: [2006-01-02 15:04:05] CATEGORY: message
func (e *Entry) String() string {
	msg := e.Message
	if e.ErrorMessage != "" && msg != e.ErrorMessage {
		if msg == "" {
			msg = e.ErrorMessage
		} else {
			msg += ": " + e.ErrorMessage
		}
	}
	return fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format(TimeLayout), e.Category, msg)
}

// Clone - создать копию записи
func (e *Entry) Clone() *Entry {
	clone := *e

	if e.Metadata != nil {
		clone.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}

	return &clone
}

// FilterByLevel - фильтрация полей по уровню
func (e *Entry) FilterByLevel(level Level) *Entry {
	filtered := e.Clone()

	switch level {
	case LevelMinimal:
		filtered.Metadata = nil
		filtered.SessionID = ""
		filtered.Duration = 0

	case LevelStandard:
		filtered.Metadata = nil

	case LevelFull:
		// Ничего не фильтруем
	}

	return filtered
}

// generateID - ID записи: UUID v4, уникален между запусками (колонка id в audit_log)
func generateID() string {
	return uuid.NewString()
}

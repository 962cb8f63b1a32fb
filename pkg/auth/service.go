package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ruslano69/invmirror/pkg/adapters"
	"github.com/ruslano69/invmirror/pkg/gateway"
	"github.com/ruslano69/invmirror/pkg/security"
)

var (
	ErrUnknownUser     = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrUserExists      = errors.New("user already exists")
	ErrDeleteSelf      = errors.New("cannot delete the current user")
	ErrEmptyUsername   = errors.New("username is required")
)

// Querier - часть Gateway, нужная сервису
type Querier interface {
	Dialect() adapters.Dialect
	ExecuteQuery(ctx context.Context, query string, params []any, timeout time.Duration) (*gateway.Table, error)
	ExecuteNonQuery(ctx context.Context, query string, params []any, timeout time.Duration) (int64, error)
	ExecuteScalar(ctx context.Context, query string, params []any, timeout time.Duration) (any, error)
}

// Logger - журнал (категория + сообщение)
type Logger interface {
	LogMessage(category, message string)
}

type nopLogger struct{}

func (nopLogger) LogMessage(string, string) {}

// Config - настройки сервиса
type Config struct {
	UsersTable string   // по умолчанию Users
	AuditTable string   // по умолчанию UserAuditLog; "-" отключает запись в таблицу
	AdminRoles []string // по умолчанию DefaultAdminRoles
	Logger     Logger
}

// User - строка таблицы пользователей (без пароля)
type User struct {
	Username string
	Role     string
}

// Service - вход и администрирование пользователей
type Service struct {
	q          Querier
	users      string
	audit      string
	adminRoles []string
	logger     Logger

	colUser, colPass, colRole string
}

// NewService создает сервис. Имена таблиц проверяются.
func NewService(q Querier, cfg Config) (*Service, error) {
	if cfg.UsersTable == "" {
		cfg.UsersTable = "Users"
	}
	if cfg.AuditTable == "" {
		cfg.AuditTable = "UserAuditLog"
	}
	if len(cfg.AdminRoles) == 0 {
		cfg.AdminRoles = DefaultAdminRoles
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	if err := security.ValidateIdentifier(cfg.UsersTable); err != nil {
		return nil, fmt.Errorf("users table: %w", err)
	}

	d := q.Dialect()
	s := &Service{
		q:          q,
		users:      d.QualifyTable(cfg.UsersTable),
		adminRoles: cfg.AdminRoles,
		logger:     cfg.Logger,
		colUser:    d.QuoteIdentifier("Username"),
		colPass:    d.QuoteIdentifier("Password"),
		colRole:    d.QuoteIdentifier("Role"),
	}

	if cfg.AuditTable != "-" {
		if err := security.ValidateIdentifier(cfg.AuditTable); err != nil {
			return nil, fmt.Errorf("audit table: %w", err)
		}
		s.audit = d.QualifyTable(cfg.AuditTable)
	}

	return s, nil
}

func (s *Service) ph(n int) string {
	return s.q.Dialect().Placeholder(n)
}

// Login проверяет учетные данные и возвращает личность пользователя
func (s *Service) Login(ctx context.Context, username, password string) (Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Identity{}, ErrEmptyUsername
	}

	exists, err := s.UserExists(ctx, username)
	if err != nil {
		return Identity{}, err
	}
	if !exists {
		s.logger.LogMessage("SECURITY", fmt.Sprintf("Login failed - unknown user: %s", username))
		return Identity{}, ErrUnknownUser
	}

	ok, err := s.ValidateCredentials(ctx, username, password)
	if err != nil {
		return Identity{}, err
	}
	if !ok {
		s.logger.LogMessage("SECURITY", fmt.Sprintf("Login failed - invalid password for user: %s", username))
		return Identity{}, ErrInvalidPassword
	}

	role, err := s.UserRole(ctx, username)
	if err != nil {
		return Identity{}, err
	}

	id := NewIdentity(username, role, s.adminRoles...)
	s.LogLogin(ctx, id)
	return id, nil
}

// ValidateCredentials - совпадают ли имя и пароль
func (s *Service) ValidateCredentials(ctx context.Context, username, password string) (bool, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s AND %s = %s",
		s.users, s.colUser, s.ph(1), s.colPass, s.ph(2))

	n, err := s.count(ctx, query, username, password)
	if err != nil {
		s.logger.LogMessage("ERROR", fmt.Sprintf("ValidateUserCredentials error: %v", err))
		return false, fmt.Errorf("failed to validate user credentials: %w", err)
	}
	return n > 0, nil
}

// UserRole возвращает роль пользователя
func (s *Service) UserRole(ctx context.Context, username string) (string, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", s.colRole, s.users, s.colUser, s.ph(1))

	v, err := s.q.ExecuteScalar(ctx, query, []any{username}, 0)
	if err != nil {
		s.logger.LogMessage("ERROR", fmt.Sprintf("GetUserRole error: %v", err))
		return "", fmt.Errorf("failed to get user role: %w", err)
	}
	if v == nil {
		return "", ErrUnknownUser
	}
	return strings.TrimSpace(fmt.Sprint(v)), nil
}

// UserExists - есть ли пользователь
func (s *Service) UserExists(ctx context.Context, username string) (bool, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s", s.users, s.colUser, s.ph(1))

	n, err := s.count(ctx, query, username)
	if err != nil {
		s.logger.LogMessage("ERROR", fmt.Sprintf("UserExists error: %v", err))
		return false, fmt.Errorf("failed to check if user exists: %w", err)
	}
	return n > 0, nil
}

// CreateUser добавляет пользователя
func (s *Service) CreateUser(ctx context.Context, username, password, role string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}

	exists, err := s.UserExists(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		s.logger.LogMessage("WARNING", fmt.Sprintf("User creation failed - user already exists: %s", username))
		return fmt.Errorf("%s: %w", username, ErrUserExists)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (%s, %s, %s)",
		s.users, s.colUser, s.colPass, s.colRole, s.ph(1), s.ph(2), s.ph(3))
	if _, err := s.q.ExecuteNonQuery(ctx, query, []any{username, password, role}, 0); err != nil {
		s.logger.LogMessage("ERROR", fmt.Sprintf("CreateUser error: %v", err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.LogMessage("USER", fmt.Sprintf("User created: %s (Role: %s)", username, role))
	return nil
}

// DeleteUser удаляет пользователя; текущего пользователя удалить нельзя
func (s *Service) DeleteUser(ctx context.Context, current Identity, username string) error {
	if strings.EqualFold(current.Username, username) {
		s.logger.LogMessage("WARNING", fmt.Sprintf("User deletion prevented - cannot delete current user: %s", username))
		return ErrDeleteSelf
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", s.users, s.colUser, s.ph(1))
	n, err := s.q.ExecuteNonQuery(ctx, query, []any{username}, 0)
	if err != nil {
		s.logger.LogMessage("ERROR", fmt.Sprintf("DeleteUser error: %v", err))
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", username, ErrUnknownUser)
	}

	s.logger.LogMessage("USER", fmt.Sprintf("User deleted: %s", username))
	return nil
}

// UpdateUserRole меняет роль пользователя
func (s *Service) UpdateUserRole(ctx context.Context, username, role string) error {
	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s", s.users, s.colRole, s.ph(1), s.colUser, s.ph(2))
	n, err := s.q.ExecuteNonQuery(ctx, query, []any{role, username}, 0)
	if err != nil {
		s.logger.LogMessage("ERROR", fmt.Sprintf("UpdateUserRole error: %v", err))
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", username, ErrUnknownUser)
	}

	s.logger.LogMessage("USER", fmt.Sprintf("User role updated: %s -> %s", username, role))
	return nil
}

// ChangePassword меняет пароль после проверки текущего
func (s *Service) ChangePassword(ctx context.Context, username, currentPassword, newPassword string) error {
	ok, err := s.ValidateCredentials(ctx, username, currentPassword)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.LogMessage("SECURITY", fmt.Sprintf("Password change failed - invalid current password for user: %s", username))
		return ErrInvalidPassword
	}

	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = %s", s.users, s.colPass, s.ph(1), s.colUser, s.ph(2))
	if _, err := s.q.ExecuteNonQuery(ctx, query, []any{newPassword, username}, 0); err != nil {
		s.logger.LogMessage("ERROR", fmt.Sprintf("ChangeUserPassword error: %v", err))
		return fmt.Errorf("failed to change password: %w", err)
	}

	s.logger.LogMessage("USER", fmt.Sprintf("Password changed for user: %s", username))
	return nil
}

// ListUsers возвращает пользователей по имени
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	query := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s", s.colUser, s.colRole, s.users, s.colUser)

	table, err := s.q.ExecuteQuery(ctx, query, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]User, 0, table.Len())
	for _, row := range table.Strings() {
		users = append(users, User{Username: row[0], Role: row[1]})
	}
	return users, nil
}

// LogLogin пишет вход в журнал и UserAuditLog. Ошибки не возвращаются.
func (s *Service) LogLogin(ctx context.Context, id Identity) {
	s.logger.LogMessage("USER", fmt.Sprintf("User logged in: %s (Role: %s)", id.Username, id.Role))
	s.writeAudit(ctx, id.Username, "LOGIN", fmt.Sprintf("User logged in with role: %s", id.Role))
}

// LogLogout пишет выход в журнал и UserAuditLog
func (s *Service) LogLogout(ctx context.Context, id Identity) {
	s.logger.LogMessage("USER", fmt.Sprintf("User logged out: %s", id.Username))
	s.writeAudit(ctx, id.Username, "LOGOUT", "User logged out")
}

func (s *Service) writeAudit(ctx context.Context, username, action, description string) {
	if s.audit == "" {
		return
	}

	d := s.q.Dialect()
	query := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s) VALUES (%s, %s, %s, %s)",
		s.audit,
		d.QuoteIdentifier("Username"), d.QuoteIdentifier("Action"),
		d.QuoteIdentifier("Description"), d.QuoteIdentifier("Timestamp"),
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))

	if _, err := s.q.ExecuteNonQuery(ctx, query, []any{username, action, description, time.Now()}, 0); err != nil {
		s.logger.LogMessage("WARNING", fmt.Sprintf("Audit logging failed: %v", err))
	}
}

func (s *Service) count(ctx context.Context, query string, args ...any) (int64, error) {
	v, err := s.q.ExecuteScalar(ctx, query, args, 0)
	if err != nil {
		return 0, err
	}
	return toInt64(v)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	default:
		return strconv.ParseInt(fmt.Sprint(x), 10, 64)
	}
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/editgate"
)

// ErrAdminRequired - команда требует входа администратора (--user/--password)
var ErrAdminRequired = errors.New("administrator login required (use --user and --password)")

// RequireAdmin проверяет роль вошедшего пользователя
func RequireAdmin(id auth.Identity) error {
	if !id.IsAdmin() {
		return fmt.Errorf("%w: %s: %s", ErrAdminRequired, id, editgate.MsgAccessDenied)
	}
	return nil
}

// ListUsers печатает пользователей и роли
func ListUsers(ctx context.Context, svc *auth.Service, w io.Writer) error {
	users, err := svc.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	rows := make([][]string, len(users))
	for i, u := range users {
		rows[i] = []string{u.Username, u.Role}
	}
	return printTable(w, []string{"Username", "Role"}, rows, 0)
}

// CreateUser создает пользователя (только администратор)
func CreateUser(ctx context.Context, svc *auth.Service, admin auth.Identity, username, password, role string, w io.Writer) error {
	if err := RequireAdmin(admin); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required for new user %q", username)
	}
	if err := svc.CreateUser(ctx, username, password, role); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ User %s created with role %s\n", username, role)
	return nil
}

// DeleteUser удаляет пользователя (только администратор, не себя)
func DeleteUser(ctx context.Context, svc *auth.Service, admin auth.Identity, username string, w io.Writer) error {
	if err := RequireAdmin(admin); err != nil {
		return err
	}
	if err := svc.DeleteUser(ctx, admin, username); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ User %s deleted\n", username)
	return nil
}

// SetRole меняет роль пользователя (только администратор)
func SetRole(ctx context.Context, svc *auth.Service, admin auth.Identity, username, role string, w io.Writer) error {
	if err := RequireAdmin(admin); err != nil {
		return err
	}
	if err := svc.UpdateUserRole(ctx, username, role); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ User %s now has role %s\n", username, role)
	return nil
}

// ChangePassword меняет пароль после проверки текущего
func ChangePassword(ctx context.Context, svc *auth.Service, username, current, next string, w io.Writer) error {
	if next == "" {
		return fmt.Errorf("new password is required")
	}
	if err := svc.ChangePassword(ctx, username, current, next); err != nil {
		return err
	}
	fmt.Fprintf(w, "✓ Password changed for %s\n", username)
	return nil
}

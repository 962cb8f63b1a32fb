// Package auth - пользователи приложения: вход по таблице Users, роли,
// администрирование пользователей и журнал входов UserAuditLog.
//
// Пароли сравниваются как есть (без хэширования), как в существующей таблице Users.
package auth

import "strings"

// DefaultAdminRoles - роли с правами администратора по умолчанию
var DefaultAdminRoles = []string{"Admin", "Administrator"}

// Роли по умолчанию
const (
	RoleViewer = "Viewer"
	RoleUser   = "User"
	RoleAdmin  = "Admin"
)

// GuestName - имя гостевой учетной записи
const GuestName = "guest"

// Identity - пользователь текущей сессии.
// Передается явно во все компоненты, которым нужна личность пользователя.
type Identity struct {
	Username   string
	Role       string
	adminRoles []string
}

// NewIdentity создает личность; adminRoles пуст - используются DefaultAdminRoles
func NewIdentity(username, role string, adminRoles ...string) Identity {
	if len(adminRoles) == 0 {
		adminRoles = DefaultAdminRoles
	}
	return Identity{Username: username, Role: role, adminRoles: adminRoles}
}

// Guest - гость только для просмотра
func Guest() Identity {
	return NewIdentity(GuestName, RoleViewer)
}

// IsAdmin - роль входит в список ролей администратора (без учета регистра)
func (i Identity) IsAdmin() bool {
	roles := i.adminRoles
	if roles == nil {
		roles = DefaultAdminRoles
	}
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(i.Role), r) {
			return true
		}
	}
	return false
}

// IsGuest - гостевая учетная запись
func (i Identity) IsGuest() bool {
	return i.Username == GuestName && i.Role == RoleViewer
}

func (i Identity) String() string {
	return i.Username + " (" + i.Role + ")"
}

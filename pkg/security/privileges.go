package security

import (
	"fmt"
	"os"
	"runtime"
)

// IsOSAdmin - процесс запущен от root/Administrator.
// Unix: effective UID == 0. Windows: удалось открыть \\.\PHYSICALDRIVE0.
func IsOSAdmin() bool {
	if runtime.GOOS == "windows" {
		return isWindowsAdmin()
	}
	return os.Geteuid() == 0
}

func isWindowsAdmin() bool {
	file, err := os.Open("\\\\.\\PHYSICALDRIVE0")
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// CurrentOSUser - имя пользователя ОС (подсказка для окна входа)
func CurrentOSUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	if user := os.Getenv("USERNAME"); user != "" {
		return user
	}
	return "unknown"
}

// QueryValidator выбирает режим проверки для -query.
// Небезопасный режим доступен администратору приложения или ОС.
func QueryValidator(unsafe, appAdmin bool) (*SQLValidator, error) {
	if !unsafe {
		return NewSQLValidator(true), nil
	}
	if !appAdmin && !IsOSAdmin() {
		return nil, fmt.Errorf("%w (current OS user: %s)", ErrUnsafeDenied, CurrentOSUser())
	}
	return NewSQLValidator(false), nil
}

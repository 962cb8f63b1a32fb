package security

import (
	"errors"
	"os"
	"runtime"
	"testing"
)

func TestIsOSAdminUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping Unix test on Windows")
	}

	if want := os.Geteuid() == 0; IsOSAdmin() != want {
		t.Errorf("IsOSAdmin() = %v, expected %v", IsOSAdmin(), want)
	}
}

func TestCurrentOSUser(t *testing.T) {
	t.Setenv("USER", "storekeeper")
	if got := CurrentOSUser(); got != "storekeeper" {
		t.Errorf("CurrentOSUser() = %q", got)
	}

	t.Setenv("USER", "")
	t.Setenv("USERNAME", "")
	if got := CurrentOSUser(); got != "unknown" {
		t.Errorf("CurrentOSUser() without env = %q", got)
	}
}

func TestQueryValidator(t *testing.T) {
	v, err := QueryValidator(false, false)
	if err != nil || !v.IsSafeMode() {
		t.Fatalf("Default must be safe mode: %v", err)
	}

	v, err = QueryValidator(true, true)
	if err != nil || v.IsSafeMode() {
		t.Fatalf("Application admin must get unsafe mode: %v", err)
	}

	v, err = QueryValidator(true, false)
	if IsOSAdmin() {
		if err != nil || v.IsSafeMode() {
			t.Errorf("OS admin must get unsafe mode: %v", err)
		}
		return
	}
	if !errors.Is(err, ErrUnsafeDenied) {
		t.Errorf("Expected ErrUnsafeDenied, got %v", err)
	}
}

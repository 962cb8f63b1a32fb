package security

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Plain table", "SuppliesInventory", false},
		{"Schema qualified", "dbo.AssetsInventory", false},
		{"Column with space", "Item Name", false},
		{"Temp table", "#tmp_Items", false},
		{"Cyrillic", "Склад", false},
		{"Empty", "", true},
		{"Only spaces", "   ", true},
		{"Leading space", " Users", true},
		{"Quote", `Users"`, true},
		{"Bracket", "Users]", true},
		{"Semicolon", "Users;DROP TABLE x", true},
		{"Comment", "Users--", true},
		{"Empty schema part", "dbo..Users", true},
		{"Trailing dot", "dbo.", true},
		{"Too long", strings.Repeat("a", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIdentifier) {
				t.Errorf("error must wrap ErrInvalidIdentifier: %v", err)
			}
		})
	}
}

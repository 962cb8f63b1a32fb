package session

import (
	"fmt"
	"strings"
)

// Kind - логическая таблица окна
type Kind string

const (
	Supplies Kind = "Supplies"
	Assets   Kind = "Assets"
	Accounts Kind = "Accounts"
)

// Kinds - все таблицы в порядке переключения (клавиши 1/2/3)
var Kinds = []Kind{Supplies, Assets, Accounts}

// ParseKind разбирает имя таблицы без учета регистра
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(strings.TrimSpace(s), string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown table kind %q (expected supplies, assets or accounts)", s)
}

// Tables - имена таблиц БД для каждого Kind
type Tables struct {
	Supplies string `yaml:"supplies"`
	Assets   string `yaml:"assets"`
	Accounts string `yaml:"accounts"`
}

// DefaultTables - имена таблиц по умолчанию
func DefaultTables() Tables {
	return Tables{
		Supplies: "SuppliesInventory",
		Assets:   "AssetsInventory",
		Accounts: "Users",
	}
}

// Name возвращает имя таблицы; пустое значение заменяется значением по умолчанию
func (t Tables) Name(kind Kind) (string, error) {
	def := DefaultTables()
	switch kind {
	case Supplies:
		return firstNonEmpty(t.Supplies, def.Supplies), nil
	case Assets:
		return firstNonEmpty(t.Assets, def.Assets), nil
	case Accounts:
		return firstNonEmpty(t.Accounts, def.Accounts), nil
	}
	return "", fmt.Errorf("unknown table kind %q", kind)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

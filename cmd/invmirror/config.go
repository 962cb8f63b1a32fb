package main

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/invmirror/pkg/export"
	"github.com/ruslano69/invmirror/pkg/notify"
	"github.com/ruslano69/invmirror/pkg/retry"
	"github.com/ruslano69/invmirror/pkg/session"
)

// DefaultApplicationName - заголовок окна и журнала
const DefaultApplicationName = "Inventory Management System"

// Config represents the main configuration structure
type Config struct {
	Application ApplicationConfig `yaml:"application"`
	Database    DatabaseConfig    `yaml:"database"`
	Tables      TablesConfig      `yaml:"tables"`
	Logging     LoggingConfig     `yaml:"logging"`
	Export      ExportConfig      `yaml:"export,omitempty"`
	Notify      notify.Config     `yaml:"notify,omitempty"`
	Metrics     MetricsConfig     `yaml:"metrics,omitempty"`
}

// ApplicationConfig - имя приложения и роли администратора
type ApplicationConfig struct {
	Name       string   `yaml:"name"`
	AdminRoles []string `yaml:"admin_roles,omitempty"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Type        string `yaml:"type"`                   // sqlite, postgres, mssql, mysql, odbc
	DSN         string `yaml:"dsn,omitempty"`          // Готовая строка подключения (перекрывает поля ниже)
	Host        string `yaml:"host,omitempty"`         // For network databases
	Port        int    `yaml:"port,omitempty"`         // Database port
	Database    string `yaml:"database"`               // Database name or file path
	User        string `yaml:"user,omitempty"`         // Username
	Password    string `yaml:"password,omitempty"`     // Password
	Schema      string `yaml:"schema,omitempty"`       // PostgreSQL schema (default: public)
	WindowsAuth bool   `yaml:"windows_auth,omitempty"` // MS SQL Windows authentication
	SSLMode     string `yaml:"sslmode,omitempty"`      // PostgreSQL SSL mode
	Timeout     int    `yaml:"timeout,omitempty"`      // Command timeout in seconds (default: 30)

	// ConnectRetry - повтор подключения при старте (по умолчанию одна попытка)
	ConnectRetry retry.Policy `yaml:"connect_retry,omitempty"`
}

// TablesConfig - имена таблиц в БД
type TablesConfig struct {
	Supplies  string `yaml:"supplies"`
	Assets    string `yaml:"assets"`
	Users     string `yaml:"users"`
	UserAudit string `yaml:"user_audit"`
}

// LoggingConfig - журнал категорий и диагностический лог
type LoggingConfig struct {
	Dir           string `yaml:"dir,omitempty"`            // "" = $TMP/InventorySystem_Logs
	Prefix        string `yaml:"prefix,omitempty"`         // InventorySystem_Log
	RetentionDays int    `yaml:"retention_days,omitempty"` // 30
	Level         string `yaml:"level,omitempty"`          // minimal, standard, full
	AuditTable    string `yaml:"audit_table,omitempty"`    // "" = без записи журнала в БД
	Debug         bool   `yaml:"debug,omitempty"`          // zerolog debug level
}

// ExportConfig contains export settings
type ExportConfig struct {
	Dir           string          `yaml:"dir,omitempty"`
	CompressLevel int             `yaml:"compress_level,omitempty"` // zstd level for .zst (default: 3)
	S3            export.S3Config `yaml:"s3,omitempty"`
}

// MetricsConfig - HTTP сервер /healthz, /readyz, /metrics
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"` // "" = выключен
}

// LoadConfig loads configuration from YAML file and applies defaults
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if config.Database.Type == "" {
		return nil, fmt.Errorf("database.type is required")
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Application.Name == "" {
		c.Application.Name = DefaultApplicationName
	}

	def := session.DefaultTables()
	if c.Tables.Supplies == "" {
		c.Tables.Supplies = def.Supplies
	}
	if c.Tables.Assets == "" {
		c.Tables.Assets = def.Assets
	}
	if c.Tables.Users == "" {
		c.Tables.Users = def.Accounts
	}
	if c.Tables.UserAudit == "" {
		c.Tables.UserAudit = "UserAuditLog"
	}

	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = 30
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "standard"
	}

	if c.Export.CompressLevel <= 0 {
		c.Export.CompressLevel = 3
	}
}

// SessionTables - имена таблиц для session.Kind
func (c *Config) SessionTables() session.Tables {
	return session.Tables{
		Supplies: c.Tables.Supplies,
		Assets:   c.Tables.Assets,
		Accounts: c.Tables.Users,
	}
}

// CommandTimeout - таймаут запросов Gateway
func (c *DatabaseConfig) CommandTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// SaveConfig saves configuration to YAML file
func SaveConfig(filename string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateSampleConfig creates sample configuration for different database types
func CreateSampleConfig(dbType string) *Config {
	config := &Config{
		Application: ApplicationConfig{
			Name:       DefaultApplicationName,
			AdminRoles: []string{"Admin", "Administrator"},
		},
		Database: DatabaseConfig{
			Type:    dbType,
			Timeout: 30,
			ConnectRetry: retry.Policy{
				MaxAttempts:  5,
				InitialDelay: 2 * time.Second,
				MaxDelay:     30 * time.Second,
				Backoff:      retry.BackoffExponential,
				Jitter:       0.1,
			},
		},
		Tables: TablesConfig{
			Supplies:  "SuppliesInventory",
			Assets:    "AssetsInventory",
			Users:     "Users",
			UserAudit: "UserAuditLog",
		},
		Logging: LoggingConfig{
			Prefix:        "InventorySystem_Log",
			RetentionDays: 30,
			Level:         "standard",
		},
		Export: ExportConfig{
			Dir:           "exports",
			CompressLevel: 3,
		},
		Notify: notify.Config{
			Redis: notify.RedisConfig{
				Address: "localhost:6379",
				Prefix:  "invmirror",
				TTL:     3600,
			},
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9464"},
	}

	switch dbType {
	case "postgres", "postgresql":
		config.Database.Host = "localhost"
		config.Database.Port = 5432
		config.Database.Database = "inventory"
		config.Database.User = "postgres"
		config.Database.Password = "password"
		config.Database.Schema = "public"
		config.Database.SSLMode = "disable"

	case "mssql", "sqlserver":
		config.Database.Host = "localhost"
		config.Database.Port = 1433
		config.Database.Database = "InventoryDB"
		config.Database.User = "sa"
		config.Database.Password = "YourPassword123"
		config.Database.WindowsAuth = false

	case "sqlite":
		config.Database.Database = "inventory.db"

	case "mysql":
		config.Database.Host = "localhost"
		config.Database.Port = 3306
		config.Database.Database = "inventory"
		config.Database.User = "root"
		config.Database.Password = "password"

	case "odbc":
		config.Database.DSN = "DSN=InventoryDB"

	default:
		return nil
	}

	return config
}

// BuildDSN constructs database connection string from config
func (c *DatabaseConfig) BuildDSN() string {
	if c.DSN != "" {
		return c.DSN
	}

	switch c.Type {
	case "postgres", "postgresql":
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		schema := c.Schema
		if schema == "" {
			schema = "public"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&search_path=%s",
			url.PathEscape(c.User), url.PathEscape(c.Password), c.Host, c.Port, c.Database, sslMode, schema)

	case "mssql", "sqlserver":
		if c.WindowsAuth {
			return fmt.Sprintf("sqlserver://%s:%d?database=%s&integrated security=SSPI",
				c.Host, c.Port, c.Database)
		}
		return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
			url.PathEscape(c.User), url.PathEscape(c.Password), c.Host, c.Port, c.Database)

	case "sqlite":
		return c.Database

	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.User, c.Password, c.Host, c.Port, c.Database)

	default:
		return ""
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ruslano69/invmirror/pkg/adapters"
	_ "github.com/ruslano69/invmirror/pkg/adapters/mssql"
	_ "github.com/ruslano69/invmirror/pkg/adapters/mysql"
	_ "github.com/ruslano69/invmirror/pkg/adapters/postgres"
	_ "github.com/ruslano69/invmirror/pkg/adapters/sqlite"
	"github.com/ruslano69/invmirror/pkg/audit"
	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/export"
	"github.com/ruslano69/invmirror/pkg/gateway"
	"github.com/ruslano69/invmirror/pkg/notify"
	"github.com/ruslano69/invmirror/pkg/resilience"
	"github.com/ruslano69/invmirror/pkg/retry"
	"github.com/ruslano69/invmirror/pkg/session"
)

// App - собранные зависимости одного запуска
type App struct {
	Config    *Config
	Adapter   adapters.Adapter
	Gateway   *gateway.Gateway
	Audit     *audit.AuditLogger
	Auth      *auth.Service
	Publisher notify.Publisher
	SessionID string

	logFile *audit.FileAppender
	log     zerolog.Logger
}

// OpenApp подключается к БД и собирает журнал, сервис входа и публикацию событий.
// Ошибка подключения к БД фатальна для вызывающего.
func OpenApp(ctx context.Context, cfg *Config, logger zerolog.Logger) (*App, error) {
	app := &App{
		Config:    cfg,
		SessionID: fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), os.Getpid()),
		log:       logger.With().Str("component", "app").Logger(),
	}

	// Журнал категорий: файл сессии + zerolog
	fileCfg := audit.DefaultFileConfig()
	if cfg.Logging.Dir != "" {
		fileCfg.Dir = cfg.Logging.Dir
	}
	if cfg.Logging.Prefix != "" {
		fileCfg.Prefix = cfg.Logging.Prefix
	}
	fileCfg.RetentionDays = cfg.Logging.RetentionDays
	fileCfg.Level = audit.ParseLevel(cfg.Logging.Level)

	appenders := []audit.Appender{audit.NewZerologAppender(logger)}
	fa, err := audit.NewFileAppender(fileCfg)
	if err != nil {
		// без файла журнала приложение продолжает работу
		app.log.Warn().Err(err).Msg("session log file unavailable")
	} else {
		app.logFile = fa
		appenders = append(appenders, fa)
	}

	app.Audit = audit.NewLogger(audit.LoggerConfig{
		AsyncMode:     true,
		BufferSize:    1000,
		SessionID:     app.SessionID,
		FlushInterval: 5 * time.Second,
		OnError: func(err error) {
			app.log.Error().Err(err).Msg("audit write failed")
		},
	}, appenders...)
	app.Audit.LogMessage(string(audit.CategoryInit), fmt.Sprintf("%s starting", cfg.Application.Name))

	// Подключение к БД
	if !adapters.IsRegistered(cfg.Database.Type) {
		app.Audit.Close()
		return nil, fmt.Errorf("unknown database type %q (available: %v)", cfg.Database.Type, adapters.GetRegisteredTypes())
	}

	policy := cfg.Database.ConnectRetry
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		app.Audit.LogMessage(string(audit.CategoryWarning),
			fmt.Sprintf("Database connection attempt %d failed: %v - retrying in %v", attempt, err, delay.Round(time.Millisecond)))
	}

	var adapter adapters.Adapter
	err = retry.Do(ctx, policy, func(ctx context.Context) error {
		var connErr error
		adapter, connErr = adapters.New(ctx, adapters.Config{
			Type:    cfg.Database.Type,
			DSN:     cfg.Database.BuildDSN(),
			Schema:  cfg.Database.Schema,
			Timeout: cfg.Database.CommandTimeout(),
		})
		return connErr
	})
	if err != nil {
		app.Audit.LogMessage(string(audit.CategoryError), fmt.Sprintf("Database connection failed: %v", err))
		app.Audit.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Database.Type, err)
	}
	app.Adapter = adapter
	app.Gateway = gateway.New(adapter, gateway.Options{
		Logger:  app.Audit,
		Timeout: cfg.Database.CommandTimeout(),
	})
	app.Audit.LogMessage(string(audit.CategoryDatabase),
		fmt.Sprintf("Connected to %s database", adapter.GetDatabaseType()))

	// Журнал в таблицу БД (опционально)
	if cfg.Logging.AuditTable != "" {
		da, err := audit.NewDatabaseAppender(audit.DatabaseAppenderConfig{
			DB:              adapter.DB(),
			Dialect:         adapter.Dialect(),
			TableName:       cfg.Logging.AuditTable,
			Level:           fileCfg.Level,
			AutoCreateTable: true,
		})
		if err != nil {
			app.log.Warn().Err(err).Str("table", cfg.Logging.AuditTable).Msg("database audit log disabled")
		} else {
			app.Audit.AddAppender(da)
			// тот же срок хранения, что и у файлов журнала
			days := fileCfg.RetentionDays
			if days <= 0 {
				days = audit.DefaultRetentionDays
			}
			if n, err := da.DeleteOlderThan(ctx, time.Now().AddDate(0, 0, -days)); err != nil {
				app.log.Warn().Err(err).Msg("audit retention cleanup failed")
			} else if n > 0 {
				app.Audit.LogMessage(string(audit.CategorySystem),
					fmt.Sprintf("Deleted %d audit record(s) older than %d days", n, days))
			}
		}
	}

	app.Auth, err = auth.NewService(app.Gateway, auth.Config{
		UsersTable: cfg.Tables.Users,
		AuditTable: cfg.Tables.UserAudit,
		AdminRoles: cfg.Application.AdminRoles,
		Logger:     app.Audit,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	// Публикация событий: ошибка подключения не мешает работе с таблицами
	notifyCfg := cfg.Notify
	notifyCfg.Breaker.OnStateChange = func(name string, from, to resilience.State) {
		app.Audit.LogMessage(string(audit.CategoryWarning),
			fmt.Sprintf("Notifications to %s: %s -> %s", name, from, to))
	}
	app.Publisher, err = notify.New(ctx, notifyCfg)
	if err != nil {
		app.Audit.LogMessage(string(audit.CategoryWarning), fmt.Sprintf("Notifications disabled: %v", err))
		app.Publisher = notify.Nop{}
	}

	return app, nil
}

// SessionConfig - настройки сессии для пользователя
func (a *App) SessionConfig(id auth.Identity) session.Config {
	return session.Config{
		Identity:    id,
		Tables:      a.Config.SessionTables(),
		Audit:       a.Audit,
		Publisher:   a.Publisher,
		SessionID:   a.SessionID,
		SaveTimeout: a.Config.Database.CommandTimeout(),
	}
}

// NewSession открывает сессию окна для пользователя
func (a *App) NewSession(id auth.Identity) *session.Session {
	a.Audit.SetUser(id.Username)
	return session.New(a.Gateway, a.SessionConfig(id))
}

// Uploader - загрузка выгрузок в S3 (nil, если bucket не настроен)
func (a *App) Uploader(ctx context.Context) (*export.S3Uploader, error) {
	if a.Config.Export.S3.Bucket == "" {
		return nil, nil
	}
	return export.NewS3Uploader(ctx, a.Config.Export.S3)
}

// Login - вход по --user/--password для команд администратора
func (a *App) Login(ctx context.Context, username, password string) (auth.Identity, error) {
	return a.Auth.Login(ctx, username, password)
}

// LogFile - путь файла журнала сессии ("" если файл не открыт)
func (a *App) LogFile() string {
	if a.logFile == nil {
		return ""
	}
	return a.logFile.FilePath()
}

// Close закрывает публикацию, журнал и подключение к БД
func (a *App) Close() {
	ctx := context.Background()

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("notify close failed")
		}
	}

	a.Audit.LogMessage(string(audit.CategorySystem), "Application shutting down")
	if err := a.Audit.Close(); err != nil {
		a.log.Warn().Err(err).Msg("audit close failed")
	}

	if a.Adapter != nil {
		if err := a.Adapter.Close(ctx); err != nil {
			a.log.Warn().Err(err).Msg("database close failed")
		}
	}
}

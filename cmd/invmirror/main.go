package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/invmirror/cmd/invmirror/commands"
	"github.com/ruslano69/invmirror/cmd/invmirror/shell"
	"github.com/ruslano69/invmirror/pkg/audit"
	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/security"
	"github.com/ruslano69/invmirror/pkg/session"
)

func main() {
	flags := ParseFlags()

	if *flags.Version {
		PrintVersion()
		os.Exit(0)
	}
	if *flags.Help {
		PrintHelp()
		os.Exit(0)
	}

	if *flags.CreateConfig != "" {
		createConfigTemplate(*flags.CreateConfig, *flags.Config)
		return
	}

	if !commandWasSpecified(flags) {
		PrintHelp()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := LoadConfig(*flags.Config)
	if err != nil {
		fatal("Failed to load config: %v", err)
	}

	// В режиме TUI диагностический лог пишется в файл, чтобы не портить экран
	var logOut io.Writer = os.Stderr
	if *flags.TUI {
		f, err := openDebugLog(config)
		if err != nil {
			fatal("Failed to open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: logOut, TimeFormat: time.RFC3339, NoColor: *flags.TUI})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *flags.Debug || config.Logging.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	app, err := OpenApp(ctx, config, log.Logger)
	if err != nil {
		fatal("%v", err)
	}
	defer app.Close()

	// Команды администратора требуют входа
	current := auth.Guest()
	if needsAdmin(flags) || *flags.Username != "" {
		current, err = app.Login(ctx, *flags.Username, *flags.Password)
		if err != nil {
			app.Close()
			fatal("Login failed: %v", err)
		}
	}

	cmdErr := route(ctx, app, flags, current)
	if cmdErr != nil {
		app.Close()
		fatal("Command failed: %v", cmdErr)
	}
}

// route выполняет выбранную команду
func route(ctx context.Context, app *App, flags *Flags, current auth.Identity) error {
	out := os.Stdout
	cfg := app.SessionConfig(current)

	switch {
	case *flags.Tables:
		return commands.ListTables(ctx, app.Gateway, cfg.Tables, out)

	case *flags.Show != "":
		return commands.ShowTable(ctx, app.Gateway, cfg, *flags.Show, *flags.Limit, out)

	case *flags.Export != "":
		kind, err := session.ParseKind(*flags.Export)
		if err != nil {
			return err
		}
		opts, err := exportOptions(ctx, app, flags)
		if err != nil {
			return err
		}
		opts.Kind = kind
		opts.OutputFile = *flags.Output
		_, err = commands.ExportTable(ctx, app.Gateway, cfg, opts, out)
		return err

	case *flags.Query != "":
		validator, err := security.QueryValidator(*flags.Unsafe, current.IsAdmin())
		if err != nil {
			return err
		}
		return commands.RunQuery(ctx, app.Gateway, validator, *flags.Query, *flags.Limit, out)

	case *flags.Users:
		return commands.ListUsers(ctx, app.Auth, out)

	case *flags.CreateUser != "":
		return commands.CreateUser(ctx, app.Auth, current, *flags.CreateUser, *flags.NewPassword, *flags.Role, out)

	case *flags.DeleteUser != "":
		return commands.DeleteUser(ctx, app.Auth, current, *flags.DeleteUser, out)

	case *flags.SetRole != "":
		return commands.SetRole(ctx, app.Auth, current, *flags.SetRole, *flags.Role, out)

	case *flags.Passwd != "":
		return commands.ChangePassword(ctx, app.Auth, *flags.Passwd, *flags.Password, *flags.NewPassword, out)

	case *flags.TUI:
		return runShell(ctx, app, flags)
	}

	return nil
}

// exportOptions - общие настройки выгрузки из конфигурации и флагов
func exportOptions(ctx context.Context, app *App, flags *Flags) (commands.ExportOptions, error) {
	opts := commands.ExportOptions{
		Dir:      app.Config.Export.Dir,
		Sheet:    *flags.Sheet,
		Compress: app.Config.Export.CompressLevel,
	}

	if *flags.Upload || (*flags.TUI && app.Config.Export.S3.Bucket != "") {
		up, err := app.Uploader(ctx)
		if err != nil {
			return opts, fmt.Errorf("S3 upload unavailable: %w", err)
		}
		if up == nil {
			if *flags.Upload {
				return opts, fmt.Errorf("--upload requires export.s3.bucket in config")
			}
		} else {
			opts.Uploader = up
		}
	}
	return opts, nil
}

// runShell запускает интерактивный редактор и, если задан адрес, HTTP сервер метрик
func runShell(ctx context.Context, app *App, flags *Flags) error {
	addr := app.Config.Metrics.Addr
	if *flags.MetricsAddr != "" {
		addr = *flags.MetricsAddr
	}
	if addr != "" {
		stopOps := StartOps(addr, NewOpsRouter(app.Gateway, prometheus.DefaultGatherer, log.Logger), log.Logger)
		defer stopOps()
	}

	opts, err := exportOptions(ctx, app, flags)
	if err != nil {
		log.Warn().Err(err).Msg("export upload disabled")
	}

	ui := shell.New(shell.Options{
		Title:      app.Config.Application.Name,
		Auth:       app.Auth,
		Guest:      *flags.Guest,
		NewSession: app.NewSession,
		Export:     opts,
		Audit:      app.Audit,
		Logger:     log.Logger,
	})

	err = ui.Run(ctx)
	if path := app.LogFile(); path != "" {
		fmt.Printf("Session log: %s\n", path)
	}
	return err
}

// openDebugLog - файл диагностического лога рядом с журналом сессии
func openDebugLog(config *Config) (*os.File, error) {
	dir := config.Logging.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), audit.DefaultLogFolder)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "invmirror_debug.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// createConfigTemplate creates a sample configuration file
func createConfigTemplate(dbType, path string) {
	config := CreateSampleConfig(dbType)
	if config == nil {
		fatal("Unknown database type %q (use sqlite, postgres, mssql, mysql or odbc)", dbType)
	}

	if err := SaveConfig(path, config); err != nil {
		fatal("Failed to save config: %v", err)
	}

	fmt.Printf("✓ Created sample %s config: %s\n", dbType, path)
	fmt.Println("Edit the file with your database credentials and run:")
	fmt.Printf("  invmirror --tables --config %s\n", path)
}

// fatal prints error and exits
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

package main

import "flag"

// Flags holds all command-line flags
type Flags struct {
	// Commands
	Tables *bool
	Show   *string
	Export *string
	Query  *string
	TUI    *bool

	// User administration
	Users      *bool
	CreateUser *string
	DeleteUser *string
	SetRole    *string
	Passwd     *string

	// Options
	Config      *string
	Output      *string
	Upload      *bool
	Sheet       *string
	Limit       *int
	Role        *string
	Username    *string
	Password    *string
	NewPassword *string
	Guest       *bool
	Unsafe      *bool
	MetricsAddr *string
	Debug       *bool

	// Config Creation
	CreateConfig *string

	// Misc
	Version *bool
	Help    *bool
}

// ParseFlags defines and parses all command-line flags
func ParseFlags() *Flags {
	return parseFlags(flag.CommandLine, nil)
}

func parseFlags(fs *flag.FlagSet, args []string) *Flags {
	f := &Flags{}

	// Commands
	f.Tables = fs.Bool("tables", false, "List all tables in database")
	f.Show = fs.String("show", "", "Print table contents (supplies, assets, accounts or table name)")
	f.Export = fs.String("export", "", "Export table to file: supplies, assets, accounts (use with --output)")
	f.Query = fs.String("query", "", "Run read-only SQL query and print the result")
	f.TUI = fs.Bool("tui", false, "Start interactive inventory editor")

	// User administration
	f.Users = fs.Bool("users", false, "List application users")
	f.CreateUser = fs.String("create-user", "", "Create user (use with --new-password and --role)")
	f.DeleteUser = fs.String("delete-user", "", "Delete user")
	f.SetRole = fs.String("set-role", "", "Change user role (use with --role)")
	f.Passwd = fs.String("passwd", "", "Change user password (use with --password and --new-password)")

	// Options
	f.Config = fs.String("config", "config.yaml", "Configuration file path")
	f.Output = fs.String("output", "", "Output file: .csv, .xlsx, .html, optional .zst suffix")
	f.Upload = fs.Bool("upload", false, "Upload exported file to S3 (export.s3 in config)")
	f.Sheet = fs.String("sheet", "", "Excel sheet name for XLSX export (default: table kind)")
	f.Limit = fs.Int("limit", 0, "Maximum rows to print (0 = all)")
	f.Role = fs.String("role", "User", "Role for --create-user / --set-role")
	f.Username = fs.String("user", "", "Login for commands that require an administrator")
	f.Password = fs.String("password", "", "Password for --user; current password for --passwd")
	f.NewPassword = fs.String("new-password", "", "Password for --create-user; new password for --passwd")
	f.Guest = fs.Bool("guest", false, "Start interactive editor as read-only guest")
	f.Unsafe = fs.Bool("unsafe", false, "Allow any SQL in --query (requires administrator)")
	f.MetricsAddr = fs.String("metrics-addr", "", "Serve /healthz, /readyz and /metrics on address (overrides config)")
	f.Debug = fs.Bool("debug", false, "Enable debug logging")

	// Config Creation
	f.CreateConfig = fs.String("create-config", "", "Create sample config.yaml: sqlite, postgres, mssql, mysql, odbc")

	// Misc
	f.Version = fs.Bool("version", false, "Show version information")
	f.Help = fs.Bool("help", false, "Show detailed help with examples")

	if fs == flag.CommandLine {
		flag.Parse()
	} else {
		fs.Parse(args)
	}

	return f
}

// commandWasSpecified checks if any command was specified
func commandWasSpecified(f *Flags) bool {
	return *f.Tables ||
		*f.Show != "" ||
		*f.Export != "" ||
		*f.Query != "" ||
		*f.TUI ||
		*f.Users ||
		*f.CreateUser != "" ||
		*f.DeleteUser != "" ||
		*f.SetRole != "" ||
		*f.Passwd != ""
}

// needsAdmin - команды, которые меняют данные пользователей
func needsAdmin(f *Flags) bool {
	return *f.CreateUser != "" || *f.DeleteUser != "" || *f.SetRole != "" || *f.Unsafe
}

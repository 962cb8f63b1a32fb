package main

import "fmt"

const version = "1.0.0"

// PrintVersion prints version information
func PrintVersion() {
	fmt.Printf("invmirror version %s\n", version)
	fmt.Println(DefaultApplicationName)
}

// PrintHelp prints comprehensive help information
func PrintHelp() {
	fmt.Println("invmirror - inventory table editor (Supplies / Assets / Accounts)")
	fmt.Printf("Version: %s\n\n", version)

	fmt.Println("USAGE:")
	fmt.Println("  invmirror [command] [options]")
	fmt.Println()

	fmt.Println("COMMANDS:")
	fmt.Println()

	fmt.Println("  Interactive:")
	fmt.Println("    --tui                      Start editor (login form, or --guest for read-only)")
	fmt.Println()

	fmt.Println("  Data:")
	fmt.Println("    --tables                   List all tables in database")
	fmt.Println("    --show <kind|table>        Print table contents")
	fmt.Println("    --export <kind>            Export table (supplies, assets, accounts) to --output")
	fmt.Println("    --query <sql>              Run SELECT/WITH query (--unsafe allows any SQL for admins)")
	fmt.Println()

	fmt.Println("  Users (administrator login required for changes):")
	fmt.Println("    --users                    List users and roles")
	fmt.Println("    --create-user <name>       Create user with --new-password and --role")
	fmt.Println("    --delete-user <name>       Delete user")
	fmt.Println("    --set-role <name>          Change role to --role")
	fmt.Println("    --passwd <name>            Change password (--password old, --new-password new)")
	fmt.Println()

	fmt.Println("OPTIONS:")
	fmt.Println()
	fmt.Println("    --config <file>            Configuration file (default: config.yaml)")
	fmt.Println("    --output <file>            Export file: .csv, .xlsx, .html; add .zst to compress")
	fmt.Println("    --upload                   Upload export to S3 bucket from export.s3")
	fmt.Println("    --sheet <name>             XLSX sheet name")
	fmt.Println("    --limit <n>                Maximum rows to print")
	fmt.Println("    --user <name>              Login for administrator commands")
	fmt.Println("    --password <pw>            Password for --user; current password for --passwd")
	fmt.Println("    --new-password <pw>        Password for --create-user; new password for --passwd")
	fmt.Println("    --role <role>              Role for --create-user / --set-role (default: User)")
	fmt.Println("    --metrics-addr <addr>      Serve /healthz, /readyz, /metrics while running --tui")
	fmt.Println("    --debug                    Debug logging")
	fmt.Println()

	fmt.Println("CONFIG:")
	fmt.Println("    --create-config <db>       Write sample config.yaml (sqlite, postgres, mssql, mysql, odbc)")
	fmt.Println()

	fmt.Println("EXAMPLES:")
	fmt.Println("  invmirror --create-config mssql")
	fmt.Println("  invmirror --tui")
	fmt.Println("  invmirror --show supplies --limit 20")
	fmt.Println("  invmirror --export assets --output exports/assets.xlsx")
	fmt.Println("  invmirror --export supplies --output supplies.csv.zst --upload")
	fmt.Println("  invmirror --query \"SELECT ItemName, Quantity FROM SuppliesInventory WHERE Quantity < 5\"")
	fmt.Println("  invmirror --create-user clerk --new-password secret --role User --user admin --password admin123")
}

package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ruslano69/invmirror/pkg/auth"
	"github.com/ruslano69/invmirror/pkg/gateway"
	"github.com/ruslano69/invmirror/pkg/session"
)

// ListTables lists all tables in the database and marks configured inventory tables
func ListTables(ctx context.Context, gw *gateway.Gateway, tables session.Tables, w io.Writer) error {
	names, err := gw.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	if len(names) == 0 {
		fmt.Fprintln(w, "No tables found")
		return nil
	}

	kinds := make(map[string]session.Kind)
	for _, k := range session.Kinds {
		if name, err := tables.Name(k); err == nil {
			kinds[strings.ToLower(name)] = k
		}
	}

	if version, err := gw.Adapter().GetDatabaseVersion(ctx); err == nil {
		fmt.Fprintf(w, "Database: %s\n", version)
	}
	fmt.Fprintf(w, "Found %d table(s):\n", len(names))
	for i, name := range names {
		if k, ok := kinds[strings.ToLower(name)]; ok {
			fmt.Fprintf(w, "  %d. %s  [%s]\n", i+1, name, k)
			continue
		}
		fmt.Fprintf(w, "  %d. %s\n", i+1, name)
	}

	return nil
}

// ShowTable печатает таблицу. target - вид (supplies, assets, accounts) или имя таблицы.
// Сессия только читает таблицу; accounts доступна лишь администратору.
func ShowTable(ctx context.Context, gw session.Gateway, cfg session.Config, target string, limit int, w io.Writer) error {
	if kind, err := session.ParseKind(target); err == nil {
		return showKind(ctx, gw, cfg, kind, limit, w)
	}

	// произвольная таблица: подменяем таблицу вида Supplies
	cfg.Tables.Supplies = target
	return showKind(ctx, gw, cfg, session.Supplies, limit, w)
}

func showKind(ctx context.Context, gw session.Gateway, cfg session.Config, kind session.Kind, limit int, w io.Writer) error {
	if cfg.Identity.Username == "" {
		cfg.Identity = auth.Guest()
	}
	s := session.New(gw, cfg)
	defer s.Close(ctx, nil)

	if err := s.LoadTable(ctx, kind, nil); err != nil {
		return err
	}

	snap, err := s.Snapshot()
	if err != nil {
		return err
	}

	_, table := s.Current()
	fmt.Fprintf(w, "%s (%s)\n\n", table, kind)
	return printTable(w, snap.Names(), snap.Rows, limit)
}

package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// maxCellWidth - длинные значения обрезаются при печати
const maxCellWidth = 40

// printTable печатает таблицу с выровненными колонками; limit > 0 ограничивает строки
func printTable(w io.Writer, headers []string, rows [][]string, limit int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	sep := make([]string, len(headers))
	for i, h := range headers {
		sep[i] = strings.Repeat("-", len([]rune(h)))
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))

	shown := rows
	if limit > 0 && len(rows) > limit {
		shown = rows[:limit]
	}
	for _, row := range shown {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = truncate(c, maxCellWidth)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if len(shown) < len(rows) {
		fmt.Fprintf(w, "... %d of %d rows shown\n", len(shown), len(rows))
	} else {
		fmt.Fprintf(w, "(%d rows)\n", len(rows))
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

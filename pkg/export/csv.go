package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV пишет заголовок и строки (кавычки по RFC 4180)
func WriteCSV(w io.Writer, snap *Snapshot) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(snap.Names()); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, row := range snap.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ruslano69/invmirror/pkg/audit"
	"github.com/ruslano69/invmirror/pkg/export"
	"github.com/ruslano69/invmirror/pkg/session"
)

// Uploader - загрузка готового файла (export.S3Uploader)
type Uploader interface {
	Upload(ctx context.Context, key, filePath string) (string, error)
}

// ExportOptions holds export parameters
type ExportOptions struct {
	Kind       session.Kind
	OutputFile string // "" = <dir>/<kind>_20060102_150405.csv
	Dir        string
	Sheet      string
	Compress   int
	Uploader   Uploader // nil = без загрузки
}

// DefaultExportFile - имя файла выгрузки по умолчанию
func DefaultExportFile(dir string, kind session.Kind, now time.Time) string {
	name := fmt.Sprintf("%s_%s.csv", strings.ToLower(string(kind)), now.Format("20060102_150405"))
	return filepath.Join(dir, name)
}

// ExportTable загружает таблицу и пишет ее в файл (CSV, XLSX, HTML, .zst).
// Возвращает путь файла.
func ExportTable(ctx context.Context, gw session.Gateway, cfg session.Config, opts ExportOptions, w io.Writer) (string, error) {
	s := session.New(gw, cfg)
	defer s.Close(ctx, nil)

	if err := s.LoadTable(ctx, opts.Kind, nil); err != nil {
		return "", err
	}

	return ExportSnapshot(ctx, s, cfg.Audit, opts, w)
}

// ExportSnapshot пишет текущее представление сессии (с учетом поиска) в файл
func ExportSnapshot(ctx context.Context, s *session.Session, log audit.Logger, opts ExportOptions, w io.Writer) (string, error) {
	if log == nil {
		log = audit.NewNullLogger()
	}

	snap, err := s.Snapshot()
	if err != nil {
		return "", err
	}

	path := opts.OutputFile
	if path == "" {
		path = DefaultExportFile(opts.Dir, opts.Kind, time.Now())
	}

	if err := export.ToFile(path, snap, export.Options{Sheet: opts.Sheet, CompressLevel: opts.Compress}); err != nil {
		log.LogMessage(string(audit.CategoryError), fmt.Sprintf("Export failed: %v", err))
		return "", fmt.Errorf("export failed: %w", err)
	}
	log.LogMessage(string(audit.CategoryExport),
		fmt.Sprintf("Exported %d records to %s", snap.Len(), path))
	fmt.Fprintf(w, "✓ Exported %d records to %s\n", snap.Len(), path)

	if opts.Uploader != nil {
		key, err := opts.Uploader.Upload(ctx, "", path)
		if err != nil {
			log.LogMessage(string(audit.CategoryError), fmt.Sprintf("Upload failed: %v", err))
			return path, fmt.Errorf("upload failed: %w", err)
		}
		log.LogMessage(string(audit.CategoryExport), fmt.Sprintf("Uploaded %s as %s", path, key))
		fmt.Fprintf(w, "✓ Uploaded to %s\n", key)
	}

	return path, nil
}

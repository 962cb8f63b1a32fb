package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Format - формат выгрузки
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
)

// CompressedExt - расширение сжатого файла
const CompressedExt = ".zst"

var ErrUnknownFormat = errors.New("unknown export format")

// Options - параметры записи файла
type Options struct {
	Sheet string // имя листа для XLSX

	// CompressLevel - уровень zstd 1..22 для файлов .zst (0 = 3)
	CompressLevel int
}

// DetectFormat определяет формат по расширению; второй результат - нужно ли сжатие
func DetectFormat(path string) (Format, bool, error) {
	lower := strings.ToLower(path)
	compressed := strings.HasSuffix(lower, CompressedExt)
	lower = strings.TrimSuffix(lower, CompressedExt)

	switch filepath.Ext(lower) {
	case ".csv":
		return FormatCSV, compressed, nil
	case ".xlsx":
		return FormatXLSX, compressed, nil
	case ".html", ".htm":
		return FormatHTML, compressed, nil
	}
	return "", false, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(path))
}

// Write пишет снимок в поток в заданном формате
func Write(w io.Writer, snap *Snapshot, format Format, opts Options) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, snap)
	case FormatXLSX:
		return WriteXLSXTo(w, snap, opts.Sheet)
	case FormatHTML:
		return WriteHTML(w, snap)
	}
	return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// ToFile пишет снимок в файл; формат по расширению (.csv, .xlsx, .html),
// завершающий .zst сжимает поток zstd
func ToFile(path string, snap *Snapshot, opts Options) error {
	format, compressed, err := DetectFormat(path)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	if err := writeFile(file, snap, format, compressed, opts); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}

	return file.Close()
}

func writeFile(file *os.File, snap *Snapshot, format Format, compressed bool, opts Options) error {
	if !compressed {
		return Write(file, snap, format, opts)
	}

	level := opts.CompressLevel
	if level <= 0 {
		level = 3
	}
	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	if err := Write(enc, snap, format, opts); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return nil
}

package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Значения по умолчанию для файлового журнала
const (
	DefaultLogFolder     = "InventorySystem_Logs"
	DefaultFilePrefix    = "InventorySystem_Log"
	DefaultFileExtension = ".txt"
	DefaultRetentionDays = 30
)

// FileAppender - запись в файл сессии с заголовком и ротацией по размеру
type FileAppender struct {
	mu          sync.Mutex
	file        *os.File
	filePath    string
	dir         string
	maxSize     int64 // Максимальный размер файла в байтах
	maxBackups  int   // Количество backup файлов
	currentSize int64
	entries     int
	level       Level
	formatJSON  bool
	config      FileAppenderConfig
}

// FileAppenderConfig - конфигурация file appender
type FileAppenderConfig struct {
	// Dir - папка журналов ("" = $TMP/InventorySystem_Logs)
	Dir string

	// Prefix - префикс имени файла сессии
	Prefix string

	// Extension - расширение файла
	Extension string

	// FilePath - явный путь к файлу (отключает имя по времени сессии)
	FilePath string

	MaxSize    int64 // В мегабайтах
	MaxBackups int
	Level      Level
	FormatJSON bool

	// AutoCleanup - удалять старые файлы журнала при открытии
	AutoCleanup bool

	// RetentionDays - сколько дней хранить файлы журнала
	RetentionDays int
}

// DefaultFileConfig - конфигурация по умолчанию
func DefaultFileConfig() FileAppenderConfig {
	return FileAppenderConfig{
		Dir:           filepath.Join(os.TempDir(), DefaultLogFolder),
		Prefix:        DefaultFilePrefix,
		Extension:     DefaultFileExtension,
		Level:         LevelStandard,
		AutoCleanup:   true,
		RetentionDays: DefaultRetentionDays,
	}
}

// SessionFileName возвращает имя файла сессии: <prefix>_20060102_150405<ext>
func SessionFileName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s%s", prefix, t.Format("20060102_150405"), ext)
}

// NewFileAppender - создать file appender и записать заголовок сессии
func NewFileAppender(config FileAppenderConfig) (*FileAppender, error) {
	defaults := DefaultFileConfig()
	if config.Prefix == "" {
		config.Prefix = defaults.Prefix
	}
	if config.Extension == "" {
		config.Extension = defaults.Extension
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = defaults.RetentionDays
	}

	path := config.FilePath
	if path == "" {
		if config.Dir == "" {
			config.Dir = defaults.Dir
		}
		path = filepath.Join(config.Dir, SessionFileName(config.Prefix, config.Extension, time.Now()))
	}
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	maxSize := config.MaxSize
	if maxSize == 0 {
		maxSize = 100 // По умолчанию 100 MB
	}

	maxBackups := config.MaxBackups
	if maxBackups == 0 {
		maxBackups = 5
	}

	fa := &FileAppender{
		file:        file,
		filePath:    path,
		dir:         dir,
		maxSize:     maxSize * 1024 * 1024,
		maxBackups:  maxBackups,
		currentSize: fileInfo.Size(),
		level:       config.Level,
		formatJSON:  config.FormatJSON,
		config:      config,
	}

	if !config.FormatJSON && fa.currentSize == 0 {
		if err := fa.writeRaw(fa.header()); err != nil {
			file.Close()
			return nil, err
		}
	}

	return fa, nil
}

func (fa *FileAppender) header() string {
	var sb strings.Builder
	sb.WriteString("=== Inventory Management System Log ===\n")
	sb.WriteString(fmt.Sprintf("Log Created: %s\n", time.Now().Format(TimeLayout)))
	sb.WriteString(fmt.Sprintf("Log Folder: %s\n", fa.dir))
	sb.WriteString(fmt.Sprintf("Log File: %s\n", filepath.Base(fa.filePath)))
	sb.WriteString(fmt.Sprintf("Configuration: AutoCleanup=%v, RetentionDays=%d\n",
		fa.config.AutoCleanup, fa.config.RetentionDays))
	sb.WriteString("=========================================\n\n")
	return sb.String()
}

func (fa *FileAppender) footer() string {
	var sb strings.Builder
	sb.WriteString("\n=== Application Session Ended ===\n")
	sb.WriteString(fmt.Sprintf("Session Ended: %s\n", time.Now().Format(TimeLayout)))
	sb.WriteString(fmt.Sprintf("Total Log Entries: %d\n", fa.entries))
	sb.WriteString(fmt.Sprintf("Log Folder: %s\n", fa.dir))
	sb.WriteString(fmt.Sprintf("Log File: %s\n", filepath.Base(fa.filePath)))
	sb.WriteString("=====================================\n")
	return sb.String()
}

// Append - записать entry в файл
func (fa *FileAppender) Append(ctx context.Context, entry *Entry) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	filtered := entry.FilterByLevel(fa.level)

	var data []byte
	if fa.formatJSON {
		raw, err := filtered.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		data = append(raw, '\n')
	} else {
		data = []byte(filtered.String() + "\n")
	}

	if fa.currentSize+int64(len(data)) > fa.maxSize {
		if err := fa.rotate(); err != nil {
			return fmt.Errorf("failed to rotate file: %w", err)
		}
	}

	if err := fa.writeRaw(string(data)); err != nil {
		return err
	}
	fa.entries++
	return nil
}

func (fa *FileAppender) writeRaw(s string) error {
	n, err := io.WriteString(fa.file, s)
	fa.currentSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

// rotate - ротация файлов
func (fa *FileAppender) rotate() error {
	if err := fa.file.Close(); err != nil {
		return err
	}

	for i := fa.maxBackups - 1; i > 0; i-- {
		oldPath := fmt.Sprintf("%s.%d", fa.filePath, i)
		newPath := fmt.Sprintf("%s.%d", fa.filePath, i+1)

		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath)
		}
	}

	if err := os.Rename(fa.filePath, fa.filePath+".1"); err != nil {
		return err
	}

	file, err := os.OpenFile(fa.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	fa.file = file
	fa.currentSize = 0

	return nil
}

// Close - записать итог сессии и закрыть файл
func (fa *FileAppender) Close() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.file == nil {
		return nil
	}

	if !fa.formatJSON {
		fa.writeRaw(fa.footer())
	}
	err := fa.file.Close()
	fa.file = nil
	return err
}

// Flush - сбросить буфер
func (fa *FileAppender) Flush() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.file != nil {
		return fa.file.Sync()
	}

	return nil
}

// Entries - количество записей, записанных в этой сессии
func (fa *FileAppender) Entries() int {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.entries
}

// FilePath - путь к файлу
func (fa *FileAppender) FilePath() string {
	return fa.filePath
}

// Dir - папка журналов
func (fa *FileAppender) Dir() string {
	return fa.dir
}

// Cleanup удаляет файлы журнала старше RetentionDays, кроме текущего
func (fa *FileAppender) Cleanup(now time.Time) (int, error) {
	return CleanupOldLogs(fa.dir, fa.config.Prefix, fa.config.Extension, fa.config.RetentionDays, fa.filePath, now)
}

// CleanupOldLogs удаляет файлы <prefix>_*<ext> в dir, измененные раньше чем
// retentionDays назад. Файл keep не трогается. Возвращает количество удаленных.
func CleanupOldLogs(dir, prefix, ext string, retentionDays int, keep string, now time.Time) (int, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	files, err := filepath.Glob(filepath.Join(dir, prefix+"_*"+ext))
	if err != nil {
		return 0, fmt.Errorf("failed to list log files: %w", err)
	}

	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	deleted := 0
	for _, f := range files {
		if keep != "" && filepath.Clean(f) == filepath.Clean(keep) {
			continue
		}
		info, err := os.Stat(f)
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(f); err != nil {
			return deleted, fmt.Errorf("failed to remove %s: %w", f, err)
		}
		deleted++
	}

	return deleted, nil
}

// ListLogFiles возвращает файлы журнала в dir
func ListLogFiles(dir, prefix, ext string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, prefix+"_*"+ext))
}

// ConsoleAppender - запись в консоль (или любой io.Writer)
type ConsoleAppender struct {
	mu         sync.Mutex
	out        io.Writer
	level      Level
	formatJSON bool
}

// NewConsoleAppender - создать console appender; out == nil означает stdout
func NewConsoleAppender(out io.Writer, level Level, formatJSON bool) *ConsoleAppender {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleAppender{
		out:        out,
		level:      level,
		formatJSON: formatJSON,
	}
}

// Append - записать в консоль
func (ca *ConsoleAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(ca.level)

	var output string
	if ca.formatJSON {
		data, err := filtered.ToJSON()
		if err != nil {
			return err
		}
		output = string(data)
	} else {
		output = filtered.String()
	}

	ca.mu.Lock()
	defer ca.mu.Unlock()
	_, err := fmt.Fprintln(ca.out, output)
	return err
}

// Close - закрыть console appender (noop)
func (ca *ConsoleAppender) Close() error {
	return nil
}

// NullAppender - пустой appender (для тестов)
type NullAppender struct{}

// NewNullAppender - создать null appender
func NewNullAppender() *NullAppender {
	return &NullAppender{}
}

// Append - ничего не делает
func (na *NullAppender) Append(ctx context.Context, entry *Entry) error {
	return nil
}

// Close - ничего не делает
func (na *NullAppender) Close() error {
	return nil
}

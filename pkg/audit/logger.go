package audit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLoggerClosed - запись после Close
var ErrLoggerClosed = errors.New("audit logger is closed")

// Logger - журнал приложения (категория + сообщение)
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
	LogMessage(category, message string)
	Flush() error
	Close() error
}

// LoggerConfig - настройки журнала
type LoggerConfig struct {
	// AsyncMode - запись в appenders из отдельной goroutine
	AsyncMode bool

	// BufferSize - очередь асинхронного режима (0 = 1000); при переполнении запись синхронная
	BufferSize int

	// DefaultUser - пользователь для записей без User (меняется SetUser после входа)
	DefaultUser string

	// SessionID - идентификатор запуска для всех записей
	SessionID string

	// FlushInterval - период сброса буферов appenders (0 = только при Close)
	FlushInterval time.Duration

	// OnError получает ошибки appenders; журнал никогда не прерывает работу вызывающего
	OnError func(error)
}

// AuditLogger - журнал категорий поверх Fanout
type AuditLogger struct {
	cfg LoggerConfig
	out *Fanout

	queue chan *Entry
	stop  chan struct{}
	wg    sync.WaitGroup

	mu        sync.RWMutex
	user      string
	closed    bool
	closeOnce sync.Once
}

// NewLogger создает журнал; в асинхронном режиме запускает запись в фоне
func NewLogger(cfg LoggerConfig, appenders ...Appender) *AuditLogger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}

	l := &AuditLogger{
		cfg:  cfg,
		out:  NewFanout(appenders...),
		stop: make(chan struct{}),
		user: cfg.DefaultUser,
	}

	if cfg.AsyncMode {
		l.queue = make(chan *Entry, cfg.BufferSize)
		l.wg.Add(1)
		go l.run()
	}
	if cfg.FlushInterval > 0 {
		l.wg.Add(1)
		go l.flushLoop()
	}
	return l
}

// SetUser меняет пользователя по умолчанию (после входа в систему)
func (l *AuditLogger) SetUser(user string) {
	l.mu.Lock()
	l.user = user
	l.mu.Unlock()
}

// AddAppender подключает appender во время работы
func (l *AuditLogger) AddAppender(a Appender) {
	l.out.Add(a)
}

// Log дополняет запись (время, ID, пользователь, сессия) и отдает appenders
func (l *AuditLogger) Log(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("audit entry is nil")
	}

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrLoggerClosed
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.ID == "" {
		entry.ID = generateID()
	}
	if entry.User == "" {
		entry.User = l.user
	}
	if entry.SessionID == "" {
		entry.SessionID = l.cfg.SessionID
	}

	// постановка в очередь под блокировкой: после Close очередь не пополняется
	if l.queue != nil {
		select {
		case l.queue <- entry:
			l.mu.RUnlock()
			return nil
		default:
		}
	}
	l.mu.RUnlock()

	return l.write(ctx, entry)
}

// LogMessage - запись "CATEGORY: message"; ошибки уходят в OnError
func (l *AuditLogger) LogMessage(category, message string) {
	if err := l.Log(context.Background(), NewEntry(Category(category), message)); errors.Is(err, ErrLoggerClosed) {
		l.report(err)
	}
}

// LogOperation записывает результат операции; при err категория становится ERROR
func (l *AuditLogger) LogOperation(ctx context.Context, category Category, op Operation, message string, err error) *Entry {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	entry := NewEntry(category, message).WithOperation(op, status).WithError(err)

	// ошибки appenders уже переданы в OnError из write
	if logErr := l.Log(ctx, entry); errors.Is(logErr, ErrLoggerClosed) {
		l.report(logErr)
	}
	return entry
}

func (l *AuditLogger) write(ctx context.Context, entry *Entry) error {
	err := l.out.Append(ctx, entry)
	if err != nil {
		l.report(err)
	}
	return err
}

func (l *AuditLogger) run() {
	defer l.wg.Done()
	for {
		select {
		case entry := <-l.queue:
			l.write(context.Background(), entry)
		case <-l.stop:
			// дописываем очередь
			for {
				select {
				case entry := <-l.queue:
					l.write(context.Background(), entry)
				default:
					return
				}
			}
		}
	}
}

func (l *AuditLogger) flushLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Flush()
		case <-l.stop:
			return
		}
	}
}

// Flush сбрасывает буферы appenders
func (l *AuditLogger) Flush() error {
	err := l.out.Flush()
	if err != nil {
		l.report(err)
	}
	return err
}

// Close дописывает очередь, сбрасывает буферы и закрывает appenders.
// Повторный вызов ничего не делает.
func (l *AuditLogger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()

		close(l.stop)
		l.wg.Wait()

		l.Flush()
		if err = l.out.Close(); err != nil {
			l.report(err)
		}
	})
	return err
}

func (l *AuditLogger) report(err error) {
	if l.cfg.OnError != nil {
		l.cfg.OnError(err)
	}
}

// NullLogger - журнал без записи (гостевые команды, тесты)
type NullLogger struct{}

// NewNullLogger создает NullLogger
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (*NullLogger) Log(context.Context, *Entry) error { return nil }
func (*NullLogger) LogMessage(string, string)         {}
func (*NullLogger) Flush() error                      { return nil }
func (*NullLogger) Close() error                      { return nil }

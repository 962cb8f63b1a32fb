// Package resilience - circuit breaker для внешних получателей событий.
//
// После MaxFailures ошибок подряд breaker открывается и отклоняет вызовы
// до истечения Cooldown; затем пропускает пробные вызовы (Half-Open).
// Успех пробного вызова закрывает breaker, ошибка снова открывает.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen - breaker открыт, вызов не выполнялся
var ErrOpen = errors.New("circuit breaker is open")

// State - состояние breaker
type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half-open"
	case Open:
		return "open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Config - настройки breaker
type Config struct {
	// Name - имя в сообщениях и callback (обычно имя получателя: redis, kafka)
	Name string `yaml:"-"`

	// MaxFailures - ошибок подряд до открытия (0 = 3)
	MaxFailures int `yaml:"max_failures,omitempty"`

	// Cooldown - время в Open до пробного вызова (0 = 30s)
	Cooldown time.Duration `yaml:"cooldown,omitempty"`

	// OnStateChange вызывается синхронно при смене состояния, без удержания блокировки
	OnStateChange func(name string, from, to State) `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.Name == "" {
		c.Name = "breaker"
	}
}

// Breaker - circuit breaker; безопасен для параллельного использования
type Breaker struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	rejected uint64
}

// New создает закрытый breaker
func New(cfg Config) *Breaker {
	cfg.applyDefaults()
	return &Breaker{cfg: cfg, now: time.Now}
}

// Name - имя breaker
func (b *Breaker) Name() string {
	return b.cfg.Name
}

// State - текущее состояние; Open с истекшим Cooldown отображается как HalfOpen
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

// Rejected - сколько вызовов отклонено в состоянии Open
func (b *Breaker) Rejected() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}

// Execute выполняет fn, если breaker пропускает вызов.
// Отмена ctx вызывающим не считается отказом получателя.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	b.after(err == nil)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	from := b.state
	if b.state == Open {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.rejected++
			b.mu.Unlock()
			return fmt.Errorf("%s: %w", b.cfg.Name, ErrOpen)
		}
		b.state = HalfOpen
	}
	to := b.state
	b.mu.Unlock()

	b.changed(from, to)
	return nil
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	from := b.state
	if success {
		b.failures = 0
		b.state = Closed
	} else {
		b.failures++
		if b.state == HalfOpen || b.failures >= b.cfg.MaxFailures {
			b.state = Open
			b.openedAt = b.now()
			b.failures = 0
		}
	}
	to := b.state
	b.mu.Unlock()

	b.changed(from, to)
}

func (b *Breaker) changed(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// Reset закрывает breaker и сбрасывает счетчики
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = Closed
	b.failures = 0
	b.rejected = 0
	b.mu.Unlock()

	b.changed(from, Closed)
}

// Package retry - повтор подключения к БД при старте.
//
// Сервер БД может подниматься одновременно с приложением (контейнеры, службы
// Windows). Ошибки конфигурации не повторяются: их нужно пометить Permanent.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Backoff - рост задержки между попытками
type Backoff string

const (
	BackoffConstant    Backoff = "constant"
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Policy - настройки повтора (секция database.connect_retry)
type Policy struct {
	// MaxAttempts - попыток всего, включая первую (0 или 1 = без повтора)
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// InitialDelay - задержка перед второй попыткой (0 = 1s)
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`

	// MaxDelay - верхняя граница задержки (0 = 30s)
	MaxDelay time.Duration `yaml:"max_delay,omitempty"`

	// Backoff - constant, linear или exponential (по умолчанию)
	Backoff Backoff `yaml:"backoff,omitempty"`

	// Jitter - случайное отклонение задержки, доля 0..1
	Jitter float64 `yaml:"jitter,omitempty"`

	// OnRetry вызывается перед ожиданием очередной попытки
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// Validate проверяет и дополняет настройки
func (p *Policy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("retry delays must be >= 0")
	}
	if p.InitialDelay == 0 {
		p.InitialDelay = time.Second
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.MaxDelay < p.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", p.MaxDelay, p.InitialDelay)
	}

	switch p.Backoff {
	case "":
		p.Backoff = BackoffExponential
	case BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("invalid backoff strategy: %s", p.Backoff)
	}

	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("jitter must be between 0.0 and 1.0, got %f", p.Jitter)
	}
	return nil
}

// Delay - задержка после попытки attempt (1..n), без jitter
func (p Policy) Delay(attempt int) time.Duration {
	var d time.Duration
	switch p.Backoff {
	case BackoffConstant:
		d = p.InitialDelay
	case BackoffLinear:
		d = p.InitialDelay * time.Duration(attempt)
	default:
		d = time.Duration(float64(p.InitialDelay) * math.Pow(2, float64(attempt-1)))
	}
	if d > p.MaxDelay || d < 0 {
		d = p.MaxDelay
	}
	return d
}

func (p Policy) jittered(d time.Duration) time.Duration {
	if p.Jitter == 0 {
		return d
	}
	j := time.Duration(float64(d) * p.Jitter * (rand.Float64()*2 - 1))
	if d+j < 0 {
		return d
	}
	return d + j
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как неповторяемую
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent - ошибка помечена Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// ExhaustedError - все попытки неудачны
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do выполняет fn до успеха, Permanent ошибки, исчерпания попыток или отмены ctx.
// Permanent ошибка возвращается без обертки.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}

	attempts := policy.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
		if attempt >= attempts {
			if attempts == 1 {
				return err
			}
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := policy.jittered(policy.Delay(attempt))
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, errors.Join(ctx.Err(), err))
		}
	}
}

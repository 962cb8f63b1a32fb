// Package notify публикует события сессии (загрузка, сохранение, изменения)
// во внешние системы: Redis, RabbitMQ, Kafka.
//
// Ошибки публикации не должны прерывать работу с таблицей: вызывающий код
// только записывает их в журнал.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ruslano69/invmirror/pkg/resilience"
	"golang.org/x/sync/errgroup"
)

// EventType - тип события
type EventType string

const (
	EventLoaded         EventType = "loaded"
	EventSaved          EventType = "saved"
	EventPendingChanges EventType = "pending_changes"
	EventEditMode       EventType = "edit_mode"
	EventError          EventType = "error"
)

// Event - событие сессии в формате JSON
type Event struct {
	Type         EventType `json:"type"`
	Table        string    `json:"table"`
	User         string    `json:"user,omitempty"`
	Session      string    `json:"session,omitempty"`
	RowsAffected int64     `json:"rows_affected,omitempty"`
	Records      int       `json:"records"`
	Pending      bool      `json:"pending"`
	Message      string    `json:"message,omitempty"`
	Time         time.Time `json:"time"`
}

// Marshal сериализует событие; нулевое время заменяется текущим
func (e Event) Marshal() ([]byte, error) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return data, nil
}

// Publisher - получатель событий
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop - publisher без действий
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error { return nil }

// Multi рассылает событие всем publisher'ам и собирает ошибки
type Multi struct {
	publishers []Publisher
}

// NewMulti создает Multi; nil значения пропускаются
func NewMulti(publishers ...Publisher) *Multi {
	m := &Multi{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Len - количество publisher'ов
func (m *Multi) Len() int {
	return len(m.publishers)
}

// Publish отправляет событие всем publisher'ам параллельно и объединяет ошибки
func (m *Multi) Publish(ctx context.Context, event Event) error {
	errs := make([]error, len(m.publishers))
	var g errgroup.Group
	for i, p := range m.publishers {
		g.Go(func() error {
			errs[i] = p.Publish(ctx, event)
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Guarded - publisher за circuit breaker: после серии ошибок получатель
// временно не вызывается, события для него отбрасываются
type Guarded struct {
	publisher Publisher
	breaker   *resilience.Breaker
}

// Guard оборачивает publisher; cfg.Name задает имя получателя
func Guard(p Publisher, cfg resilience.Config) *Guarded {
	return &Guarded{publisher: p, breaker: resilience.New(cfg)}
}

// Breaker - состояние защиты получателя
func (g *Guarded) Breaker() *resilience.Breaker {
	return g.breaker
}

func (g *Guarded) Publish(ctx context.Context, event Event) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.publisher.Publish(ctx, event)
	})
}

func (g *Guarded) Close() error {
	return g.publisher.Close()
}

// Config - все настроенные получатели; пустая секция отключена
type Config struct {
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Kafka    KafkaConfig    `yaml:"kafka"`

	// Breaker - защита каждого получателя (одни настройки на всех)
	Breaker resilience.Config `yaml:"breaker,omitempty"`
}

// guard - breaker с именем получателя
func (c Config) guard(name string, p Publisher) Publisher {
	bc := c.Breaker
	bc.Name = name
	return Guard(p, bc)
}

// Enabled - настроен ли хотя бы один получатель
func (c Config) Enabled() bool {
	return c.Redis.Address != "" || c.RabbitMQ.Queue != "" || len(c.Kafka.Brokers) > 0
}

// New подключает все настроенные получатели.
// Ошибка любого подключения закрывает уже открытые.
func New(ctx context.Context, cfg Config) (Publisher, error) {
	if !cfg.Enabled() {
		return Nop{}, nil
	}

	multi := NewMulti()

	if cfg.Redis.Address != "" {
		multi.publishers = append(multi.publishers, cfg.guard("redis", NewRedisPublisher(cfg.Redis)))
	}

	if cfg.RabbitMQ.Queue != "" {
		p, err := NewRabbitMQPublisher(cfg.RabbitMQ)
		if err == nil {
			err = p.Connect(ctx)
		}
		if err != nil {
			multi.Close()
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		multi.publishers = append(multi.publishers, cfg.guard("rabbitmq", p))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		p, err := NewKafkaPublisher(cfg.Kafka)
		if err == nil {
			err = p.Connect(ctx)
		}
		if err != nil {
			multi.Close()
			return nil, fmt.Errorf("kafka: %w", err)
		}
		multi.publishers = append(multi.publishers, cfg.guard("kafka", p))
	}

	return multi, nil
}

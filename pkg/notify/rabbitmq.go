package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConfig - параметры RabbitMQ
type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	Queue    string `yaml:"queue"`
	UseTLS   bool   `yaml:"use_tls"`
	Durable  bool   `yaml:"durable"`
}

// RabbitMQPublisher отправляет события в очередь (default exchange)
type RabbitMQPublisher struct {
	config  RabbitMQConfig
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQPublisher проверяет конфигурацию и подставляет значения по умолчанию
func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	if cfg.Queue == "" {
		return nil, fmt.Errorf("queue name is required for RabbitMQ")
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		if cfg.UseTLS {
			cfg.Port = 5671
		} else {
			cfg.Port = 5672
		}
	}
	if cfg.VHost == "" {
		cfg.VHost = "/"
	}
	return &RabbitMQPublisher{config: cfg}, nil
}

// URL - строка подключения amqp:// или amqps://
func (r *RabbitMQPublisher) URL() string {
	scheme := "amqp"
	if r.config.UseTLS {
		scheme = "amqps"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s",
		scheme, r.config.User, r.config.Password, r.config.Host, r.config.Port, r.config.VHost)
}

// Connect открывает соединение, канал и объявляет очередь.
// Параметры очереди должны совпадать с существующей.
func (r *RabbitMQPublisher) Connect(ctx context.Context) error {
	var err error
	if r.config.UseTLS {
		r.conn, err = amqp.DialTLS(r.URL(), &tls.Config{
			ServerName: r.config.Host,
			MinVersion: tls.VersionTLS12,
		})
	} else {
		r.conn, err = amqp.Dial(r.URL())
	}
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	r.channel, err = r.conn.Channel()
	if err != nil {
		r.conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err = r.channel.QueueDeclare(r.config.Queue, r.config.Durable, false, false, false, nil); err != nil {
		r.channel.Close()
		r.conn.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	return nil
}

// Publish отправляет событие как persistent JSON
func (r *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	if r.channel == nil {
		return fmt.Errorf("not connected to RabbitMQ")
	}

	payload, err := event.Marshal()
	if err != nil {
		return err
	}

	err = r.channel.PublishWithContext(ctx, "", r.config.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Type:         string(event.Type),
		Body:         payload,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close закрывает канал и соединение
func (r *RabbitMQPublisher) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return fmt.Errorf("failed to close channel: %w", err)
		}
	}
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

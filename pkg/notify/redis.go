package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig - параметры Redis
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"` // по умолчанию invmirror
	TTL      int    `yaml:"ttl"`    // секунды; 0 - без срока
}

// RedisPublisher публикует события в Redis.
//
// Redis-ключи:
//
//	SET  <prefix>:table:<table>:state  <JSON>  EX <ttl>  последнее состояние таблицы
//	PUB  <prefix>:table:<table>                         поток событий
type RedisPublisher struct {
	client *redis.Client
	config RedisConfig
}

// NewRedisPublisher создает publisher; подключение ленивое
func NewRedisPublisher(config RedisConfig) *RedisPublisher {
	if config.Prefix == "" {
		config.Prefix = "invmirror"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisPublisher{client: client, config: config}
}

// StateKey - ключ последнего состояния таблицы
func (p *RedisPublisher) StateKey(table string) string {
	return fmt.Sprintf("%s:table:%s:state", p.config.Prefix, table)
}

// Channel - канал событий таблицы
func (p *RedisPublisher) Channel(table string) string {
	return fmt.Sprintf("%s:table:%s", p.config.Prefix, table)
}

// Publish пишет состояние и публикует событие
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := event.Marshal()
	if err != nil {
		return err
	}

	ttl := time.Duration(p.config.TTL) * time.Second
	if err := p.client.Set(ctx, p.StateKey(event.Table), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	if err := p.client.Publish(ctx, p.Channel(event.Table), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}

	return nil
}

// Ping проверяет доступность Redis
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

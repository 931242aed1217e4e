// Package cache хранит в Redis проекции заказов в терминальном статусе.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/orderpipe/internal/domain"
)

const (
	defaultTTL = 5 * time.Minute
	keyPrefix  = "orders:status"
)

// cachedOrder — сериализуемое представление заказа.
type cachedOrder struct {
	ID            string   `json:"id"`
	OrderID       string   `json:"order_id"`
	CustomerID    string   `json:"customer_id"`
	CustomerPhone string   `json:"customer_phone"`
	CustomerEmail string   `json:"customer_email,omitempty"`
	Status        string   `json:"status"`
	Items         []string `json:"items"`
	CreatedAt     int64    `json:"ts"`
}

// StatusCache — кэш статусов поверх Redis.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatusCache создаёт кэш для Redis по адресу addr.
func NewStatusCache(addr string, ttl time.Duration) *StatusCache {
	return NewStatusCacheWithClient(redis.NewClient(&redis.Options{Addr: addr}), ttl)
}

// NewStatusCacheWithClient создаёт кэш поверх готового клиента.
func NewStatusCacheWithClient(client *redis.Client, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &StatusCache{client: client, ttl: ttl}
}

// Key возвращает ключ Redis для бизнес-идентификатора заказа.
func Key(orderID string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, orderID)
}

// Get возвращает заказ из кэша. found=false, если записи нет.
func (c *StatusCache) Get(ctx context.Context, orderID string) (domain.Order, bool, error) {
	raw, err := c.client.Get(ctx, Key(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Order{}, false, nil
	}
	if err != nil {
		return domain.Order{}, false, fmt.Errorf("redis get: %w", err)
	}

	order, err := decode(raw)
	if err != nil {
		return domain.Order{}, false, err
	}
	return order, true, nil
}

// Set кладёт заказ в кэш. Заказы в PROCESSING не кэшируются: статус ещё изменится.
func (c *StatusCache) Set(ctx context.Context, order domain.Order) error {
	if !order.Status.IsTerminal() {
		return nil
	}
	raw, err := encode(order)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, Key(order.OrderID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (c *StatusCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close закрывает клиента.
func (c *StatusCache) Close() error {
	return c.client.Close()
}

func encode(order domain.Order) ([]byte, error) {
	raw, err := json.Marshal(cachedOrder{
		ID:            order.ID,
		OrderID:       order.OrderID,
		CustomerID:    order.CustomerID,
		CustomerPhone: order.CustomerPhone,
		CustomerEmail: order.CustomerEmail,
		Status:        string(order.Status),
		Items:         order.Items,
		CreatedAt:     order.CreatedAt.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode cached order: %w", err)
	}
	return raw, nil
}

func decode(raw []byte) (domain.Order, error) {
	var c cachedOrder
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Order{}, fmt.Errorf("decode cached order: %w", err)
	}
	return domain.Order{
		ID:            c.ID,
		OrderID:       c.OrderID,
		CustomerID:    c.CustomerID,
		CustomerPhone: c.CustomerPhone,
		CustomerEmail: c.CustomerEmail,
		Status:        domain.OrderStatus(c.Status),
		Items:         c.Items,
		CreatedAt:     time.Unix(0, c.CreatedAt).UTC(),
	}, nil
}

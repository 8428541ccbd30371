package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"agrimarket/models"
)

const (
	inboxKeyPrefix = "inbox:"
	genKeyPrefix   = "inbox-gen:"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	UseTLS   bool
}

// Inbox кэширует свёрнутый список диалогов пользователя на короткий TTL.
type Inbox struct {
	client  *redis.Client
	ttl     time.Duration
	lookups *prometheus.CounterVec
}

func NewClient(cfg Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// NewInbox. lookups может быть nil.
func NewInbox(client *redis.Client, ttl time.Duration, lookups *prometheus.CounterVec) *Inbox {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Inbox{
		client:  client,
		ttl:     ttl,
		lookups: lookups,
	}
}

func (c *Inbox) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// GetInbox возвращает кэш и поколение пользователя. Поколение растёт при каждой
// инвалидации, SetInbox с устаревшим поколением ничего не пишет.
func (c *Inbox) GetInbox(ctx context.Context, userName string) ([]models.InboxEntry, int64, bool, error) {
	vals, err := c.client.MGet(ctx, inboxKeyPrefix+userName, genKeyPrefix+userName).Result()
	if err != nil {
		c.count("error")
		return nil, 0, false, fmt.Errorf("redis get inbox: %w", err)
	}
	gen, err := parseGen(vals[1])
	if err != nil {
		c.count("error")
		return nil, 0, false, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		c.count("miss")
		return nil, gen, false, nil
	}
	var entries []models.InboxEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		c.count("error")
		return nil, 0, false, fmt.Errorf("json unmarshal: %w", err)
	}
	c.count("hit")
	return entries, gen, true, nil
}

// SetInbox пишет список, только если с момента чтения gen не было инвалидаций.
func (c *Inbox) SetInbox(ctx context.Context, userName string, gen int64, entries []models.InboxEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	genKey := genKeyPrefix + userName
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		curGen, err := parseGen(cur)
		if err != nil {
			return err
		}
		if curGen != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, inboxKeyPrefix+userName, data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		// инвалидация пришла между проверкой и записью
		return nil
	}
	return err
}

func (c *Inbox) Invalidate(ctx context.Context, userNames ...string) error {
	if len(userNames) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, u := range userNames {
			pipe.Incr(ctx, genKeyPrefix+u)
			pipe.Del(ctx, inboxKeyPrefix+u)
		}
		return nil
	})
	return err
}

func parseGen(v any) (int64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		if v == "" {
			return 0, nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("inbox generation %q: %w", v, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("inbox generation: unexpected %T", v)
	}
}

func (c *Inbox) Close() error {
	return c.client.Close()
}

func (c *Inbox) count(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

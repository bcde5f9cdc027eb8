package session

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/retry"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

var _ port.SessionStore = (*RedisStore)(nil)

const (
	keyPrefix        = "storefront:session:"
	maxUpdateAttempt = 10
)

type (
	sessionModel struct {
		Query    string      `json:"query"`
		Category string      `json:"category"`
		Lines    []lineModel `json:"lines"`
	}

	lineModel struct {
		ProductID int64           `json:"product_id"`
		Name      string          `json:"name"`
		Category  string          `json:"category"`
		Price     decimal.Decimal `json:"price"`
		Rating    float64         `json:"rating"`
		Image     string          `json:"image"`
		Quantity  int             `json:"quantity"`
	}
)

// A RedisStore keeps sessions as JSON values with a sliding TTL, so that
// several storefront instances can serve the same session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects to addr and waits until it answers a ping.
// tlsConfig may be nil.
func NewRedisClient(
	ctx context.Context, addr, password string, db int, tlsConfig *tls.Config,
) (*redis.Client, error) {
	const op = "NewRedisClient"

	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  password,
		DB:        db,
		TLSConfig: tlsConfig,
	})

	err := retry.Do(ctx, retry.RetryConfig{
		MaxAttempts: 5,
		Backoff:     retry.ExponentialBackoff(200 * time.Millisecond),
	}, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: redis is unavailable: %w", op, err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) RedisStore {
	return RedisStore{client: client, ttl: ttl}
}

func (s RedisStore) Create(
	ctx context.Context, id string, session domain.Session,
) error {
	const op = "RedisStore.Create"

	data, err := marshalSession(session)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s RedisStore) Get(
	ctx context.Context, id string,
) (domain.Session, error) {
	const op = "RedisStore.Get"

	data, err := s.client.GetEx(ctx, s.key(id), s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, fmt.Errorf("%s: %w", op, domain.ErrSessionNotFound)
		}
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}

	session, err := unmarshalSession(data)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

// Update runs fn inside an optimistic WATCH transaction and retries it
// when another writer commits first.
func (s RedisStore) Update(
	ctx context.Context,
	id string,
	fn func(domain.Session) (domain.Session, error),
) (domain.Session, error) {
	const op = "RedisStore.Update"

	key := s.key(id)
	var next domain.Session

	txFn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return domain.ErrSessionNotFound
			}
			return err
		}

		cur, err := unmarshalSession(data)
		if err != nil {
			return err
		}

		next, err = fn(cur)
		if err != nil {
			return err
		}

		nextData, err := marshalSession(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, nextData, s.ttl)
			return nil
		})
		return err
	}

	err := retry.Do(ctx, retry.RetryConfig{
		MaxAttempts: maxUpdateAttempt,
		Backoff:     retry.ExponentialBackoff(5 * time.Millisecond),
		ShouldRetry: func(err error) bool {
			return errors.Is(err, redis.TxFailedErr)
		},
	}, func() error {
		return s.client.Watch(ctx, txFn, key)
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("%s: %w", op, err)
	}
	return next, nil
}

func (s RedisStore) Delete(ctx context.Context, id string) error {
	const op = "RedisStore.Delete"

	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrSessionNotFound)
	}
	return nil
}

func (RedisStore) key(id string) string {
	return keyPrefix + id
}

func marshalSession(s domain.Session) ([]byte, error) {
	m := sessionModel{
		Query:    s.Query,
		Category: s.Category,
		Lines:    make([]lineModel, len(s.Cart.Lines)),
	}
	for i, l := range s.Cart.Lines {
		m.Lines[i] = lineModel{
			ProductID: l.ID,
			Name:      l.Name,
			Category:  l.Category,
			Price:     l.Price,
			Rating:    l.Rating,
			Image:     l.Image,
			Quantity:  l.Quantity,
		}
	}
	return json.Marshal(m)
}

func unmarshalSession(data []byte) (domain.Session, error) {
	var m sessionModel
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.Session{}, err
	}

	s := domain.Session{Query: m.Query, Category: m.Category}
	for _, l := range m.Lines {
		s.Cart.Lines = append(s.Cart.Lines, domain.CartLine{
			Product: domain.Product{
				ID:       l.ProductID,
				Name:     l.Name,
				Category: l.Category,
				Price:    l.Price,
				Rating:   l.Rating,
				Image:    l.Image,
			},
			Quantity: l.Quantity,
		})
	}
	return s, nil
}

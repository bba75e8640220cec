package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bbqhouse/storefront/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionRepository is the per-client key-value store correlating an
// anonymous session token with its cart, plus the non-authoritative item
// counter shown as the cart badge.
type SessionRepository interface {
	CartID(ctx context.Context, token string) (uuid.UUID, bool, error)
	SetCartID(ctx context.Context, token string, cartID uuid.UUID) error
	AddItemCount(ctx context.Context, token string, delta int64) error
	ItemCount(ctx context.Context, token string) (int64, error)
	Clear(ctx context.Context, token string) error
}

type sessionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {

	redisURL := cfg.RedisConnect.GetDSN()
	slog.Info("Connecting to Redis", slog.String("addr", fmt.Sprintf("%s:%s", cfg.RedisConnect.Host, cfg.RedisConnect.Port)))

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.DB = cfg.RedisConnect.DB

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Test the connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func NewSessionRepo(client *redis.Client, cfg *config.Config) SessionRepository {
	return &sessionRepository{client: client, ttl: cfg.Session.TTL}
}

func cartKey(token string) string {
	return fmt.Sprintf("session:%s:cart", token)
}

func countKey(token string) string {
	return fmt.Sprintf("session:%s:count", token)
}

func (r *sessionRepository) CartID(ctx context.Context, token string) (uuid.UUID, bool, error) {

	val, err := r.client.Get(ctx, cartKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to read session cart id: %w", err)
	}

	cartID, err := uuid.Parse(val)
	if err != nil {
		// A corrupt entry behaves like a missing one; the caller creates
		// a fresh cart and overwrites it.
		return uuid.Nil, false, nil
	}

	return cartID, true, nil
}

func (r *sessionRepository) SetCartID(ctx context.Context, token string, cartID uuid.UUID) error {

	if err := r.client.Set(ctx, cartKey(token), cartID.String(), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session cart id: %w", err)
	}

	return nil
}

func (r *sessionRepository) AddItemCount(ctx context.Context, token string, delta int64) error {

	pipe := r.client.Pipeline()
	pipe.IncrBy(ctx, countKey(token), delta)
	pipe.Expire(ctx, countKey(token), r.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update session item count: %w", err)
	}

	return nil
}

func (r *sessionRepository) ItemCount(ctx context.Context, token string) (int64, error) {

	val, err := r.client.Get(ctx, countKey(token)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read session item count: %w", err)
	}

	return val, nil
}

// Clear drops the session's cart binding and badge counter, used after
// checkout when the cart no longer exists.
func (r *sessionRepository) Clear(ctx context.Context, token string) error {

	if err := r.client.Del(ctx, cartKey(token), countKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	return nil
}

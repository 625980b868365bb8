package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"guardians-shop/internal/domain"
)

// cachedProductRepo is cache-aside over another ProductRepo. Redis failures
// fall through to the store; unknown skus are not cached.
type cachedProductRepo struct {
	store  ProductRepo
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewCachedProductRepo(store ProductRepo, client *redis.Client, ttl time.Duration, log *slog.Logger) ProductRepo {
	return &cachedProductRepo{store: store, client: client, ttl: ttl, log: log}
}

func productKey(sku string) string {
	return fmt.Sprintf("product:%s", sku)
}

func (r *cachedProductRepo) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	data, err := r.client.Get(ctx, productKey(sku)).Bytes()
	switch {
	case err == nil:
		var p domain.Product
		if uerr := json.Unmarshal(data, &p); uerr == nil {
			return &p, nil
		}
		r.log.Warn("discarding corrupt product cache entry", slog.String("sku", sku))
	case errors.Is(err, redis.Nil):
	default:
		r.log.Warn("product cache unavailable", slog.String("sku", sku), slog.Any("error", err))
	}

	p, err := r.store.FindBySKU(ctx, sku)
	if err != nil || p == nil {
		return p, err
	}

	if data, merr := json.Marshal(p); merr == nil {
		if serr := r.client.Set(ctx, productKey(sku), data, r.ttl).Err(); serr != nil {
			r.log.Warn("product cache write failed", slog.String("sku", sku), slog.Any("error", serr))
		}
	}
	return p, nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const productKeyPrefix = "catalog:product:"

// *redis.Client が満たす最小限
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ProductCache は商品1件取得のread-throughキャッシュ。
// カート表示用（参考値）で、注文確定時はtx内でDBを読み直す。
// Redisが落ちていてもDBにフォールバックする。
type ProductCache struct {
	client Client
	next   repo.ProductLookup
	ttl    time.Duration
	log    *zap.Logger
}

func NewProductCache(client Client, next repo.ProductLookup, ttl time.Duration, log *zap.Logger) *ProductCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductCache{client: client, next: next, ttl: ttl, log: log}
}

func productKey(id int64) string {
	return fmt.Sprintf("%s%d", productKeyPrefix, id)
}

func (c *ProductCache) FindByID(ctx context.Context, id int64) (model.Product, error) {
	key := productKey(id)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p model.Product
		if uerr := json.Unmarshal(raw, &p); uerr == nil {
			return p, nil
		}
		c.log.Warn("catalog cache: broken entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("catalog cache: get failed", zap.String("key", key), zap.Error(err))
	}

	p, err := c.next.FindByID(ctx, id)
	if err != nil {
		return model.Product{}, err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return p, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache: set failed", zap.String("key", key), zap.Error(err))
	}
	return p, nil
}

// 在庫・価格が変わった商品を消す
func (c *ProductCache) Invalidate(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("catalog cache: invalidate failed", zap.Int("keys", len(keys)), zap.Error(err))
	}
}

package controllers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storefront/commerce-backend/models"
	"go.uber.org/zap"
)

const (
	productCachePrefix = "product:detail:"
	productCacheTTL    = 5 * time.Minute
)

// CacheManager is a read-through cache for product detail lookups. Stock in
// a cached product is display data only; reservation decisions always go
// through the store's conditional update.
type CacheManager struct {
	redis  *redis.Client
	logger *zap.Logger
}

func NewCacheManager(client *redis.Client, logger *zap.Logger) *CacheManager {
	return &CacheManager{redis: client, logger: logger}
}

func (cm *CacheManager) GetProduct(ctx context.Context, id string) (*models.Product, bool) {
	if cm.redis == nil {
		return nil, false
	}

	data, err := cm.redis.Get(ctx, productCachePrefix+id).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		cm.logger.Warn("product cache read failed", zap.String("product_id", id), zap.Error(err))
		return nil, false
	}

	var product models.Product
	if err := json.Unmarshal([]byte(data), &product); err != nil {
		return nil, false
	}
	return &product, true
}

func (cm *CacheManager) SetProduct(ctx context.Context, product *models.Product) {
	if cm.redis == nil {
		return
	}

	data, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := cm.redis.Set(ctx, productCachePrefix+product.ID.Hex(), data, productCacheTTL).Err(); err != nil {
		cm.logger.Warn("product cache write failed", zap.String("product_id", product.ID.Hex()), zap.Error(err))
	}
}

func (cm *CacheManager) InvalidateProduct(ctx context.Context, id string) {
	if cm.redis == nil {
		return
	}
	if err := cm.redis.Del(ctx, productCachePrefix+id).Err(); err != nil {
		cm.logger.Warn("product cache invalidation failed", zap.String("product_id", id), zap.Error(err))
	}
}

package services

import (
	"context"
	"fmt"
	"time"

	"geowatch/internal/models"
	"geowatch/internal/repositories/interfaces"
	"geowatch/internal/utils"
	"geowatch/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CacheStore is the key/value backend of the geofence cache. *cache.RedisCache
// satisfies it.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

type cachedGeofenceRepository struct {
	next   interfaces.GeofenceRepository
	cache  CacheStore
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedGeofenceRepository serves ListActiveGeofences from cache for ttl.
// Geofence edits made elsewhere become visible once the entry expires. Any
// cache failure falls through to the wrapped repository.
func NewCachedGeofenceRepository(next interfaces.GeofenceRepository, cache CacheStore, ttl time.Duration, log *logger.Logger) interfaces.GeofenceRepository {
	if ttl <= 0 {
		return next
	}
	return &cachedGeofenceRepository{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithComponent("geofence_cache"),
	}
}

func geofenceCacheKey(sessionID primitive.ObjectID) string {
	return utils.CacheGeofencePrefix + sessionID.Hex()
}

func (r *cachedGeofenceRepository) ListActiveGeofences(ctx context.Context, sessionID primitive.ObjectID) ([]*models.Geofence, error) {
	key := geofenceCacheKey(sessionID)

	var cached []*models.Geofence
	err := r.cache.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	r.logger.WithField("cache_key", key).WithError(err).Debug("Cache miss")

	geofences, err := r.next.ListActiveGeofences(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if geofences == nil {
		geofences = []*models.Geofence{}
	}
	if err := r.cache.Set(ctx, key, geofences, r.ttl); err != nil {
		r.logger.WithField("cache_key", key).WithError(fmt.Errorf("failed to cache geofences: %w", err)).Warn("Cache write failed")
	}
	return geofences, nil
}

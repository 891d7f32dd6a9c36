package utils

import (
	"context"
	"os"
	"strconv"
	"time"

	"bitbucket.org/oakcrm/lettings_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

// FetchCached reads a value from Redis, calling load and caching the
// result on a miss. Redis being down degrades to a plain load.
func FetchCached[T any](ctx context.Context, key string, load func() (T, error)) (T, error) {
	var cached T
	if config.GetRedisDB() != nil {
		if exists, err := config.GetRedisObject(key, &cached); err == nil && exists {
			return cached, nil
		}
	}
	value, err := load()
	if err != nil {
		return value, err
	}
	if config.GetRedisDB() != nil {
		_ = config.SetRedisObject(key, value, GetCacheLifespan())
	}
	return value, nil
}

func InvalidateCache(keys ...string) {
	if config.GetRedisDB() == nil {
		return
	}
	_ = config.RemoveRedisKey(keys...)
}

package businessflow

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const dashboardCacheKey = "dashboard:agent"

// redisKey joins the configured prefix and key parts with ':'
func redisKey(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if p := strings.Trim(prefix, ":"); p != "" {
		all = append(all, p)
	}
	all = append(all, parts...)
	return strings.Join(all, ":")
}

// cacheGetJSON loads key into out; a nil client or a miss reports false
func cacheGetJSON(ctx context.Context, rc *redis.Client, key string, out any) bool {
	if rc == nil {
		return false
	}
	bs, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("cache get %s failed: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(bs, out); err != nil {
		log.Printf("cache decode %s failed: %v", key, err)
		return false
	}
	return true
}

func cacheSetJSON(ctx context.Context, rc *redis.Client, key string, value any, ttl time.Duration) {
	if rc == nil {
		return
	}
	bs, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := rc.Set(ctx, key, bs, ttl).Err(); err != nil {
		log.Printf("cache set %s failed: %v", key, err)
	}
}

func cacheDelete(ctx context.Context, rc *redis.Client, keys ...string) {
	if rc == nil || len(keys) == 0 {
		return
	}
	if err := rc.Del(ctx, keys...).Err(); err != nil {
		log.Printf("cache delete %v failed: %v", keys, err)
	}
}

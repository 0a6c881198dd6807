package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// Trip search results are cached briefly; anything that changes seat
// availability or trip status must invalidate.
const tripSearchTTL = 2 * time.Minute

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// TripSearchKey builds the cache key for a trip search query
func TripSearchKey(fromCity, toCity, date string, page int) string {
	return fmt.Sprintf("trips:search:%s:%s:%s:%d", fromCity, toCity, date, page)
}

// CacheTripSearch stores a serialized trip search result
func CacheTripSearch(ctx context.Context, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return RedisClient.Set(ctx, key, data, tripSearchTTL).Err()
}

// GetCachedTripSearch loads a cached trip search result into dest.
// Returns redis.Nil via the client when the key is absent.
func GetCachedTripSearch(ctx context.Context, key string, dest interface{}) error {
	data, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// InvalidateTripSearchCache drops all cached trip search pages
func InvalidateTripSearchCache(ctx context.Context) error {
	keys, err := RedisClient.Keys(ctx, "trips:search:*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return RedisClient.Del(ctx, keys...).Err()
}

// PublishTripUpdate publishes a trip lifecycle event to Redis pub/sub
func PublishTripUpdate(ctx context.Context, tripID uint, event string, data map[string]interface{}) error {
	updateData := map[string]interface{}{
		"tripId":    tripID,
		"event":     event,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "trip:updates", jsonData).Err()
}

// PublishAdminAlert publishes an operational alert to Redis pub/sub so
// other instances can fan it out to their connected admins
func PublishAdminAlert(ctx context.Context, alertID, tripID, driverID uint, message string) error {
	alertData := map[string]interface{}{
		"alertId":   alertID,
		"tripId":    tripID,
		"driverId":  driverID,
		"message":   message,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(alertData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "admin:alerts", jsonData).Err()
}

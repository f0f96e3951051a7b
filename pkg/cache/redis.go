package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// VehicleLocationsKey is the geo set holding last-reported vehicle positions.
const VehicleLocationsKey = "vehicles:locations"

// Config holds Redis configuration
type Config struct {
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConn,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Close gracefully closes the Redis client
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

// SetVehicleLocation records a vehicle's last-reported position in the geo
// set. Best effort: dispatch truth lives in the entity store.
func SetVehicleLocation(ctx context.Context, client *redis.Client, vehicleID string, lat, lon float64) error {
	return client.GeoAdd(ctx, VehicleLocationsKey, &redis.GeoLocation{
		Name:      vehicleID,
		Latitude:  lat,
		Longitude: lon,
	}).Err()
}

// VehiclesNearby returns vehicle IDs within radiusKM of the given position,
// nearest first, from the cached geo set.
func VehiclesNearby(ctx context.Context, client *redis.Client, lat, lon, radiusKM float64, limit int) ([]redis.GeoLocation, error) {
	return client.GeoRadius(ctx, VehicleLocationsKey, lon, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKM,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Count:     limit,
		Sort:      "ASC",
	}).Result()
}

// SetSessionToken stores an issued token for bookkeeping and revocation.
func SetSessionToken(ctx context.Context, client *redis.Client, subjectID, token string, ttl time.Duration) error {
	return client.Set(ctx, "token:"+subjectID, token, ttl).Err()
}

// DeleteSessionToken drops a rider's session token.
func DeleteSessionToken(ctx context.Context, client *redis.Client, subjectID string) error {
	return client.Del(ctx, "token:"+subjectID).Err()
}

package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ConnectRedis opens a client and checks it with PING.
func ConnectRedis(ctx context.Context, addr, password string, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	logger.Info("Connected to Redis", zap.String("addr", addr))
	return client, nil
}

// CloseRedis closes the client and logs the outcome.
func CloseRedis(client *redis.Client, logger *zap.Logger) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logger.Error("error closing Redis", zap.Error(err))
		return
	}
	logger.Info("Redis connection closed")
}

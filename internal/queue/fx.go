package queue

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/losverdes/membersync/internal/config"
)

func NewRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

var Module = fx.Module("queue",
	fx.Provide(
		NewRedisClient,
		NewRedisQueue,
		NewRunLocker,
		func(q *RedisQueue) Publisher { return q },
	),
)

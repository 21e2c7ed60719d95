package ocrlens

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ResultCache stores finished OCR results by content key so the same image
// with the same settings is only recognised once.
type ResultCache interface {
	Get(ctx context.Context, key string) (OcrResult, bool, error)
	Set(ctx context.Context, key string, result OcrResult) error
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"LENS_REDIS_ADDR"`
	Password string        `yaml:"password" env:"LENS_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"LENS_REDIS_DB" env-default:"0"`
	TTL      time.Duration `yaml:"ttl" env:"LENS_REDIS_TTL" env-default:"24h"`
}

type RedisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisResultCache(config RedisConfig) *RedisResultCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisResultCache{client: rdb, ttl: config.TTL}
}

// Ping checks the connection once at startup.
func (c *RedisResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisResultCache) Close() error {
	return c.client.Close()
}

func (c *RedisResultCache) Get(ctx context.Context, key string) (OcrResult, bool, error) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return OcrResult{}, false, nil
	}
	if err != nil {
		return OcrResult{}, false, errors.Wrap(err, "redis get")
	}
	var result OcrResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Warn().Err(err).Str("component", "OCR_CACHE").Str("key", key).Msg("dropping unreadable cache entry")
		return OcrResult{}, false, nil
	}
	return result, true, nil
}

func (c *RedisResultCache) Set(ctx context.Context, key string, result OcrResult) error {
	result.ID = ""
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, redisKey(key), data, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

func redisKey(key string) string {
	return "ocrlens:result:" + key
}

// requestCacheKey covers the image and everything that changes the result of
// recognising it.
func requestCacheKey(r *OcrRequest) string {
	stage := ""
	if r.Stage != nil {
		stage = r.Stage.String()
	}
	args, _ := json.Marshal(r.EngineArgs)
	return contentKey(r.ImgBytes,
		r.EngineType.String(),
		strings.Join(r.Languages, ","),
		stage,
		string(args),
		strconv.FormatBool(r.Translate),
	)
}

package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/entity"
)

const keyPrefix = "prediction:"

// ErrCacheMiss is returned by GetPrediction when no entry exists.
var ErrCacheMiss = errors.New("prediction not cached")

type Config struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type IRedis interface {
	GetPrediction(ctx context.Context, key string) (*entity.Prediction, error)
	SetPrediction(ctx context.Context, key string, prediction *entity.Prediction) error
	Close() error
}

type redisClient struct {
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

func New(log *logrus.Logger, cfg Config) (IRedis, error) {
	log.Info(fmt.Sprintf("Connecting to Redis at %s...", cfg.Address))

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Successfully connected to Redis")

	return &redisClient{client: client, ttl: cfg.TTL, log: log}, nil
}

// KeyFor derives the cache key of an image from its raw bytes.
func KeyFor(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

func (r *redisClient) GetPrediction(ctx context.Context, key string) (*entity.Prediction, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.log.Debug(fmt.Sprintf("Prediction not cached for key %s", key))
		return nil, ErrCacheMiss
	} else if err != nil {
		return nil, fmt.Errorf("get prediction %s: %w", key, err)
	}

	var prediction entity.Prediction
	if err := jsoniter.Unmarshal(val, &prediction); err != nil {
		return nil, fmt.Errorf("decode cached prediction %s: %w", key, err)
	}
	return &prediction, nil
}

func (r *redisClient) SetPrediction(ctx context.Context, key string, prediction *entity.Prediction) error {
	val, err := jsoniter.Marshal(prediction)
	if err != nil {
		return fmt.Errorf("encode prediction %s: %w", key, err)
	}

	if err := r.client.Set(ctx, keyPrefix+key, val, r.ttl).Err(); err != nil {
		return fmt.Errorf("set prediction %s: %w", key, err)
	}
	r.log.Debug(fmt.Sprintf("Cached prediction for key %s with expiration %v", key, r.ttl))
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}

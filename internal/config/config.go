package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"

	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/imaging"
)

type AppConfig struct {
	Port           string        `koanf:"port" validate:"required,numeric"`
	AppEnv         string        `koanf:"app_env" validate:"required"`
	LogLevel       string        `koanf:"log_level" validate:"oneof=panic fatal error warn warning info debug trace"`
	OnnxRuntimeLib string        `koanf:"onnxruntime_lib"`
	FetchTimeout   time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
	PredictTimeout time.Duration `koanf:"predict_timeout" validate:"gt=0"`
	MaxImageSize   int64         `koanf:"max_image_size" validate:"gt=0"`
	MaxImagePixels int           `koanf:"max_image_pixels" validate:"gt=0"`
	RateLimit      float64       `koanf:"rate_limit" validate:"gt=0"`
	RateBurst      int           `koanf:"rate_burst" validate:"gt=0"`

	RedisAddress  string        `koanf:"redis_address" validate:"omitempty,hostname_port"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db" validate:"min=0"`
	CacheTTL      time.Duration `koanf:"cache_ttl" validate:"gt=0"`

	AWSRegion          string `koanf:"aws_region"`
	AWSAccessKeyID     string `koanf:"aws_access_key_id"`
	AWSSecretAccessKey string `koanf:"aws_secret_access_key"`
	AWSEndpoint        string `koanf:"aws_endpoint" validate:"omitempty,url"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"port":                  "8080",
		"app_env":               "development",
		"log_level":             "debug",
		"onnxruntime_lib":       "",
		"fetch_timeout":         "30s",
		"predict_timeout":       "60s",
		"max_image_size":        50 * 1024 * 1024,
		"max_image_pixels":      imaging.DefaultMaxPixels,
		"rate_limit":            50,
		"rate_burst":            100,
		"redis_address":         "",
		"redis_password":        "",
		"redis_db":              0,
		"cache_ttl":             "24h",
		"aws_region":            "",
		"aws_access_key_id":     "",
		"aws_secret_access_key": "",
		"aws_endpoint":          "",
	}
}

func NewValidator() *validator.Validate {
	return validator.New()
}

// Load builds the application config from compiled-in defaults overlaid with
// environment variables. Only known keys are read and empty values keep the
// default.
func Load(validate *validator.Validate) (*AppConfig, error) {
	k := koanf.New(".")
	base := defaults()

	if err := k.Load(confmap.Provider(base, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load config defaults: %w", err)
	}

	envProvider := env.ProviderWithValue("", ".", func(key string, value string) (string, interface{}) {
		key = strings.ToLower(key)
		if _, known := base[key]; !known || value == "" {
			return "", nil
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// CacheEnabled reports whether a redis address was configured.
func (c *AppConfig) CacheEnabled() bool {
	return c.RedisAddress != ""
}

// S3Enabled reports whether s3:// image URLs can be served.
func (c *AppConfig) S3Enabled() bool {
	return c.AWSRegion != ""
}

package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/api/prediction"
	predictionHandler "github.com/thanaphatngamloed29-pixel/rice.disease/internal/api/prediction/handler"
	predictionService "github.com/thanaphatngamloed29-pixel/rice.disease/internal/api/prediction/service"
	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/middleware"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/fetcher"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/model"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/redis"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/s3"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/utils"
)

const LivenessMessage = "TeachableMachine predictor is running"

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	cfg         *AppConfig
	log         *logrus.Logger
	middleware  middleware.Middleware
	utils       utils.IUtils
	handlers    []handler
	loader      *model.Loader
	fetcher     fetcher.IFetcher
	redisServer redis.IRedis
	s3Client    s3.ItfS3
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if server.loader == nil {
		return nil, fmt.Errorf("model loader is required")
	}

	return server, nil
}

func WithConfig(cfg *AppConfig) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			return fmt.Errorf("config must be loaded before utils")
		}
		s.utils = utils.New(s.cfg.MaxImageSize)
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.cfg == nil || s.utils == nil {
			return fmt.Errorf("logger, config and utils must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, s.utils, s.cfg.RateLimit, s.cfg.RateBurst)
		return nil
	}
}

// WithModelLoader sets up lazy loading of the compiled-in model through
// runtime. Nothing is read until the first prediction.
func WithModelLoader(runtime model.Runtime) ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before model loader")
		}
		s.loader = model.NewLoader(s.log, runtime, prediction.ModelPath, len(prediction.ClassLabels))
		return nil
	}
}

func WithFetcher() ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.cfg == nil {
			return fmt.Errorf("logger and config must be initialized before fetcher")
		}
		s.fetcher = fetcher.New(s.log, s.cfg.FetchTimeout, int(s.cfg.MaxImageSize))
		return nil
	}
}

// WithRedisServer connects the prediction cache. It is a no-op when no
// address is configured.
func WithRedisServer() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil || !s.cfg.CacheEnabled() {
			return nil
		}

		client, err := redis.New(s.log, redis.Config{
			Address:  s.cfg.RedisAddress,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
			TTL:      s.cfg.CacheTTL,
		})
		if err != nil {
			s.log.Errorf("Failed to connect to Redis: %v", err)
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		s.redisServer = client
		return nil
	}
}

// WithS3Client enables s3:// image URLs. It is a no-op when no region is
// configured.
func WithS3Client() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil || !s.cfg.S3Enabled() {
			return nil
		}

		client, err := s3.New(s3.Config{
			Region:          s.cfg.AWSRegion,
			AccessKeyID:     s.cfg.AWSAccessKeyID,
			SecretAccessKey: s.cfg.AWSSecretAccessKey,
			Endpoint:        s.cfg.AWSEndpoint,
		}, s.cfg.MaxImageSize)
		if err != nil {
			s.log.Errorf("Failed to initialize S3 client: %v", err)
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func (s *Server) RegisterHandler() {
	predictionServices := predictionService.NewPredictionService(
		s.log, s.loader, s.fetcher, s.s3Client, s.redisServer, s.utils, prediction.ClassLabels, s.cfg.MaxImagePixels)
	predictionHandlers := predictionHandler.New(s.log, s.middleware, predictionServices, s.utils, s.cfg.PredictTimeout)

	s.handlers = append(s.handlers, predictionHandlers)
}

// mount attaches the global middleware, the liveness route and every
// registered handler to the engine. Middleware has to be in place before the
// routes it wraps.
func (s *Server) mount() {
	s.engine.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			s.log.WithFields(logrus.Fields{
				"path":  c.Path(),
				"panic": fmt.Sprint(e),
			}).Error("Recovered from panic")
		},
	}))
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware)

	s.setupHealthCheck()

	for _, h := range s.handlers {
		h.Start(s.engine)
	}
}

func (s *Server) Run() error {
	s.mount()

	s.log.WithFields(logrus.Fields{
		"port":  s.cfg.Port,
		"model": prediction.ModelPath,
		"cache": s.cfg.CacheEnabled(),
		"s3":    s.cfg.S3Enabled(),
	}).Info("Starting predictor")

	return s.engine.Listen(fmt.Sprintf(":%s", s.cfg.Port))
}

// Shutdown stops accepting requests, then releases the model and the
// optional backends.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.engine.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
	}
	if err := s.loader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close model: %w", err))
	}
	if err := model.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("failed to destroy onnx environment: %w", err))
	}
	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.SendString(LivenessMessage)
	})
}

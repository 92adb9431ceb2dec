package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/thanaphatngamloed29-pixel/rice.disease/internal/config"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/log"
	"github.com/thanaphatngamloed29-pixel/rice.disease/pkg/model"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "No .env file loaded, using process environment")
	}

	cfg, err := config.Load(config.NewValidator())
	if err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Failed to load configuration")
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		log.Fatal(log.Fields{"error": err.Error()}, "Failed to apply log level")
	}
	log.Debug(log.Fields{
		"app_env":         cfg.AppEnv,
		"fetch_timeout":   cfg.FetchTimeout.String(),
		"predict_timeout": cfg.PredictTimeout.String(),
	}, "Configuration loaded")

	server, err := config.NewServer(
		config.WithConfig(cfg),
		config.WithFiber(config.NewFiber()),
		config.WithLogger(logger),
		config.WithUtils(),
		config.WithMiddleware(),
		config.WithModelLoader(model.NewONNXRuntime(logger, cfg.OnnxRuntimeLib)),
		config.WithFetcher(),
		config.WithRedisServer(),
		config.WithS3Client(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	log.Info(nil, "Server stopped")
}

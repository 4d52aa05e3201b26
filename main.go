package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"retailcast/db"
	"retailcast/forecast"
	qhttp "retailcast/http"
	"retailcast/logging"
	"retailcast/monitoring"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port           int      `yaml:"port"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log      logging.Config  `yaml:"log"`
	Forecast forecast.Config `yaml:"forecast"`
}

func main() {
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.Init(config.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Sync()

	if err := db.InitDB(config.Database.Path); err != nil {
		zap.S().Fatalw("failed to initialize database", "path", config.Database.Path, "error", err)
	}
	defer db.Close()
	zap.S().Infow("database initialized", "path", config.Database.Path)

	hub := monitoring.NewHub()
	go hub.Start()
	defer hub.Stop()

	svc, err := forecast.New(config.Forecast, hub)
	if err != nil {
		zap.S().Fatalw("failed to build forecast service", "error", err)
	}

	serverConfig := qhttp.DefaultServerConfig()
	if config.Http.Port != 0 {
		serverConfig.Port = config.Http.Port
	}
	if config.Http.TimeoutSeconds != 0 {
		serverConfig.Timeout = time.Duration(config.Http.TimeoutSeconds) * time.Second
	}
	if len(config.Http.AllowedOrigins) != 0 {
		serverConfig.AllowedOrigins = config.Http.AllowedOrigins
	}

	server := qhttp.NewServer(serverConfig, svc, hub.HandleWS)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			zap.S().Fatalw("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.S().Info("shutting down")

	if err := server.Stop(); err != nil {
		zap.S().Warnw("server forced to shutdown", "error", err)
	}
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

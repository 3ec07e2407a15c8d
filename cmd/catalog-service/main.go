package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/app"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(parseLogLevel(level))
}

func parseLogLevel(raw string) log.Level {
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// loadDotEnv подхватывает .env, если он есть; уже заданные переменные не перезаписываются.
func loadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func main() {
	if err := loadDotEnv(".env"); err != nil {
		log.WithError(err).Warn("не удалось прочитать .env")
	}

	cfg, warnings, err := app.LoadConfig(os.LookupEnv)
	setupLogger(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("некорректная конфигурация")
	}
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":       cfg.GRPCAddr,
		"metrics_addr":    cfg.MetricsAddr,
		"storage_driver":  cfg.StorageDriver,
		"settlement_mode": cfg.SettlementMode,
	}).Info("запускаем CatalogService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("CatalogService остановлен")
}

// Package idempotency обслуживает ключи идемпотентности расчётных RPC.
package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/metrics"
)

const (
	defaultCleanupInterval  = 10 * time.Minute
	defaultCleanupBatchSize = 500
)

// CleanupConfig — параметры очистки. Нулевые значения заменяются значениями по умолчанию.
type CleanupConfig struct {
	Interval  time.Duration
	BatchSize int
}

func (c CleanupConfig) normalized() CleanupConfig {
	if c.Interval <= 0 {
		c.Interval = defaultCleanupInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultCleanupBatchSize
	}
	return c
}

// CleanupWorker удаляет истёкшие записи идемпотентности Purchase, BuyListing и OnTokenTransfer.
// Зависшая запись processing тоже уходит по TTL, после чего ключ можно занять заново.
type CleanupWorker struct {
	repo    domain.IdempotencyRepository
	cfg     CleanupConfig
	metrics *metrics.IdempotencyMetrics
	logger  *log.Entry
	now     func() time.Time
}

// NewCleanupWorker создаёт worker очистки. Nil metrics регистрируются в DefaultRegisterer.
func NewCleanupWorker(repo domain.IdempotencyRepository, cfg CleanupConfig, m *metrics.IdempotencyMetrics, logger *log.Entry) *CleanupWorker {
	if m == nil {
		m = metrics.NewIdempotencyMetricsWithRegisterer(nil)
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency")
	}
	return &CleanupWorker{
		repo:    repo,
		cfg:     cfg.normalized(),
		metrics: m,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Run чистит сразу и затем раз в Interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup disabled: no repository")
		return
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		w.runOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) runOnce(ctx context.Context) {
	deleted, err := w.DeleteExpired(ctx, w.now())
	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		w.metrics.RecordCleanupFailed()
		w.logger.WithError(err).WithField("deleted", deleted).Warn("idempotency cleanup failed")
		return
	}

	w.metrics.RecordCleanupFinished(deleted, w.now())
	if deleted > 0 {
		w.logger.WithField("deleted", deleted).Info("expired idempotency keys removed")
	}
}

// DeleteExpired удаляет записи с ttl <= before порциями BatchSize, пока порция полная.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.repo.DeleteExpired(ctx, before, w.cfg.BatchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		w.metrics.RecordDeleted(deleted)

		if deleted < w.cfg.BatchSize {
			return total, nil
		}
	}
}

package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/audit"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/metrics"
	"github.com/vladislavdragonenkov/catalog/internal/service/settlement"
)

// newAuditSink пишет аудит в лог и, если outbox публикуется, в outbox.
func newAuditSink(deps *Dependencies, withOutbox bool, logger *log.Entry) audit.Sink {
	logSink := audit.NewLogSink(logger)
	if !withOutbox || deps.Outbox == nil {
		return logSink
	}
	return audit.MultiSink{logSink, audit.NewOutboxSink(deps.Outbox, logger)}
}

// newSettlementEngine собирает движок расчётов из конфигурации и зависимостей.
func newSettlementEngine(
	cfg Config,
	deps *Dependencies,
	sink audit.Sink,
	m *metrics.SettlementMetrics,
	logger *log.Entry,
) (*settlement.Engine, error) {
	mode, err := settlement.ParseMode(cfg.SettlementMode)
	if err != nil {
		return nil, err
	}
	platform, err := domain.ParseAccount(cfg.PlatformAccount)
	if err != nil {
		return nil, fmt.Errorf("platform account: %w", err)
	}

	var transfers domain.TransferService = deps.Ledger
	if cfg.TransferBreakerFailures > 0 {
		breaker := settlement.NewCircuitBreaker(cfg.TransferBreakerFailures, cfg.TransferBreakerReset, logger.WithField("component", "transfer-breaker"))
		transfers = settlement.NewGuardedTransfers(deps.Ledger, breaker, cfg.TransferCallTimeout)
	}

	engine, err := settlement.NewEngine(settlement.Dependencies{
		Products:  deps.Catalog,
		Registry:  deps.Registry,
		Transfers: transfers,
		Escrow:    deps.Ledger,
		Audit:     sink,
		Timeline:  deps.Timeline,
		Metrics:   m,
	}, settlement.Config{
		Mode:         mode,
		Platform:     platform,
		AsyncTimeout: cfg.SettlementAsyncTimeout,
	}, logger.WithField("component", "settlement"))
	if err != nil {
		return nil, err
	}

	logger.WithFields(log.Fields{
		"mode":     mode,
		"platform": platform,
		"breaker":  cfg.TransferBreakerFailures > 0,
	}).Info("settlement engine initialized")
	return engine, nil
}

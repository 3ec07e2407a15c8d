package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/catalog/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/catalog/internal/service/settlement"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// Переменные окружения. Все необязательны.
const (
	envConfigFile                  = "CATALOG_CONFIG_FILE"
	envGRPCAddr                    = "CATALOG_GRPC_ADDR"
	envMetricsAddr                 = "CATALOG_METRICS_ADDR"
	envStorageDriver               = "CATALOG_STORAGE_DRIVER"
	envPostgresDSN                 = "CATALOG_POSTGRES_DSN"
	envSQLitePath                  = "CATALOG_SQLITE_PATH"
	envAutoMigrate                 = "CATALOG_AUTO_MIGRATE"
	envPlatformAccount             = "CATALOG_PLATFORM_ACCOUNT"
	envEscrowAccount               = "CATALOG_ESCROW_ACCOUNT"
	envSettlementMode              = "CATALOG_SETTLEMENT_MODE"
	envSettlementAsyncTimeout      = "CATALOG_SETTLEMENT_ASYNC_TIMEOUT"
	envTransferBreakerFailures     = "CATALOG_TRANSFER_BREAKER_FAILURES"
	envTransferBreakerReset        = "CATALOG_TRANSFER_BREAKER_RESET"
	envTransferCallTimeout         = "CATALOG_TRANSFER_CALL_TIMEOUT"
	envAllowMockIntegrations       = "CATALOG_ALLOW_MOCK_INTEGRATIONS"
	envLedgerSeed                  = "CATALOG_LEDGER_SEED"
	envOutboxPollInterval          = "CATALOG_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "CATALOG_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "CATALOG_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "CATALOG_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending            = "CATALOG_OUTBOX_MAX_PENDING"
	envIdempotencyCleanupInterval  = "CATALOG_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "CATALOG_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envKafkaBrokers                = "CATALOG_KAFKA_BROKERS"
	envKafkaAuditTopic             = "CATALOG_KAFKA_AUDIT_TOPIC"
	envKafkaDLQTopic               = "CATALOG_KAFKA_DLQ_TOPIC"
	envKafkaOwnershipTopic         = "CATALOG_KAFKA_OWNERSHIP_TOPIC"
	envRateLimitRPS                = "CATALOG_RATE_LIMIT_RPS"
	envRateLimitBurst              = "CATALOG_RATE_LIMIT_BURST"
	envLogLevel                    = "CATALOG_LOG_LEVEL"
)

// Config описывает настройки запуска сервиса каталога.
type Config struct {
	GRPCAddr    string `yaml:"grpc_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	StorageDriver string `yaml:"storage_driver"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	SQLitePath    string `yaml:"sqlite_path"`
	AutoMigrate   bool   `yaml:"auto_migrate"`

	PlatformAccount         string        `yaml:"platform_account"`
	EscrowAccount           string        `yaml:"escrow_account"`
	SettlementMode          string        `yaml:"settlement_mode"`
	SettlementAsyncTimeout  time.Duration `yaml:"settlement_async_timeout"`
	// TransferBreakerFailures — отказов подряд до размыкания; 0 отключает breaker.
	TransferBreakerFailures int           `yaml:"transfer_breaker_failures"`
	TransferBreakerReset    time.Duration `yaml:"transfer_breaker_reset"`
	TransferCallTimeout     time.Duration `yaml:"transfer_call_timeout"`

	// AllowMockIntegrations разрешает in-memory ledger вместе с постоянным хранилищем и RPC Deposit.
	AllowMockIntegrations bool              `yaml:"allow_mock_integrations"`
	// LedgerSeed — начальные балансы ledger: account → десятичная сумма.
	LedgerSeed            map[string]string `yaml:"ledger_seed"`

	OutboxPollInterval time.Duration `yaml:"outbox_poll_interval"`
	OutboxBatchSize    int           `yaml:"outbox_batch_size"`
	OutboxMaxAttempts  int           `yaml:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `yaml:"outbox_retry_delay"`
	// OutboxMaxPending — порог backlog для degraded в /healthz; 0 отключает проверку.
	OutboxMaxPending   int           `yaml:"outbox_max_pending"`

	IdempotencyCleanupInterval  time.Duration `yaml:"idempotency_cleanup_interval"`
	IdempotencyCleanupBatchSize int           `yaml:"idempotency_cleanup_batch_size"`

	KafkaBrokers    []string `yaml:"kafka_brokers"`
	KafkaAuditTopic string   `yaml:"kafka_audit_topic"`
	KafkaDLQTopic   string   `yaml:"kafka_dlq_topic"`

	// KafkaOwnershipTopic — отдельный топик для ownership_transfer; пусто означает KafkaAuditTopic.
	KafkaOwnershipTopic string `yaml:"kafka_ownership_topic"`

	// RateLimitRPS <= 0 отключает ограничение.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig возвращает настройки для локального запуска в памяти.
func DefaultConfig() Config {
	settlementDefaults := settlement.DefaultConfig()
	return Config{
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		SQLitePath:                  "catalog.db",
		AutoMigrate:                 true,
		PlatformAccount:             settlementDefaults.Platform.String(),
		EscrowAccount:               "catalog.escrow",
		SettlementMode:              string(settlementDefaults.Mode),
		SettlementAsyncTimeout:      settlementDefaults.AsyncTimeout,
		TransferBreakerFailures:     5,
		TransferBreakerReset:        30 * time.Second,
		TransferCallTimeout:         settlement.DefaultTransferCallTimeout,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            100 * time.Millisecond,
		OutboxMaxPending:            1000,
		IdempotencyCleanupInterval:  time.Hour,
		IdempotencyCleanupBatchSize: 1000,
		KafkaAuditTopic:             kafka.TopicAuditEvents,
		KafkaDLQTopic:               kafka.TopicDeadLetterQueue,
		RateLimitRPS:                30,
		RateLimitBurst:              60,
		LogLevel:                    "info",
	}
}

// envLookup совпадает с сигнатурой os.LookupEnv; в тестах подменяется.
type envLookup func(key string) (string, bool)

// LoadConfig собирает конфигурацию: значения по умолчанию, затем YAML из CATALOG_CONFIG_FILE,
// затем переменные окружения. Некорректные значения env не роняют запуск, а дают предупреждение.
func LoadConfig(lookup envLookup) (Config, []string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := DefaultConfig()

	if path, ok := lookup(envConfigFile); ok && strings.TrimSpace(path) != "" {
		fileCfg, err := readConfigFile(strings.TrimSpace(path), cfg)
		if err != nil {
			return Config{}, nil, err
		}
		cfg = fileCfg
	}

	cfg, warnings := applyEnv(cfg, lookup)
	if err := cfg.Validate(); err != nil {
		return Config{}, warnings, err
	}
	return cfg, warnings, nil
}

// readConfigFile накладывает YAML поверх base; отсутствующие ключи сохраняют значения base.
func readConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// readConfigFromEnv применяет только окружение поверх значений по умолчанию.
func readConfigFromEnv(lookup envLookup) (Config, []string) {
	return applyEnv(DefaultConfig(), lookup)
}

func applyEnv(cfg Config, lookup envLookup) (Config, []string) {
	var warnings []string
	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseBool(v)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	integer := func(key string, dst *int, valid func(int) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseInt(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseDuration(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	str(envSQLitePath, &cfg.SQLitePath)
	boolean(envAutoMigrate, &cfg.AutoMigrate)
	str(envPlatformAccount, &cfg.PlatformAccount)
	str(envEscrowAccount, &cfg.EscrowAccount)
	if v, ok := lookup(envSettlementMode); ok && strings.TrimSpace(v) != "" {
		mode, err := settlement.ParseMode(v)
		if err != nil {
			warn(envSettlementMode, v, err)
		} else {
			cfg.SettlementMode = string(mode)
		}
	}
	duration(envSettlementAsyncTimeout, &cfg.SettlementAsyncTimeout, positiveDuration, "must be > 0")
	integer(envTransferBreakerFailures, &cfg.TransferBreakerFailures, nonNegative, "must be >= 0")
	duration(envTransferBreakerReset, &cfg.TransferBreakerReset, positiveDuration, "must be > 0")
	duration(envTransferCallTimeout, &cfg.TransferCallTimeout, positiveDuration, "must be > 0")
	boolean(envAllowMockIntegrations, &cfg.AllowMockIntegrations)
	if v, ok := lookup(envLedgerSeed); ok && strings.TrimSpace(v) != "" {
		seed, err := parseLedgerSeed(v)
		if err != nil {
			warn(envLedgerSeed, v, err)
		} else {
			cfg.LedgerSeed = seed
		}
	}
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	integer(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0")
	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0")
	integer(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive, "must be > 0")
	if v, ok := lookup(envKafkaBrokers); ok && strings.TrimSpace(v) != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	str(envKafkaAuditTopic, &cfg.KafkaAuditTopic)
	str(envKafkaDLQTopic, &cfg.KafkaDLQTopic)
	str(envKafkaOwnershipTopic, &cfg.KafkaOwnershipTopic)
	if v, ok := lookup(envRateLimitRPS); ok && strings.TrimSpace(v) != "" {
		rps, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || rps < 0 {
			warn(envRateLimitRPS, v, errors.New("must be a number >= 0"))
		} else {
			cfg.RateLimitRPS = rps
		}
	}
	integer(envRateLimitBurst, &cfg.RateLimitBurst, positive, "must be > 0")
	str(envLogLevel, &cfg.LogLevel)

	return cfg, warnings
}

// Validate проверяет сочетания настроек, которые нельзя исправить значениями по умолчанию.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%s is required for postgres storage", envPostgresDSN)
		}
	case StorageDriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%s is required for sqlite storage", envSQLitePath)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if _, err := settlement.ParseMode(c.SettlementMode); err != nil {
		return err
	}
	return nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

// parseLedgerSeed разбирает "alice=1000,bob=50".
func parseLedgerSeed(raw string) (map[string]string, error) {
	seed := make(map[string]string)
	for _, pair := range splitList(raw) {
		account, amount, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(account) == "" || strings.TrimSpace(amount) == "" {
			return nil, fmt.Errorf("entry %q must be account=amount", pair)
		}
		seed[strings.TrimSpace(account)] = strings.TrimSpace(amount)
	}
	return seed, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

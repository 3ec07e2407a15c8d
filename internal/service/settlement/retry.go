package settlement

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

// RetryConfig задаёт повторы компенсирующих шагов (снятие резерва, возврат запаса,
// возврат владельца). Timeout ограничивает весь шаг вместе с повторами; отмена запроса
// на компенсацию не распространяется.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Timeout       time.Duration
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
		Timeout:       5 * time.Second,
	}
}

func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c == (RetryConfig{}) {
		return def
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialDelay < 0 {
		c.InitialDelay = 0
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	if c.BackoffFactor < 1 {
		c.BackoffFactor = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	return c
}

// detached отвязывает компенсацию от отмены запроса, сохраняя значения контекста.
func (c RetryConfig) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.Timeout)
}

// withRetry повторяет fn с экспоненциальной задержкой, пока ошибка временная.
func withRetry(ctx context.Context, cfg RetryConfig, logger *log.Entry, operation string, fn func(context.Context) error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("compensation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		logger.WithError(err).WithFields(log.Fields{
			"operation": operation,
			"attempt":   attempt,
			"delay":     delay,
		}).Warn("compensation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}

// shouldRetry: бизнес-ошибки и отмена контекста не повторяются.
func shouldRetry(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case domain.IsNotFound(err), errors.Is(err, domain.ErrHoldNotFound):
		return false
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrPriceMismatch):
		return false
	case domain.IsValidation(err):
		return false
	case errors.Is(err, ErrCircuitOpen):
		return false
	}
	return true
}

// ErrCircuitOpen возвращается, пока сервис перевода считается недоступным.
var ErrCircuitOpen = errors.New("transfer circuit breaker is open")

// CircuitState — состояние circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker перестаёт пропускать вызовы после maxFailures подряд
// и через resetTimeout пропускает один пробный вызов.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	logger       *log.Entry
	now          func() time.Time

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
	trialActive bool
}

// NewCircuitBreaker создаёт breaker; maxFailures < 1 трактуется как 1.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	if logger == nil {
		logger = log.New().WithField("component", "circuit-breaker")
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		logger:       logger,
		now:          time.Now,
		state:        CircuitClosed,
	}
}

// State возвращает текущее состояние.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// admit решает, пропустить ли вызов; trial=true для единственного пробного вызова.
func (cb *CircuitBreaker) admit(operation string) (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailure) <= cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.trialActive = true
		cb.logger.WithField("operation", operation).Info("circuit breaker half-open")
		return true, nil
	case CircuitHalfOpen:
		if cb.trialActive {
			return false, ErrCircuitOpen
		}
		cb.trialActive = true
		return true, nil
	}
	return false, nil
}

// Execute выполняет fn, если breaker не открыт. Ошибки, для которых countable
// возвращает false, не считаются отказом сервиса.
func (cb *CircuitBreaker) Execute(operation string, fn func() error, countable func(error) bool) error {
	trial, err := cb.admit(operation)
	if err != nil {
		return err
	}

	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if trial {
		cb.trialActive = false
	}

	counted := err != nil && (countable == nil || countable(err))
	switch {
	case counted:
		cb.failures++
		cb.lastFailure = cb.now()
		if trial || cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
			cb.logger.WithFields(log.Fields{
				"operation": operation,
				"failures":  cb.failures,
			}).Warn("circuit breaker opened")
		}
	case err != nil && trial:
		// пробный вызов ничего не сказал о сервисе: следующий вызов пробует снова
	default:
		if trial {
			cb.state = CircuitClosed
			cb.logger.WithField("operation", operation).Info("circuit breaker closed")
		}
		if err == nil {
			cb.failures = 0
		}
	}
	return err
}

// DefaultTransferCallTimeout ограничивает один вызов Reserve или Confirm.
const DefaultTransferCallTimeout = 5 * time.Second

// GuardedTransfers пропускает Reserve и Confirm через CircuitBreaker.
// Release идёт напрямую: компенсация не должна блокироваться.
type GuardedTransfers struct {
	inner       domain.TransferService
	breaker     *CircuitBreaker
	callTimeout time.Duration
}

// NewGuardedTransfers оборачивает сервис перевода; callTimeout <= 0 даёт DefaultTransferCallTimeout.
func NewGuardedTransfers(inner domain.TransferService, breaker *CircuitBreaker, callTimeout time.Duration) *GuardedTransfers {
	if callTimeout <= 0 {
		callTimeout = DefaultTransferCallTimeout
	}
	return &GuardedTransfers{inner: inner, breaker: breaker, callTimeout: callTimeout}
}

func (g *GuardedTransfers) Reserve(ctx context.Context, from, to domain.AccountRef, amount domain.Amount, reference string) (domain.TransferHold, error) {
	var hold domain.TransferHold
	err := g.guard(ctx, "reserve", func(callCtx context.Context) error {
		var reserveErr error
		hold, reserveErr = g.inner.Reserve(callCtx, from, to, amount, reference)
		return reserveErr
	})
	return hold, err
}

func (g *GuardedTransfers) Confirm(ctx context.Context, holdID string) error {
	return g.guard(ctx, "confirm", func(callCtx context.Context) error {
		return g.inner.Confirm(callCtx, holdID)
	})
}

func (g *GuardedTransfers) Release(ctx context.Context, holdID string) error {
	return g.inner.Release(ctx, holdID)
}

// guard выполняет вызов со своим таймаутом. Отмена или дедлайн вызывающего
// не считаются отказом сервиса; истечение callTimeout считается.
func (g *GuardedTransfers) guard(ctx context.Context, operation string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	return g.breaker.Execute(operation, func() error {
		return fn(callCtx)
	}, func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		return isServiceFailure(err)
	})
}

// isServiceFailure отделяет отказ сервиса от отказа по бизнес-причине.
func isServiceFailure(err error) bool {
	return !errors.Is(err, domain.ErrInsufficientFunds) &&
		!errors.Is(err, domain.ErrHoldNotFound) &&
		!domain.IsValidation(err) &&
		!errors.Is(err, context.Canceled)
}

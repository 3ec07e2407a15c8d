// Package settlement проводит расчёты: проверка оплаты, списание запаса, перевод ценности и запись аудита.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/audit"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/metrics"
)

// Dependencies — внешние зависимости движка. Timeline и Metrics опциональны.
type Dependencies struct {
	Products  domain.ProductRepository
	Registry  domain.RegistryRepository
	Transfers domain.TransferService
	Escrow    domain.EscrowService
	Audit     audit.Sink
	Timeline  domain.TimelineRepository
	Metrics   *metrics.SettlementMetrics
}

// Engine выполняет фазы Requested → Validated → SupplyDebited → TransferIssued → Recorded.
type Engine struct {
	products  domain.ProductRepository
	registry  domain.RegistryRepository
	transfers domain.TransferService
	escrow    domain.EscrowService
	sink      audit.Sink
	timeline  domain.TimelineRepository
	metrics   *metrics.SettlementMetrics
	logger    *log.Entry
	cfg       Config

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewEngine проверяет зависимости и создаёт движок.
func NewEngine(deps Dependencies, cfg Config, logger *log.Entry) (*Engine, error) {
	if deps.Products == nil {
		return nil, errors.New("settlement: product repository is required")
	}
	if deps.Transfers == nil {
		return nil, errors.New("settlement: transfer service is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSync
	}
	if cfg.Mode != ModeSync && cfg.Mode != ModeAsync {
		return nil, fmt.Errorf("settlement: unknown mode %q", cfg.Mode)
	}
	if err := cfg.Platform.Validate(); err != nil {
		return nil, fmt.Errorf("settlement: platform account: %w", err)
	}
	if cfg.AsyncTimeout <= 0 {
		cfg.AsyncTimeout = DefaultConfig().AsyncTimeout
	}
	cfg.Retry = cfg.Retry.normalized()
	if logger == nil {
		logger = log.New().WithField("component", "settlement")
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewLogSink(logger)
	}

	return &Engine{
		products:  deps.Products,
		registry:  deps.Registry,
		transfers: deps.Transfers,
		escrow:    deps.Escrow,
		sink:      deps.Audit,
		timeline:  deps.Timeline,
		metrics:   deps.Metrics,
		logger:    logger,
		cfg:       cfg,
	}, nil
}

// Mode возвращает режим перевода.
func (e *Engine) Mode() Mode {
	return e.cfg.Mode
}

// Purchase продаёт одну единицу товара магазина.
// В sync-режиме неудачный перевод возвращает запас и даёт ErrTransferFailed.
func (e *Engine) Purchase(ctx context.Context, req PurchaseRequest) (receipt Receipt, err error) {
	started := time.Now()
	e.recordStarted(kindPurchase)
	defer func() { e.recordFinished(kindPurchase, e.cfg.Mode, started, err) }()

	if req.Channel == "" {
		req.Channel = ChannelDirect
	}
	logger := e.logger.WithFields(log.Fields{
		"product_id": req.ProductID,
		"caller":     req.Caller,
		"channel":    req.Channel,
	})

	if err := validateCaller(req.Caller); err != nil {
		return Receipt{}, err
	}
	if strings.TrimSpace(req.ProductID) == "" {
		return Receipt{}, domain.NewValidationError([]error{domain.ErrProductIDRequired})
	}
	if e.cfg.Mode == ModeAsync && e.isClosed() {
		return Receipt{}, ErrShuttingDown
	}

	// Validated: снимок цены; до списания ничего не меняется.
	var product domain.Product
	err = e.step(domain.SettlementStepValidated, func() error {
		loaded, loadErr := e.products.GetProduct(ctx, req.ProductID)
		if loadErr != nil {
			return loadErr
		}
		if !req.Attached.Equal(loaded.Price) {
			return fmt.Errorf("%w: attached %s, price %s", domain.ErrPriceMismatch, req.Attached, loaded.Price)
		}
		product = loaded
		return nil
	})
	if err != nil {
		logger.WithError(err).Debug("purchase rejected at validation")
		return Receipt{}, err
	}
	price := product.Price

	// SupplyDebited: условное списание по снимку цены.
	var debited domain.Product
	err = e.step(domain.SettlementStepSupplyDebited, func() error {
		var debitErr error
		debited, debitErr = e.products.DebitSupply(ctx, product.ProductID, price)
		return debitErr
	})
	if err != nil {
		logger.WithError(err).Info("списание запаса отклонено")
		return Receipt{}, err
	}
	e.appendTimeline(ctx, domain.AggregateProduct, product.ProductID, EventPurchaseSupplyDebited,
		"remaining="+strconv.FormatUint(debited.TotalSupply, 10))

	reference := "purchase:" + product.ProductID
	receipt = Receipt{
		AggregateType:   domain.AggregateProduct,
		AggregateID:     product.ProductID,
		Seller:          product.Owner,
		Beneficiary:     e.cfg.Platform,
		Price:           price,
		RemainingSupply: debited.TotalSupply,
		Mode:            e.cfg.Mode,
		Channel:         req.Channel,
	}

	// TransferIssued.
	switch e.cfg.Mode {
	case ModeAsync:
		if !e.goAsync(ctx, req.Caller, e.cfg.Platform, price, reference, logger) {
			// Shutdown успел начаться между проверкой и списанием: возвращаем запас.
			e.restoreSupply(ctx, product.ProductID, logger)
			return Receipt{}, ErrShuttingDown
		}
	default:
		var holdID string
		err = e.step(domain.SettlementStepTransferIssued, func() error {
			var transferErr error
			holdID, transferErr = e.transfer(ctx, req.Caller, e.cfg.Platform, price, reference)
			return transferErr
		})
		if err != nil {
			logger.WithError(err).Warn("перевод не выполнен, возвращаем запас")
			e.restoreSupply(ctx, product.ProductID, logger)
			e.appendTimeline(context.WithoutCancel(ctx), domain.AggregateProduct, product.ProductID, EventPurchaseCompensated, err.Error())
			return Receipt{}, fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
		}
		receipt.HoldID = holdID
	}
	e.appendTimeline(ctx, domain.AggregateProduct, product.ProductID, EventPurchaseTransferIssued, string(e.cfg.Mode))

	// Recorded.
	recordStarted := time.Now()
	receipt.Event = audit.NewPurchase(debited, price, req.Memo)
	e.sink.Emit(ctx, domain.AggregateProduct, product.ProductID, receipt.Event)
	e.recordStep(domain.SettlementStepRecorded, recordStarted)
	if e.metrics != nil {
		e.metrics.RecordAuditEvent(string(audit.EventPurchase))
	}
	e.appendTimeline(ctx, domain.AggregateProduct, product.ProductID, EventPurchaseRecorded, req.Memo)

	logger.WithFields(log.Fields{
		"price":     price.String(),
		"remaining": debited.TotalSupply,
		"mode":      e.cfg.Mode,
	}).Info("покупка проведена")
	return receipt, nil
}

// BuyListing переводит запись реестра покупателю. Перевод всегда двухфазный:
// резерв покупатель → продавец, условная смена владельца, подтверждение.
func (e *Engine) BuyListing(ctx context.Context, req BuyListingRequest) (receipt Receipt, err error) {
	started := time.Now()
	e.recordStarted(kindOwnership)
	defer func() { e.recordFinished(kindOwnership, ModeSync, started, err) }()

	if e.registry == nil {
		return Receipt{}, errors.New("settlement: registry is not configured")
	}
	if err := validateCaller(req.Caller); err != nil {
		return Receipt{}, err
	}
	key := strconv.FormatUint(uint64(req.ListingID), 10)
	logger := e.logger.WithFields(log.Fields{
		"listing_id": req.ListingID,
		"caller":     req.Caller,
	})

	var listing domain.Listing
	err = e.step(domain.SettlementStepValidated, func() error {
		loaded, loadErr := e.registry.GetListing(ctx, req.ListingID)
		if loadErr != nil {
			return loadErr
		}
		if !req.Attached.Equal(loaded.Price) {
			return fmt.Errorf("%w: attached %s, price %s", domain.ErrPriceMismatch, req.Attached, loaded.Price)
		}
		if loaded.Owner == req.Caller {
			return domain.ErrAlreadyOwner
		}
		if escrowErr := e.checkEscrow(ctx, loaded.Price); escrowErr != nil {
			return escrowErr
		}
		listing = loaded
		return nil
	})
	if err != nil {
		logger.WithError(err).Debug("buy listing rejected at validation")
		return Receipt{}, err
	}
	seller := listing.Owner
	price := listing.Price
	reference := "listing:" + key

	var hold domain.TransferHold
	err = e.step(domain.SettlementStepTransferIssued, func() error {
		var reserveErr error
		hold, reserveErr = e.transfers.Reserve(ctx, req.Caller, seller, price, reference)
		return reserveErr
	})
	if err != nil {
		logger.WithError(err).Warn("резерв перевода не выполнен")
		return Receipt{}, fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
	}

	var transferred domain.Listing
	err = e.step(domain.SettlementStepOwnerChanged, func() error {
		var swapErr error
		transferred, swapErr = e.registry.TransferListing(ctx, req.ListingID, seller, req.Caller, price)
		return swapErr
	})
	if err != nil {
		// Владелец или цена сменились после проверки: снимаем резерв.
		e.releaseHold(ctx, hold.ID, logger)
		if errors.Is(err, domain.ErrUnauthorized) {
			err = fmt.Errorf("%w: listing changed owner during settlement", domain.ErrPriceMismatch)
		}
		logger.WithError(err).Info("смена владельца отклонена")
		return Receipt{}, err
	}
	e.appendTimeline(ctx, domain.AggregateListing, key, EventListingOwnerChanged, string(seller)+"->"+string(req.Caller))

	if confirmErr := e.transfers.Confirm(ctx, hold.ID); confirmErr != nil {
		logger.WithError(confirmErr).Warn("подтверждение перевода не выполнено, возвращаем владельца")
		if e.revertListing(ctx, req.ListingID, req.Caller, seller, price, logger) {
			e.releaseHold(ctx, hold.ID, logger)
		}
		e.appendTimeline(context.WithoutCancel(ctx), domain.AggregateListing, key, EventListingSaleReverted, confirmErr.Error())
		return Receipt{}, fmt.Errorf("%w: %w", domain.ErrTransferFailed, confirmErr)
	}

	recordStarted := time.Now()
	event := audit.NewOwnershipTransfer(seller, transferred, req.Memo)
	e.sink.Emit(ctx, domain.AggregateListing, key, event)
	e.recordStep(domain.SettlementStepRecorded, recordStarted)
	if e.metrics != nil {
		e.metrics.RecordAuditEvent(string(audit.EventOwnershipTransfer))
	}
	e.appendTimeline(ctx, domain.AggregateListing, key, EventListingSold, req.Memo)

	logger.WithFields(log.Fields{
		"seller": seller,
		"price":  price.String(),
	}).Info("запись реестра продана")

	return Receipt{
		AggregateType: domain.AggregateListing,
		AggregateID:   key,
		Seller:        seller,
		Beneficiary:   seller,
		Price:         price,
		HoldID:        hold.ID,
		Mode:          ModeSync,
		Channel:       ChannelDirect,
		Event:         event,
	}, nil
}

// Shutdown запрещает новые async-переводы и ждёт завершения уже запущенных.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("settlement shutdown: %w", ctx.Err())
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// transfer выполняет Reserve + Confirm; при ошибке Confirm снимает резерв.
func (e *Engine) transfer(ctx context.Context, from, to domain.AccountRef, amount domain.Amount, reference string) (string, error) {
	hold, err := e.transfers.Reserve(ctx, from, to, amount, reference)
	if err != nil {
		return "", fmt.Errorf("reserve: %w", err)
	}
	if err := e.transfers.Confirm(ctx, hold.ID); err != nil {
		e.releaseHold(ctx, hold.ID, e.logger.WithField("reference", reference))
		return "", fmt.Errorf("confirm: %w", err)
	}
	return hold.ID, nil
}

// goAsync запускает перевод в фоне. false, если движок уже останавливается.
func (e *Engine) goAsync(ctx context.Context, from, to domain.AccountRef, amount domain.Amount, reference string, logger *log.Entry) bool {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false
	}
	e.inflight.Add(1)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordAsyncTransferStarted()
	}
	background := context.WithoutCancel(ctx)

	go func() {
		defer e.inflight.Done()
		transferCtx, cancel := context.WithTimeout(background, e.cfg.AsyncTimeout)
		defer cancel()

		started := time.Now()
		_, err := e.transfer(transferCtx, from, to, amount, reference)
		e.recordStep(domain.SettlementStepTransferIssued, started)
		if e.metrics != nil {
			e.metrics.RecordAsyncTransferFinished(err != nil)
		}
		if err != nil {
			logger.WithError(err).Error("фоновый перевод не выполнен, списание не откатывается")
			return
		}
		logger.Debug("async transfer confirmed")
	}()
	return true
}

func (e *Engine) checkEscrow(ctx context.Context, price domain.Amount) error {
	if e.escrow == nil {
		return fmt.Errorf("%w: escrow is not configured", domain.ErrInsufficientEscrow)
	}
	balance, err := e.escrow.EscrowBalance(ctx)
	if err != nil {
		return fmt.Errorf("escrow balance: %w", err)
	}
	if balance.Cmp(price) < 0 {
		return fmt.Errorf("%w: balance %s, price %s", domain.ErrInsufficientEscrow, balance, price)
	}
	return nil
}

func (e *Engine) restoreSupply(ctx context.Context, productID string, logger *log.Entry) {
	e.compensate()
	started := time.Now()
	ctx, cancel := e.cfg.Retry.detached(ctx)
	defer cancel()
	err := withRetry(ctx, e.cfg.Retry, logger, "restore_supply", func(ctx context.Context) error {
		_, restoreErr := e.products.RestoreSupply(ctx, productID)
		return restoreErr
	})
	if err != nil {
		logger.WithError(err).Error("failed to restore supply")
	}
	e.recordStep(domain.SettlementStepCompensated, started)
}

func (e *Engine) releaseHold(ctx context.Context, holdID string, logger *log.Entry) {
	ctx, cancel := e.cfg.Retry.detached(ctx)
	defer cancel()
	err := withRetry(ctx, e.cfg.Retry, logger, "release_hold", func(ctx context.Context) error {
		return e.transfers.Release(ctx, holdID)
	})
	if err != nil {
		logger.WithError(err).WithField("hold_id", holdID).Warn("release hold failed")
	}
}

// revertListing возвращает запись прежнему владельцу. Если вернуть не удалось,
// резерв покупателя не снимается: запись и средства остаются для сверки.
func (e *Engine) revertListing(ctx context.Context, id uint32, buyer, seller domain.AccountRef, price domain.Amount, logger *log.Entry) bool {
	e.compensate()
	started := time.Now()
	ctx, cancel := e.cfg.Retry.detached(ctx)
	defer cancel()
	err := withRetry(ctx, e.cfg.Retry, logger, "revert_owner", func(ctx context.Context) error {
		_, revertErr := e.registry.TransferListing(ctx, id, buyer, seller, price)
		return revertErr
	})
	e.recordStep(domain.SettlementStepCompensated, started)
	if err != nil {
		logger.WithError(err).Error("failed to revert listing owner, hold kept for reconciliation")
		return false
	}
	return true
}

func (e *Engine) compensate() {
	if e.metrics != nil {
		e.metrics.RecordCompensation()
	}
}

// step выполняет фазу и пишет её длительность.
func (e *Engine) step(name domain.SettlementStep, fn func() error) error {
	started := time.Now()
	err := fn()
	e.recordStep(name, started)
	return err
}

func (e *Engine) recordStep(name domain.SettlementStep, started time.Time) {
	if e.metrics != nil {
		e.metrics.RecordStepDuration(string(name), time.Since(started))
	}
}

func (e *Engine) recordStarted(kind string) {
	if e.metrics != nil {
		e.metrics.RecordSettlementStarted(kind)
	}
}

func (e *Engine) recordFinished(kind string, mode Mode, started time.Time, err error) {
	if e.metrics == nil {
		return
	}
	if err != nil {
		e.metrics.RecordSettlementFailed(kind, failureReason(err))
	} else {
		e.metrics.RecordSettlementCompleted(kind, string(mode))
	}
	e.metrics.RecordSettlementFinished(kind, time.Since(started))
}

func (e *Engine) appendTimeline(ctx context.Context, aggregateType, aggregateID, eventType, reason string) {
	if e.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Reason:        reason,
		Occurred:      time.Now().UTC(),
	}
	if err := e.timeline.Append(ctx, event); err != nil {
		e.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Warn("append timeline event failed")
		return
	}
	if e.metrics != nil {
		e.metrics.RecordTimelineEvent()
	}
}

func validateCaller(caller domain.AccountRef) error {
	if caller == "" {
		return domain.ErrCallerRequired
	}
	if err := caller.Validate(); err != nil {
		return domain.NewValidationError([]error{err})
	}
	return nil
}

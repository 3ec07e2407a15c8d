// Package catalog реализует операции создания, чтения и изменения магазинов, товаров и записей реестра.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/metrics"
)

// Типы событий timeline каталога.
const (
	EventShopCreated         = "ShopCreated"
	EventProductCreated      = "ProductCreated"
	EventProductPriceUpdated = "ProductPriceUpdated"
	EventListingCreated      = "ListingCreated"
	EventListingPriceUpdated = "ListingPriceUpdated"
	EventListingDeleted      = "ListingDeleted"
)

// Service — фасад над хранилищем каталога с валидацией и timeline.
type Service struct {
	catalog  domain.CatalogRepository
	registry domain.RegistryRepository
	timeline domain.TimelineRepository
	metrics  *metrics.SettlementMetrics
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис каталога. timeline и metrics опциональны.
func NewService(
	catalog domain.CatalogRepository,
	registry domain.RegistryRepository,
	timeline domain.TimelineRepository,
	m *metrics.SettlementMetrics,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{
		catalog:  catalog,
		registry: registry,
		timeline: timeline,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateShop создаёт магазин вызывающего.
func (s *Service) CreateShop(ctx context.Context, caller domain.AccountRef, name, desc string) (domain.Shop, error) {
	shop := domain.Shop{Owner: caller, Name: name, Description: desc}
	if err := domain.NewValidationError(shop.Validate()); err != nil {
		return domain.Shop{}, err
	}

	created, err := s.catalog.CreateShop(ctx, shop)
	s.recordMutation("create_shop", err)
	if err != nil {
		return domain.Shop{}, err
	}

	s.logger.WithFields(log.Fields{
		"owner": caller,
		"seq":   created.Seq,
	}).Info("магазин создан")
	s.appendTimeline(ctx, domain.AggregateShop, caller.String(), EventShopCreated, name)
	return created, nil
}

// GetShop возвращает магазин владельца.
func (s *Service) GetShop(ctx context.Context, owner domain.AccountRef) (domain.Shop, error) {
	return s.catalog.GetShop(ctx, owner)
}

// ListShops возвращает магазины в порядке создания.
func (s *Service) ListShops(ctx context.Context) ([]domain.Shop, error) {
	return s.catalog.ListShops(ctx)
}

// CreateProduct добавляет товар в магазин вызывающего.
// Без магазина операция запрещена: ErrUnauthorized.
func (s *Service) CreateProduct(
	ctx context.Context,
	caller domain.AccountRef,
	productID, name string,
	totalSupply uint64,
	price domain.Amount,
	desc string,
) (domain.Product, error) {
	product := domain.Product{
		ProductID:   productID,
		Name:        name,
		TotalSupply: totalSupply,
		Price:       price,
		Description: desc,
		Owner:       caller,
	}
	if err := domain.NewValidationError(product.Validate()); err != nil {
		return domain.Product{}, err
	}

	created, err := s.catalog.CreateProduct(ctx, product)
	s.recordMutation("create_product", err)
	if err != nil {
		if errors.Is(err, domain.ErrShopNotFound) {
			return domain.Product{}, fmt.Errorf("%w: caller has no shop", domain.ErrUnauthorized)
		}
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"owner":      caller,
		"product_id": created.ProductID,
		"seq":        created.Seq,
	}).Info("товар создан")
	s.appendTimeline(ctx, domain.AggregateProduct, created.ProductID, EventProductCreated, "")
	return created, nil
}

func (s *Service) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	return s.catalog.GetProduct(ctx, productID)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.catalog.ListProducts(ctx)
}

func (s *Service) ListProductsByOwner(ctx context.Context, owner domain.AccountRef) ([]domain.Product, error) {
	return s.catalog.ListProductsByOwner(ctx, owner)
}

// UpdatePrice меняет цену товара; разрешено только владельцу.
func (s *Service) UpdatePrice(ctx context.Context, caller domain.AccountRef, productID string, price domain.Amount) (domain.Product, error) {
	if err := caller.Validate(); err != nil {
		return domain.Product{}, domain.NewValidationError([]error{err})
	}

	updated, err := s.catalog.UpdatePrice(ctx, caller, productID, price)
	s.recordMutation("update_product_price", err)
	if err != nil {
		return domain.Product{}, err
	}
	s.appendTimeline(ctx, domain.AggregateProduct, productID, EventProductPriceUpdated, "price="+price.String())
	return updated, nil
}

// CreateListing добавляет запись в плоский реестр.
func (s *Service) CreateListing(ctx context.Context, caller domain.AccountRef, name string, price domain.Amount, desc, image string) (domain.Listing, error) {
	listing := domain.Listing{
		Owner:       caller,
		Name:        name,
		Price:       price,
		Description: desc,
		Image:       image,
	}
	if err := domain.NewValidationError(listing.Validate()); err != nil {
		return domain.Listing{}, err
	}

	created, err := s.registry.CreateListing(ctx, listing)
	s.recordMutation("create_listing", err)
	if err != nil {
		return domain.Listing{}, err
	}

	s.logger.WithFields(log.Fields{
		"owner":      caller,
		"listing_id": created.ID,
	}).Info("запись реестра создана")
	s.appendTimeline(ctx, domain.AggregateListing, ListingKey(created.ID), EventListingCreated, "")
	return created, nil
}

func (s *Service) GetListing(ctx context.Context, id uint32) (domain.Listing, error) {
	return s.registry.GetListing(ctx, id)
}

func (s *Service) ListListings(ctx context.Context) ([]domain.Listing, error) {
	return s.registry.ListListings(ctx)
}

func (s *Service) ListListingsByOwner(ctx context.Context, owner domain.AccountRef) ([]domain.Listing, error) {
	return s.registry.ListListingsByOwner(ctx, owner)
}

// UpdateListingPrice меняет цену записи реестра; разрешено только владельцу.
func (s *Service) UpdateListingPrice(ctx context.Context, caller domain.AccountRef, id uint32, price domain.Amount) (domain.Listing, error) {
	if err := caller.Validate(); err != nil {
		return domain.Listing{}, domain.NewValidationError([]error{err})
	}

	updated, err := s.registry.UpdateListingPrice(ctx, caller, id, price)
	s.recordMutation("update_listing_price", err)
	if err != nil {
		return domain.Listing{}, err
	}
	s.appendTimeline(ctx, domain.AggregateListing, ListingKey(id), EventListingPriceUpdated, "price="+price.String())
	return updated, nil
}

// DeleteListing удаляет запись реестра вместе с членством в индексах.
func (s *Service) DeleteListing(ctx context.Context, caller domain.AccountRef, id uint32) error {
	if err := caller.Validate(); err != nil {
		return domain.NewValidationError([]error{err})
	}

	err := s.registry.DeleteListing(ctx, caller, id)
	s.recordMutation("delete_listing", err)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"caller":     caller,
			"listing_id": id,
		}).Warn("delete listing rejected")
		return err
	}
	s.appendTimeline(ctx, domain.AggregateListing, ListingKey(id), EventListingDeleted, "")
	return nil
}

// History возвращает timeline агрегата.
func (s *Service) History(ctx context.Context, aggregateType, aggregateID string) ([]domain.TimelineEvent, error) {
	if s.timeline == nil {
		return nil, nil
	}
	return s.timeline.List(ctx, aggregateType, aggregateID)
}

func (s *Service) appendTimeline(ctx context.Context, aggregateType, aggregateID, eventType, reason string) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Reason:        reason,
		Occurred:      s.now(),
	}
	if err := s.timeline.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"aggregate_id": aggregateID,
			"event":        eventType,
		}).Warn("append timeline event failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}
}

func (s *Service) recordMutation(operation string, err error) {
	if s.metrics != nil {
		s.metrics.RecordCatalogMutation(operation, err)
	}
}

// ListingKey форматирует идентификатор записи реестра для timeline и outbox.
func ListingKey(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Package grpcsvc реализует gRPC API каталога поверх сервиса каталога и движка расчётов.
package grpcsvc

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	catalogv1 "github.com/vladislavdragonenkov/catalog/api/catalogv1"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/service/catalog"
	"github.com/vladislavdragonenkov/catalog/internal/service/settlement"
)

// CatalogService реализует catalogv1.CatalogServiceServer.
type CatalogService struct {
	catalogv1.UnimplementedCatalogServiceServer

	catalog  *catalog.Service
	engine   *settlement.Engine
	idemRepo domain.IdempotencyRepository
	funder   domain.AccountFunder
	logger   *log.Entry
	now      func() time.Time
}

// Option настраивает CatalogService.
type Option func(*CatalogService)

// WithIdempotency включает кеширование ответов расчётных RPC по idempotency-key.
func WithIdempotency(repo domain.IdempotencyRepository) Option {
	return func(s *CatalogService) {
		s.idemRepo = repo
	}
}

// WithFunder включает RPC Deposit; используется только с тестовым ledger.
func WithFunder(funder domain.AccountFunder) Option {
	return func(s *CatalogService) {
		s.funder = funder
	}
}

// NewCatalogService конструирует сервис с зависимостями.
func NewCatalogService(catalogSvc *catalog.Service, engine *settlement.Engine, logger *log.Entry, opts ...Option) *CatalogService {
	if logger == nil {
		logger = log.New().WithField("component", "grpc")
	}
	s := &CatalogService{
		catalog: catalogSvc,
		engine:  engine,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func callerOf(ctx context.Context) (domain.AccountRef, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "x-caller-id metadata is required")
	}
	return caller, nil
}

func parseOwner(raw string) (domain.AccountRef, error) {
	owner, err := domain.ParseAccount(raw)
	if err != nil {
		return "", status.Errorf(codes.InvalidArgument, "owner: %v", err)
	}
	return owner, nil
}

// CreateShop создаёт магазин вызывающего.
func (s *CatalogService) CreateShop(ctx context.Context, req *catalogv1.CreateShopRequest) (*catalogv1.ShopResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	shop, err := s.catalog.CreateShop(ctx, caller, req.Name, req.Desc)
	if err != nil {
		return nil, s.mapDomainError(ctx, "CreateShop", err)
	}
	return &catalogv1.ShopResponse{Shop: toAPIShop(shop)}, nil
}

// GetShop возвращает магазин владельца.
func (s *CatalogService) GetShop(ctx context.Context, req *catalogv1.GetShopRequest) (*catalogv1.ShopResponse, error) {
	owner, err := parseOwner(req.Owner)
	if err != nil {
		return nil, err
	}
	shop, err := s.catalog.GetShop(ctx, owner)
	if err != nil {
		return nil, s.mapDomainError(ctx, "GetShop", err)
	}
	return &catalogv1.ShopResponse{Shop: toAPIShop(shop)}, nil
}

// ListShops перечисляет магазины в порядке создания.
func (s *CatalogService) ListShops(ctx context.Context, _ *catalogv1.ListShopsRequest) (*catalogv1.ListShopsResponse, error) {
	shops, err := s.catalog.ListShops(ctx)
	if err != nil {
		return nil, s.mapDomainError(ctx, "ListShops", err)
	}
	return &catalogv1.ListShopsResponse{Shops: toAPIShops(shops)}, nil
}

// CreateProduct добавляет товар в магазин вызывающего.
func (s *CatalogService) CreateProduct(ctx context.Context, req *catalogv1.CreateProductRequest) (*catalogv1.ProductResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		return nil, s.mapDomainError(ctx, "CreateProduct", err)
	}
	product, err := s.catalog.CreateProduct(ctx, caller, req.ProductID, req.Name, req.TotalSupply, price, req.Desc)
	if err != nil {
		return nil, s.mapDomainError(ctx, "CreateProduct", err)
	}
	return &catalogv1.ProductResponse{Product: toAPIProduct(product)}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, req *catalogv1.GetProductRequest) (*catalogv1.ProductResponse, error) {
	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, s.mapDomainError(ctx, "GetProduct", err)
	}
	return &catalogv1.ProductResponse{Product: toAPIProduct(product)}, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, _ *catalogv1.ListProductsRequest) (*catalogv1.ListProductsResponse, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, s.mapDomainError(ctx, "ListProducts", err)
	}
	return &catalogv1.ListProductsResponse{Products: toAPIProducts(products)}, nil
}

func (s *CatalogService) ListProductsByOwner(ctx context.Context, req *catalogv1.ListProductsByOwnerRequest) (*catalogv1.ListProductsResponse, error) {
	owner, err := parseOwner(req.Owner)
	if err != nil {
		return nil, err
	}
	products, err := s.catalog.ListProductsByOwner(ctx, owner)
	if err != nil {
		return nil, s.mapDomainError(ctx, "ListProductsByOwner", err)
	}
	return &catalogv1.ListProductsResponse{Products: toAPIProducts(products)}, nil
}

// UpdatePrice меняет цену товара; только владелец.
func (s *CatalogService) UpdatePrice(ctx context.Context, req *catalogv1.UpdatePriceRequest) (*catalogv1.ProductResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		return nil, s.mapDomainError(ctx, "UpdatePrice", err)
	}
	product, err := s.catalog.UpdatePrice(ctx, caller, req.ProductID, price)
	if err != nil {
		return nil, s.mapDomainError(ctx, "UpdatePrice", err)
	}
	return &catalogv1.ProductResponse{Product: toAPIProduct(product)}, nil
}

// CreateListing добавляет запись в реестр от имени вызывающего.
func (s *CatalogService) CreateListing(ctx context.Context, req *catalogv1.CreateListingRequest) (*catalogv1.ListingResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		return nil, s.mapDomainError(ctx, "CreateListing", err)
	}
	listing, err := s.catalog.CreateListing(ctx, caller, req.Name, price, req.Desc, req.Image)
	if err != nil {
		return nil, s.mapDomainError(ctx, "CreateListing", err)
	}
	return &catalogv1.ListingResponse{Listing: toAPIListing(listing)}, nil
}

func (s *CatalogService) GetListing(ctx context.Context, req *catalogv1.GetListingRequest) (*catalogv1.ListingResponse, error) {
	listing, err := s.catalog.GetListing(ctx, req.ID)
	if err != nil {
		return nil, s.mapDomainError(ctx, "GetListing", err)
	}
	return &catalogv1.ListingResponse{Listing: toAPIListing(listing)}, nil
}

func (s *CatalogService) ListListings(ctx context.Context, _ *catalogv1.ListListingsRequest) (*catalogv1.ListListingsResponse, error) {
	listings, err := s.catalog.ListListings(ctx)
	if err != nil {
		return nil, s.mapDomainError(ctx, "ListListings", err)
	}
	return &catalogv1.ListListingsResponse{Listings: toAPIListings(listings)}, nil
}

func (s *CatalogService) ListListingsByOwner(ctx context.Context, req *catalogv1.ListListingsByOwnerRequest) (*catalogv1.ListListingsResponse, error) {
	owner, err := parseOwner(req.Owner)
	if err != nil {
		return nil, err
	}
	listings, err := s.catalog.ListListingsByOwner(ctx, owner)
	if err != nil {
		return nil, s.mapDomainError(ctx, "ListListingsByOwner", err)
	}
	return &catalogv1.ListListingsResponse{Listings: toAPIListings(listings)}, nil
}

func (s *CatalogService) UpdateListingPrice(ctx context.Context, req *catalogv1.UpdateListingPriceRequest) (*catalogv1.ListingResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	price, err := domain.ParseAmount(req.Price)
	if err != nil {
		return nil, s.mapDomainError(ctx, "UpdateListingPrice", err)
	}
	listing, err := s.catalog.UpdateListingPrice(ctx, caller, req.ID, price)
	if err != nil {
		return nil, s.mapDomainError(ctx, "UpdateListingPrice", err)
	}
	return &catalogv1.ListingResponse{Listing: toAPIListing(listing)}, nil
}

// DeleteListing удаляет запись реестра; только владелец.
func (s *CatalogService) DeleteListing(ctx context.Context, req *catalogv1.DeleteListingRequest) (*catalogv1.DeleteListingResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.catalog.DeleteListing(ctx, caller, req.ID); err != nil {
		return nil, s.mapDomainError(ctx, "DeleteListing", err)
	}
	return &catalogv1.DeleteListingResponse{ID: req.ID}, nil
}

// Purchase покупает единицу товара магазина за приложенную сумму.
func (s *CatalogService) Purchase(ctx context.Context, req *catalogv1.PurchaseRequest) (*catalogv1.SettlementResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	return withIdempotency(
		s,
		ctx,
		catalogv1.CatalogService_Purchase_FullMethodName,
		req,
		func() *catalogv1.SettlementResponse { return &catalogv1.SettlementResponse{} },
		func(ctx context.Context) (*catalogv1.SettlementResponse, error) {
			attached, err := domain.ParseAmount(req.Attached)
			if err != nil {
				return nil, s.mapDomainError(ctx, "Purchase", err)
			}
			receipt, err := s.engine.Purchase(ctx, settlement.PurchaseRequest{
				Caller:    caller,
				ProductID: req.ProductID,
				Attached:  attached,
				Memo:      req.Memo,
				Channel:   settlement.ChannelDirect,
			})
			if err != nil {
				return nil, s.mapDomainError(ctx, "Purchase", err)
			}
			return &catalogv1.SettlementResponse{Receipt: toAPIReceipt(receipt)}, nil
		},
	)
}

// BuyListing перекупает запись реестра у текущего владельца.
func (s *CatalogService) BuyListing(ctx context.Context, req *catalogv1.BuyListingRequest) (*catalogv1.SettlementResponse, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	return withIdempotency(
		s,
		ctx,
		catalogv1.CatalogService_BuyListing_FullMethodName,
		req,
		func() *catalogv1.SettlementResponse { return &catalogv1.SettlementResponse{} },
		func(ctx context.Context) (*catalogv1.SettlementResponse, error) {
			attached, err := domain.ParseAmount(req.Attached)
			if err != nil {
				return nil, s.mapDomainError(ctx, "BuyListing", err)
			}
			receipt, err := s.engine.BuyListing(ctx, settlement.BuyListingRequest{
				Caller:    caller,
				ListingID: req.ListingID,
				Attached:  attached,
				Memo:      req.Memo,
			})
			if err != nil {
				return nil, s.mapDomainError(ctx, "BuyListing", err)
			}
			return &catalogv1.SettlementResponse{Receipt: toAPIReceipt(receipt)}, nil
		},
	)
}

// OnTokenTransfer принимает уведомление токен-контракта; вызывающий — сам контракт,
// плательщиком считается sender.
func (s *CatalogService) OnTokenTransfer(ctx context.Context, req *catalogv1.OnTokenTransferRequest) (*catalogv1.SettlementResponse, error) {
	tokenContract, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	return withIdempotency(
		s,
		ctx,
		catalogv1.CatalogService_OnTokenTransfer_FullMethodName,
		req,
		func() *catalogv1.SettlementResponse { return &catalogv1.SettlementResponse{} },
		func(ctx context.Context) (*catalogv1.SettlementResponse, error) {
			sender, err := domain.ParseAccount(req.Sender)
			if err != nil {
				return nil, s.mapDomainError(ctx, "OnTokenTransfer", err)
			}
			amount, err := domain.ParseAmount(req.Amount)
			if err != nil {
				return nil, s.mapDomainError(ctx, "OnTokenTransfer", err)
			}
			s.logger.WithFields(log.Fields{
				"token_contract": tokenContract,
				"sender":         sender,
				"product_id":     req.ProductID,
			}).Debug("token transfer notification")

			receipt, err := s.engine.OnTokenTransfer(ctx, settlement.TokenTransfer{
				Sender:    sender,
				Amount:    amount,
				Msg:       req.Msg,
				ProductID: req.ProductID,
			})
			if err != nil {
				return nil, s.mapDomainError(ctx, "OnTokenTransfer", err)
			}
			return &catalogv1.SettlementResponse{Receipt: toAPIReceipt(receipt)}, nil
		},
	)
}

// Deposit пополняет счёт в тестовом ledger.
func (s *CatalogService) Deposit(ctx context.Context, req *catalogv1.DepositRequest) (*catalogv1.DepositResponse, error) {
	if s.funder == nil {
		return nil, status.Error(codes.Unimplemented, "deposits are disabled")
	}
	if _, err := callerOf(ctx); err != nil {
		return nil, err
	}
	account, err := domain.ParseAccount(req.Account)
	if err != nil {
		return nil, s.mapDomainError(ctx, "Deposit", err)
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return nil, s.mapDomainError(ctx, "Deposit", err)
	}
	balance, err := s.funder.Credit(ctx, account, amount)
	if err != nil {
		return nil, s.mapDomainError(ctx, "Deposit", err)
	}
	s.logger.WithFields(log.Fields{"account": account, "amount": amount.String()}).Info("счёт пополнен")
	return &catalogv1.DepositResponse{Account: account.String(), Balance: balance.String()}, nil
}

// GetHistory возвращает timeline магазина, товара или записи реестра.
func (s *CatalogService) GetHistory(ctx context.Context, req *catalogv1.GetHistoryRequest) (*catalogv1.GetHistoryResponse, error) {
	switch req.AggregateType {
	case domain.AggregateShop, domain.AggregateProduct, domain.AggregateListing:
	default:
		return nil, status.Errorf(codes.InvalidArgument, "aggregate_type must be one of shop, product, listing")
	}
	if req.AggregateID == "" {
		return nil, status.Error(codes.InvalidArgument, "aggregate_id is required")
	}
	events, err := s.catalog.History(ctx, req.AggregateType, req.AggregateID)
	if err != nil {
		return nil, s.mapDomainError(ctx, "GetHistory", err)
	}
	return &catalogv1.GetHistoryResponse{Events: toAPITimeline(events)}, nil
}

// Shutdown останавливает приём фоновых переводов движка и ждёт завершения начатых.
func (s *CatalogService) Shutdown(ctx context.Context) error {
	if s.engine == nil {
		return nil
	}
	return s.engine.Shutdown(ctx)
}

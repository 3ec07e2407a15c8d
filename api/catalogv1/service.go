package catalogv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName — полное имя gRPC-сервиса каталога.
const ServiceName = "catalog.v1.CatalogService"

const (
	CatalogService_CreateShop_FullMethodName          = "/catalog.v1.CatalogService/CreateShop"
	CatalogService_GetShop_FullMethodName             = "/catalog.v1.CatalogService/GetShop"
	CatalogService_ListShops_FullMethodName           = "/catalog.v1.CatalogService/ListShops"
	CatalogService_CreateProduct_FullMethodName       = "/catalog.v1.CatalogService/CreateProduct"
	CatalogService_GetProduct_FullMethodName          = "/catalog.v1.CatalogService/GetProduct"
	CatalogService_ListProducts_FullMethodName        = "/catalog.v1.CatalogService/ListProducts"
	CatalogService_ListProductsByOwner_FullMethodName = "/catalog.v1.CatalogService/ListProductsByOwner"
	CatalogService_UpdatePrice_FullMethodName         = "/catalog.v1.CatalogService/UpdatePrice"
	CatalogService_CreateListing_FullMethodName       = "/catalog.v1.CatalogService/CreateListing"
	CatalogService_GetListing_FullMethodName          = "/catalog.v1.CatalogService/GetListing"
	CatalogService_ListListings_FullMethodName        = "/catalog.v1.CatalogService/ListListings"
	CatalogService_ListListingsByOwner_FullMethodName = "/catalog.v1.CatalogService/ListListingsByOwner"
	CatalogService_UpdateListingPrice_FullMethodName  = "/catalog.v1.CatalogService/UpdateListingPrice"
	CatalogService_DeleteListing_FullMethodName       = "/catalog.v1.CatalogService/DeleteListing"
	CatalogService_Purchase_FullMethodName            = "/catalog.v1.CatalogService/Purchase"
	CatalogService_BuyListing_FullMethodName          = "/catalog.v1.CatalogService/BuyListing"
	CatalogService_OnTokenTransfer_FullMethodName     = "/catalog.v1.CatalogService/OnTokenTransfer"
	CatalogService_Deposit_FullMethodName             = "/catalog.v1.CatalogService/Deposit"
	CatalogService_GetHistory_FullMethodName          = "/catalog.v1.CatalogService/GetHistory"
)

// CatalogServiceServer — серверная сторона API каталога.
type CatalogServiceServer interface {
	CreateShop(context.Context, *CreateShopRequest) (*ShopResponse, error)
	GetShop(context.Context, *GetShopRequest) (*ShopResponse, error)
	ListShops(context.Context, *ListShopsRequest) (*ListShopsResponse, error)
	CreateProduct(context.Context, *CreateProductRequest) (*ProductResponse, error)
	GetProduct(context.Context, *GetProductRequest) (*ProductResponse, error)
	ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error)
	ListProductsByOwner(context.Context, *ListProductsByOwnerRequest) (*ListProductsResponse, error)
	UpdatePrice(context.Context, *UpdatePriceRequest) (*ProductResponse, error)
	CreateListing(context.Context, *CreateListingRequest) (*ListingResponse, error)
	GetListing(context.Context, *GetListingRequest) (*ListingResponse, error)
	ListListings(context.Context, *ListListingsRequest) (*ListListingsResponse, error)
	ListListingsByOwner(context.Context, *ListListingsByOwnerRequest) (*ListListingsResponse, error)
	UpdateListingPrice(context.Context, *UpdateListingPriceRequest) (*ListingResponse, error)
	DeleteListing(context.Context, *DeleteListingRequest) (*DeleteListingResponse, error)
	Purchase(context.Context, *PurchaseRequest) (*SettlementResponse, error)
	BuyListing(context.Context, *BuyListingRequest) (*SettlementResponse, error)
	OnTokenTransfer(context.Context, *OnTokenTransferRequest) (*SettlementResponse, error)
	Deposit(context.Context, *DepositRequest) (*DepositResponse, error)
	GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error)
	mustEmbedUnimplementedCatalogServiceServer()
}

// UnimplementedCatalogServiceServer отвечает Unimplemented на все методы; встраивается по значению.
type UnimplementedCatalogServiceServer struct{}

func (UnimplementedCatalogServiceServer) CreateShop(context.Context, *CreateShopRequest) (*ShopResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateShop not implemented")
}

func (UnimplementedCatalogServiceServer) GetShop(context.Context, *GetShopRequest) (*ShopResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetShop not implemented")
}

func (UnimplementedCatalogServiceServer) ListShops(context.Context, *ListShopsRequest) (*ListShopsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListShops not implemented")
}

func (UnimplementedCatalogServiceServer) CreateProduct(context.Context, *CreateProductRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateProduct not implemented")
}

func (UnimplementedCatalogServiceServer) GetProduct(context.Context, *GetProductRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetProduct not implemented")
}

func (UnimplementedCatalogServiceServer) ListProducts(context.Context, *ListProductsRequest) (*ListProductsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListProducts not implemented")
}

func (UnimplementedCatalogServiceServer) ListProductsByOwner(context.Context, *ListProductsByOwnerRequest) (*ListProductsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListProductsByOwner not implemented")
}

func (UnimplementedCatalogServiceServer) UpdatePrice(context.Context, *UpdatePriceRequest) (*ProductResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdatePrice not implemented")
}

func (UnimplementedCatalogServiceServer) CreateListing(context.Context, *CreateListingRequest) (*ListingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateListing not implemented")
}

func (UnimplementedCatalogServiceServer) GetListing(context.Context, *GetListingRequest) (*ListingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetListing not implemented")
}

func (UnimplementedCatalogServiceServer) ListListings(context.Context, *ListListingsRequest) (*ListListingsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListListings not implemented")
}

func (UnimplementedCatalogServiceServer) ListListingsByOwner(context.Context, *ListListingsByOwnerRequest) (*ListListingsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListListingsByOwner not implemented")
}

func (UnimplementedCatalogServiceServer) UpdateListingPrice(context.Context, *UpdateListingPriceRequest) (*ListingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateListingPrice not implemented")
}

func (UnimplementedCatalogServiceServer) DeleteListing(context.Context, *DeleteListingRequest) (*DeleteListingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteListing not implemented")
}

func (UnimplementedCatalogServiceServer) Purchase(context.Context, *PurchaseRequest) (*SettlementResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Purchase not implemented")
}

func (UnimplementedCatalogServiceServer) BuyListing(context.Context, *BuyListingRequest) (*SettlementResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method BuyListing not implemented")
}

func (UnimplementedCatalogServiceServer) OnTokenTransfer(context.Context, *OnTokenTransferRequest) (*SettlementResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method OnTokenTransfer not implemented")
}

func (UnimplementedCatalogServiceServer) Deposit(context.Context, *DepositRequest) (*DepositResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Deposit not implemented")
}

func (UnimplementedCatalogServiceServer) GetHistory(context.Context, *GetHistoryRequest) (*GetHistoryResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetHistory not implemented")
}

func (UnimplementedCatalogServiceServer) mustEmbedUnimplementedCatalogServiceServer() {}

// RegisterCatalogServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterCatalogServiceServer(s grpc.ServiceRegistrar, srv CatalogServiceServer) {
	s.RegisterService(&CatalogService_ServiceDesc, srv)
}

// unaryHandler собирает grpc.MethodHandler для метода с запросом Req.
func unaryHandler[Req any, Resp any](fullMethod string, call func(CatalogServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// CatalogService_ServiceDesc — дескриптор сервиса для grpc.ServiceRegistrar.
var CatalogService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateShop",
			Handler:    unaryHandler(CatalogService_CreateShop_FullMethodName, CatalogServiceServer.CreateShop),
		},
		{
			MethodName: "GetShop",
			Handler:    unaryHandler(CatalogService_GetShop_FullMethodName, CatalogServiceServer.GetShop),
		},
		{
			MethodName: "ListShops",
			Handler:    unaryHandler(CatalogService_ListShops_FullMethodName, CatalogServiceServer.ListShops),
		},
		{
			MethodName: "CreateProduct",
			Handler:    unaryHandler(CatalogService_CreateProduct_FullMethodName, CatalogServiceServer.CreateProduct),
		},
		{
			MethodName: "GetProduct",
			Handler:    unaryHandler(CatalogService_GetProduct_FullMethodName, CatalogServiceServer.GetProduct),
		},
		{
			MethodName: "ListProducts",
			Handler:    unaryHandler(CatalogService_ListProducts_FullMethodName, CatalogServiceServer.ListProducts),
		},
		{
			MethodName: "ListProductsByOwner",
			Handler:    unaryHandler(CatalogService_ListProductsByOwner_FullMethodName, CatalogServiceServer.ListProductsByOwner),
		},
		{
			MethodName: "UpdatePrice",
			Handler:    unaryHandler(CatalogService_UpdatePrice_FullMethodName, CatalogServiceServer.UpdatePrice),
		},
		{
			MethodName: "CreateListing",
			Handler:    unaryHandler(CatalogService_CreateListing_FullMethodName, CatalogServiceServer.CreateListing),
		},
		{
			MethodName: "GetListing",
			Handler:    unaryHandler(CatalogService_GetListing_FullMethodName, CatalogServiceServer.GetListing),
		},
		{
			MethodName: "ListListings",
			Handler:    unaryHandler(CatalogService_ListListings_FullMethodName, CatalogServiceServer.ListListings),
		},
		{
			MethodName: "ListListingsByOwner",
			Handler:    unaryHandler(CatalogService_ListListingsByOwner_FullMethodName, CatalogServiceServer.ListListingsByOwner),
		},
		{
			MethodName: "UpdateListingPrice",
			Handler:    unaryHandler(CatalogService_UpdateListingPrice_FullMethodName, CatalogServiceServer.UpdateListingPrice),
		},
		{
			MethodName: "DeleteListing",
			Handler:    unaryHandler(CatalogService_DeleteListing_FullMethodName, CatalogServiceServer.DeleteListing),
		},
		{
			MethodName: "Purchase",
			Handler:    unaryHandler(CatalogService_Purchase_FullMethodName, CatalogServiceServer.Purchase),
		},
		{
			MethodName: "BuyListing",
			Handler:    unaryHandler(CatalogService_BuyListing_FullMethodName, CatalogServiceServer.BuyListing),
		},
		{
			MethodName: "OnTokenTransfer",
			Handler:    unaryHandler(CatalogService_OnTokenTransfer_FullMethodName, CatalogServiceServer.OnTokenTransfer),
		},
		{
			MethodName: "Deposit",
			Handler:    unaryHandler(CatalogService_Deposit_FullMethodName, CatalogServiceServer.Deposit),
		},
		{
			MethodName: "GetHistory",
			Handler:    unaryHandler(CatalogService_GetHistory_FullMethodName, CatalogServiceServer.GetHistory),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog/v1/catalog_service",
}

// CatalogServiceClient — клиентская сторона API каталога.
type CatalogServiceClient interface {
	CreateShop(ctx context.Context, in *CreateShopRequest, opts ...grpc.CallOption) (*ShopResponse, error)
	GetShop(ctx context.Context, in *GetShopRequest, opts ...grpc.CallOption) (*ShopResponse, error)
	ListShops(ctx context.Context, in *ListShopsRequest, opts ...grpc.CallOption) (*ListShopsResponse, error)
	CreateProduct(ctx context.Context, in *CreateProductRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error)
	ListProductsByOwner(ctx context.Context, in *ListProductsByOwnerRequest, opts ...grpc.CallOption) (*ListProductsResponse, error)
	UpdatePrice(ctx context.Context, in *UpdatePriceRequest, opts ...grpc.CallOption) (*ProductResponse, error)
	CreateListing(ctx context.Context, in *CreateListingRequest, opts ...grpc.CallOption) (*ListingResponse, error)
	GetListing(ctx context.Context, in *GetListingRequest, opts ...grpc.CallOption) (*ListingResponse, error)
	ListListings(ctx context.Context, in *ListListingsRequest, opts ...grpc.CallOption) (*ListListingsResponse, error)
	ListListingsByOwner(ctx context.Context, in *ListListingsByOwnerRequest, opts ...grpc.CallOption) (*ListListingsResponse, error)
	UpdateListingPrice(ctx context.Context, in *UpdateListingPriceRequest, opts ...grpc.CallOption) (*ListingResponse, error)
	DeleteListing(ctx context.Context, in *DeleteListingRequest, opts ...grpc.CallOption) (*DeleteListingResponse, error)
	Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*SettlementResponse, error)
	BuyListing(ctx context.Context, in *BuyListingRequest, opts ...grpc.CallOption) (*SettlementResponse, error)
	OnTokenTransfer(ctx context.Context, in *OnTokenTransferRequest, opts ...grpc.CallOption) (*SettlementResponse, error)
	Deposit(ctx context.Context, in *DepositRequest, opts ...grpc.CallOption) (*DepositResponse, error)
	GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error)
}

type catalogServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCatalogServiceClient создаёт клиента; все вызовы идут с content-subtype json.
func NewCatalogServiceClient(cc grpc.ClientConnInterface) CatalogServiceClient {
	return &catalogServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	callOpts := append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, callOpts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *catalogServiceClient) CreateShop(ctx context.Context, in *CreateShopRequest, opts ...grpc.CallOption) (*ShopResponse, error) {
	return invoke[ShopResponse](ctx, c.cc, CatalogService_CreateShop_FullMethodName, in, opts)
}

func (c *catalogServiceClient) GetShop(ctx context.Context, in *GetShopRequest, opts ...grpc.CallOption) (*ShopResponse, error) {
	return invoke[ShopResponse](ctx, c.cc, CatalogService_GetShop_FullMethodName, in, opts)
}

func (c *catalogServiceClient) ListShops(ctx context.Context, in *ListShopsRequest, opts ...grpc.CallOption) (*ListShopsResponse, error) {
	return invoke[ListShopsResponse](ctx, c.cc, CatalogService_ListShops_FullMethodName, in, opts)
}

func (c *catalogServiceClient) CreateProduct(ctx context.Context, in *CreateProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, CatalogService_CreateProduct_FullMethodName, in, opts)
}

func (c *catalogServiceClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, CatalogService_GetProduct_FullMethodName, in, opts)
}

func (c *catalogServiceClient) ListProducts(ctx context.Context, in *ListProductsRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.cc, CatalogService_ListProducts_FullMethodName, in, opts)
}

func (c *catalogServiceClient) ListProductsByOwner(ctx context.Context, in *ListProductsByOwnerRequest, opts ...grpc.CallOption) (*ListProductsResponse, error) {
	return invoke[ListProductsResponse](ctx, c.cc, CatalogService_ListProductsByOwner_FullMethodName, in, opts)
}

func (c *catalogServiceClient) UpdatePrice(ctx context.Context, in *UpdatePriceRequest, opts ...grpc.CallOption) (*ProductResponse, error) {
	return invoke[ProductResponse](ctx, c.cc, CatalogService_UpdatePrice_FullMethodName, in, opts)
}

func (c *catalogServiceClient) CreateListing(ctx context.Context, in *CreateListingRequest, opts ...grpc.CallOption) (*ListingResponse, error) {
	return invoke[ListingResponse](ctx, c.cc, CatalogService_CreateListing_FullMethodName, in, opts)
}

func (c *catalogServiceClient) GetListing(ctx context.Context, in *GetListingRequest, opts ...grpc.CallOption) (*ListingResponse, error) {
	return invoke[ListingResponse](ctx, c.cc, CatalogService_GetListing_FullMethodName, in, opts)
}

func (c *catalogServiceClient) ListListings(ctx context.Context, in *ListListingsRequest, opts ...grpc.CallOption) (*ListListingsResponse, error) {
	return invoke[ListListingsResponse](ctx, c.cc, CatalogService_ListListings_FullMethodName, in, opts)
}

func (c *catalogServiceClient) ListListingsByOwner(ctx context.Context, in *ListListingsByOwnerRequest, opts ...grpc.CallOption) (*ListListingsResponse, error) {
	return invoke[ListListingsResponse](ctx, c.cc, CatalogService_ListListingsByOwner_FullMethodName, in, opts)
}

func (c *catalogServiceClient) UpdateListingPrice(ctx context.Context, in *UpdateListingPriceRequest, opts ...grpc.CallOption) (*ListingResponse, error) {
	return invoke[ListingResponse](ctx, c.cc, CatalogService_UpdateListingPrice_FullMethodName, in, opts)
}

func (c *catalogServiceClient) DeleteListing(ctx context.Context, in *DeleteListingRequest, opts ...grpc.CallOption) (*DeleteListingResponse, error) {
	return invoke[DeleteListingResponse](ctx, c.cc, CatalogService_DeleteListing_FullMethodName, in, opts)
}

func (c *catalogServiceClient) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*SettlementResponse, error) {
	return invoke[SettlementResponse](ctx, c.cc, CatalogService_Purchase_FullMethodName, in, opts)
}

func (c *catalogServiceClient) BuyListing(ctx context.Context, in *BuyListingRequest, opts ...grpc.CallOption) (*SettlementResponse, error) {
	return invoke[SettlementResponse](ctx, c.cc, CatalogService_BuyListing_FullMethodName, in, opts)
}

func (c *catalogServiceClient) OnTokenTransfer(ctx context.Context, in *OnTokenTransferRequest, opts ...grpc.CallOption) (*SettlementResponse, error) {
	return invoke[SettlementResponse](ctx, c.cc, CatalogService_OnTokenTransfer_FullMethodName, in, opts)
}

func (c *catalogServiceClient) Deposit(ctx context.Context, in *DepositRequest, opts ...grpc.CallOption) (*DepositResponse, error) {
	return invoke[DepositResponse](ctx, c.cc, CatalogService_Deposit_FullMethodName, in, opts)
}

func (c *catalogServiceClient) GetHistory(ctx context.Context, in *GetHistoryRequest, opts ...grpc.CallOption) (*GetHistoryResponse, error) {
	return invoke[GetHistoryResponse](ctx, c.cc, CatalogService_GetHistory_FullMethodName, in, opts)
}

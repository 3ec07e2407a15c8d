// Package catalogv1 описывает gRPC API каталога: сообщения, JSON-кодек и дескриптор сервиса.
// Суммы передаются десятичными строками, чтобы не терять 128-битную точность.
package catalogv1

// Shop — магазин владельца.
type Shop struct {
	Owner        string `json:"owner"`
	Name         string `json:"name"`
	Desc         string `json:"desc"`
	TotalProduct uint64 `json:"total_product"`
	Seq          uint64 `json:"seq"`
}

// Product — товар магазина.
type Product struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	TotalSupply uint64 `json:"total_supply"`
	Price       string `json:"price"`
	Desc        string `json:"desc"`
	Owner       string `json:"owner"`
	Seq         uint64 `json:"seq"`
}

// Listing — запись плоского реестра.
type Listing struct {
	ID    uint32 `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Price string `json:"price"`
	Desc  string `json:"desc"`
	Image string `json:"image"`
}

// TimelineEvent — событие истории агрегата.
type TimelineEvent struct {
	Type     string `json:"type"`
	Reason   string `json:"reason,omitempty"`
	UnixTime int64  `json:"unix_time"`
}

// Receipt — результат расчёта. Event содержит строку аудита EVENT_JSON.
type Receipt struct {
	AggregateType   string `json:"aggregate_type"`
	AggregateID     string `json:"aggregate_id"`
	Seller          string `json:"seller"`
	Beneficiary     string `json:"beneficiary"`
	Price           string `json:"price"`
	RemainingSupply uint64 `json:"remaining_supply"`
	HoldID          string `json:"hold_id,omitempty"`
	Mode            string `json:"mode"`
	Channel         string `json:"channel"`
	Event           string `json:"event"`
}

type CreateShopRequest struct {
	Name string `json:"name"`
	Desc string `json:"desc"`
}

type GetShopRequest struct {
	Owner string `json:"owner"`
}

type ShopResponse struct {
	Shop *Shop `json:"shop"`
}

type ListShopsRequest struct{}

type ListShopsResponse struct {
	Shops []*Shop `json:"shops"`
}

type CreateProductRequest struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	TotalSupply uint64 `json:"total_supply"`
	Price       string `json:"price"`
	Desc        string `json:"desc"`
}

type GetProductRequest struct {
	ProductID string `json:"product_id"`
}

type ProductResponse struct {
	Product *Product `json:"product"`
}

type ListProductsRequest struct{}

type ListProductsByOwnerRequest struct {
	Owner string `json:"owner"`
}

type ListProductsResponse struct {
	Products []*Product `json:"products"`
}

type UpdatePriceRequest struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
}

type CreateListingRequest struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Desc  string `json:"desc"`
	Image string `json:"image"`
}

type GetListingRequest struct {
	ID uint32 `json:"id"`
}

type ListingResponse struct {
	Listing *Listing `json:"listing"`
}

type ListListingsRequest struct{}

type ListListingsByOwnerRequest struct {
	Owner string `json:"owner"`
}

type ListListingsResponse struct {
	Listings []*Listing `json:"listings"`
}

type UpdateListingPriceRequest struct {
	ID    uint32 `json:"id"`
	Price string `json:"price"`
}

type DeleteListingRequest struct {
	ID uint32 `json:"id"`
}

type DeleteListingResponse struct {
	ID uint32 `json:"id"`
}

// PurchaseRequest покупает одну единицу товара; Attached — приложенная оплата.
type PurchaseRequest struct {
	ProductID string `json:"product_id"`
	Attached  string `json:"attached"`
	Memo      string `json:"memo,omitempty"`
}

type BuyListingRequest struct {
	ListingID uint32 `json:"listing_id"`
	Attached  string `json:"attached"`
	Memo      string `json:"memo,omitempty"`
}

// OnTokenTransferRequest — уведомление токен-контракта о переводе с назначением «купить товар».
type OnTokenTransferRequest struct {
	Sender    string `json:"sender"`
	Amount    string `json:"amount"`
	Msg       string `json:"msg"`
	ProductID string `json:"product_id"`
}

type SettlementResponse struct {
	Receipt *Receipt `json:"receipt"`
}

type DepositRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type DepositResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

type GetHistoryRequest struct {
	AggregateType string `json:"aggregate_type"`
	AggregateID   string `json:"aggregate_id"`
}

type GetHistoryResponse struct {
	Events []*TimelineEvent `json:"events"`
}

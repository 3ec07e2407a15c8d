// Package httpapi отдаёт read-only HTTP поверхность каталога и служебные endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/health"
	"github.com/vladislavdragonenkov/catalog/internal/service/catalog"
)

// Reader — чтение каталога, которое нужно HTTP-слою.
type Reader interface {
	GetShop(ctx context.Context, owner domain.AccountRef) (domain.Shop, error)
	ListShops(ctx context.Context) ([]domain.Shop, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListProductsByOwner(ctx context.Context, owner domain.AccountRef) ([]domain.Product, error)
	GetListing(ctx context.Context, id uint32) (domain.Listing, error)
	ListListings(ctx context.Context) ([]domain.Listing, error)
	ListListingsByOwner(ctx context.Context, owner domain.AccountRef) ([]domain.Listing, error)
	History(ctx context.Context, aggregateType, aggregateID string) ([]domain.TimelineEvent, error)
}

var _ Reader = (*catalog.Service)(nil)

type errorResponse struct {
	Error string `json:"error"`
}

type handlers struct {
	reader Reader
	logger *log.Entry
}

// NewRouter собирает маршруты. health и metrics опциональны.
func NewRouter(reader Reader, healthHandler *health.Handler, metrics http.Handler, logger *log.Entry) *mux.Router {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	h := &handlers{reader: reader, logger: logger}

	router := mux.NewRouter()
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	router.HandleFunc("/livez", health.LivenessHandler).Methods(http.MethodGet)
	if healthHandler != nil {
		router.Handle("/healthz", healthHandler).Methods(http.MethodGet)
		router.HandleFunc("/readyz", healthHandler.ReadinessHandler).Methods(http.MethodGet)
	}

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/shops", h.listShops).Methods(http.MethodGet)
	v1.HandleFunc("/shops/{owner}", h.getShop).Methods(http.MethodGet)
	v1.HandleFunc("/shops/{owner}/products", h.listProductsByOwner).Methods(http.MethodGet)
	v1.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products/{product_id}", h.getProduct).Methods(http.MethodGet)
	v1.HandleFunc("/products/{product_id}/history", h.productHistory).Methods(http.MethodGet)
	v1.HandleFunc("/listings", h.listListings).Methods(http.MethodGet)
	v1.HandleFunc("/listings/{id:[0-9]+}", h.getListing).Methods(http.MethodGet)
	v1.HandleFunc("/listings/{id:[0-9]+}/history", h.listingHistory).Methods(http.MethodGet)
	v1.HandleFunc("/owners/{owner}/listings", h.listListingsByOwner).Methods(http.MethodGet)

	return router
}

func (h *handlers) listShops(w http.ResponseWriter, r *http.Request) {
	shops, err := h.reader.ListShops(r.Context())
	h.respond(w, r, shops, err)
}

func (h *handlers) getShop(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	shop, err := h.reader.GetShop(r.Context(), owner)
	h.respond(w, r, shop, err)
}

func (h *handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.reader.ListProducts(r.Context())
	h.respond(w, r, products, err)
}

func (h *handlers) listProductsByOwner(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	products, err := h.reader.ListProductsByOwner(r.Context(), owner)
	h.respond(w, r, products, err)
}

func (h *handlers) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.reader.GetProduct(r.Context(), mux.Vars(r)["product_id"])
	h.respond(w, r, product, err)
}

func (h *handlers) productHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.reader.History(r.Context(), domain.AggregateProduct, mux.Vars(r)["product_id"])
	h.respond(w, r, events, err)
}

func (h *handlers) listListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.reader.ListListings(r.Context())
	h.respond(w, r, listings, err)
}

func (h *handlers) listListingsByOwner(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	listings, err := h.reader.ListListingsByOwner(r.Context(), owner)
	h.respond(w, r, listings, err)
}

func (h *handlers) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	listing, err := h.reader.GetListing(r.Context(), id)
	h.respond(w, r, listing, err)
}

func (h *handlers) listingHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.listingID(w, r)
	if !ok {
		return
	}
	events, err := h.reader.History(r.Context(), domain.AggregateListing, catalog.ListingKey(id))
	h.respond(w, r, events, err)
}

func (h *handlers) owner(w http.ResponseWriter, r *http.Request) (domain.AccountRef, bool) {
	owner, err := domain.ParseAccount(mux.Vars(r)["owner"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return "", false
	}
	return owner, true
}

func (h *handlers) listingID(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "listing id must be a uint32"})
		return 0, false
	}
	return uint32(id), true
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, body any, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, body)
		return
	}

	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("http query failed")
		writeJSON(w, code, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func httpStatus(err error) int {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

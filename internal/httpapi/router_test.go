package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/health"
	"github.com/vladislavdragonenkov/catalog/internal/httpapi"
	"github.com/vladislavdragonenkov/catalog/internal/service/catalog"
	"github.com/vladislavdragonenkov/catalog/internal/storage/memory"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	svc := catalog.NewService(
		memory.NewCatalogRepository(),
		memory.NewRegistryRepository(),
		memory.NewTimelineRepository(),
		nil,
		nil,
	)

	_, err := svc.CreateShop(ctx, "alice", "Acme", "tools")
	require.NoError(t, err)
	_, err = svc.CreateProduct(ctx, "alice", "sku-1", "Widget", 3, domain.NewAmount(100), "a widget")
	require.NoError(t, err)
	_, err = svc.CreateListing(ctx, "bob", "Painting", domain.NewAmount(50), "oil", "img://1")
	require.NoError(t, err)

	healthHandler := health.NewHandler("test")
	return httpapi.NewRouter(svc, healthHandler, http.NotFoundHandler(), nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRouter_Products(t *testing.T) {
	h := newRouter(t)

	w := get(t, h, "/v1/products/sku-1")
	require.Equal(t, http.StatusOK, w.Code)

	var product map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&product))
	assert.Equal(t, "sku-1", product["product_id"])
	assert.EqualValues(t, 100, product["price"])
	assert.EqualValues(t, 3, product["total_supply"])

	w = get(t, h, "/v1/shops/alice/products")
	require.Equal(t, http.StatusOK, w.Code)
	var products []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&products))
	assert.Len(t, products, 1)

	w = get(t, h, "/v1/products/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(t, h, "/v1/products/sku-1/history")
	require.Equal(t, http.StatusOK, w.Code)
	var events []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&events))
	require.NotEmpty(t, events)
	assert.Equal(t, catalog.EventProductCreated, events[0]["type"])
}

func TestRouter_ShopsAndListings(t *testing.T) {
	h := newRouter(t)

	w := get(t, h, "/v1/shops")
	require.Equal(t, http.StatusOK, w.Code)
	var shops []map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&shops))
	require.Len(t, shops, 1)
	assert.Equal(t, "Acme", shops[0]["name"])

	w = get(t, h, "/v1/listings/0")
	require.Equal(t, http.StatusOK, w.Code)
	var listing map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&listing))
	assert.Equal(t, "bob", listing["owner"])

	w = get(t, h, "/v1/owners/bob/listings")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/listings/7").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/shops/carol").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/v1/listings/99999999999").Code)
}

func TestRouter_OpsEndpoints(t *testing.T) {
	h := newRouter(t)

	assert.Equal(t, http.StatusOK, get(t, h, "/livez").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	w := get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", w.Body.String())
}

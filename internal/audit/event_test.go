package audit

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/catalog/internal/domain"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
}

func TestEventLog_GoldenLines(t *testing.T) {
	g := newGoldie(t)

	widget := domain.Product{ProductID: "sku-1", Owner: "acme", Description: "a widget", Price: domain.NewAmount(100)}
	g.Assert(t, "purchase", []byte(NewPurchase(widget, widget.Price, "").String()))

	ceiling := domain.MustParseAmount("340282366920938463463374607431768211455")
	lot := domain.Product{ProductID: "lot-1", Owner: "acme", Description: `huge "quoted" lot`, Price: ceiling}
	g.Assert(t, "purchase_with_memo", []byte(NewPurchase(lot, lot.Price, "order #42").String()))

	lamp := domain.Listing{ID: 3, Owner: "bob", Description: "vintage lamp", Price: domain.NewAmount(10)}
	g.Assert(t, "ownership_transfer", []byte(NewOwnershipTransfer("alice", lamp, "").String()))
}

func TestParse_RoundTripsLine(t *testing.T) {
	widget := domain.Product{Owner: "acme", Description: "a widget"}
	line := NewPurchase(widget, domain.NewAmount(100), "gift").String()

	event, err := Parse(line)
	require.NoError(t, err)
	assert.Equal(t, EventPurchase, event.Event)
	require.Len(t, event.Data, 1)
	assert.Equal(t, domain.AccountRef("acme"), event.Data[0].OwnerID)
	assert.Equal(t, "100", event.Data[0].Price.String())
	assert.Equal(t, "gift", event.Data[0].Memo)
}

func TestParse_Rejects(t *testing.T) {
	_, err := Parse(`{"standard":"e-commerce-1.0.0"}`)
	require.ErrorIs(t, err, errNotAuditLine)

	_, err = Parse(`EVENT_JSON:{"standard":"nft-2.0.0","event":"purchase","data":[]}`)
	require.Error(t, err)

	_, err = Parse(`EVENT_JSON:{not json`)
	require.Error(t, err)
}

func TestEventLog_EmptyDataIsArray(t *testing.T) {
	line := EventLog{Standard: Standard, Event: EventPurchase}.String()
	assert.Equal(t, `EVENT_JSON:{"standard":"e-commerce-1.0.0","event":"purchase","data":[]}`, line)
}

func TestEventKind_Known(t *testing.T) {
	assert.True(t, EventPurchase.Known())
	assert.True(t, EventOwnershipTransfer.Known())
	assert.False(t, EventKind("refund").Known())
}

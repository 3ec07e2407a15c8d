package grpcsvc

import (
	catalogv1 "github.com/vladislavdragonenkov/catalog/api/catalogv1"
	"github.com/vladislavdragonenkov/catalog/internal/domain"
	"github.com/vladislavdragonenkov/catalog/internal/service/settlement"
)

func toAPIShop(shop domain.Shop) *catalogv1.Shop {
	return &catalogv1.Shop{
		Owner:        shop.Owner.String(),
		Name:         shop.Name,
		Desc:         shop.Description,
		TotalProduct: shop.TotalProductCount,
		Seq:          shop.Seq,
	}
}

func toAPIProduct(product domain.Product) *catalogv1.Product {
	return &catalogv1.Product{
		ProductID:   product.ProductID,
		Name:        product.Name,
		TotalSupply: product.TotalSupply,
		Price:       product.Price.String(),
		Desc:        product.Description,
		Owner:       product.Owner.String(),
		Seq:         product.Seq,
	}
}

func toAPIListing(listing domain.Listing) *catalogv1.Listing {
	return &catalogv1.Listing{
		ID:    listing.ID,
		Owner: listing.Owner.String(),
		Name:  listing.Name,
		Price: listing.Price.String(),
		Desc:  listing.Description,
		Image: listing.Image,
	}
}

func toAPIReceipt(r settlement.Receipt) *catalogv1.Receipt {
	return &catalogv1.Receipt{
		AggregateType:   r.AggregateType,
		AggregateID:     r.AggregateID,
		Seller:          r.Seller.String(),
		Beneficiary:     r.Beneficiary.String(),
		Price:           r.Price.String(),
		RemainingSupply: r.RemainingSupply,
		HoldID:          r.HoldID,
		Mode:            string(r.Mode),
		Channel:         string(r.Channel),
		Event:           r.Event.String(),
	}
}

func toAPIShops(shops []domain.Shop) []*catalogv1.Shop {
	out := make([]*catalogv1.Shop, 0, len(shops))
	for _, shop := range shops {
		out = append(out, toAPIShop(shop))
	}
	return out
}

func toAPIProducts(products []domain.Product) []*catalogv1.Product {
	out := make([]*catalogv1.Product, 0, len(products))
	for _, product := range products {
		out = append(out, toAPIProduct(product))
	}
	return out
}

func toAPIListings(listings []domain.Listing) []*catalogv1.Listing {
	out := make([]*catalogv1.Listing, 0, len(listings))
	for _, listing := range listings {
		out = append(out, toAPIListing(listing))
	}
	return out
}

func toAPITimeline(events []domain.TimelineEvent) []*catalogv1.TimelineEvent {
	out := make([]*catalogv1.TimelineEvent, 0, len(events))
	for _, event := range events {
		out = append(out, &catalogv1.TimelineEvent{
			Type:     event.Type,
			Reason:   event.Reason,
			UnixTime: event.Occurred.Unix(),
		})
	}
	return out
}

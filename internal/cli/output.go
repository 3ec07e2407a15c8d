package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	catalogv1 "github.com/vladislavdragonenkov/catalog/api/catalogv1"
)

// printer печатает ответы сервиса в text или json формате.
type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) printer {
	return printer{w: w, format: format}
}

func (p printer) print(resp any) error {
	if p.format == "json" {
		encoder := json.NewEncoder(p.w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(resp)
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	switch r := resp.(type) {
	case *catalogv1.ShopResponse:
		writeShops(tw, []*catalogv1.Shop{r.Shop})
	case *catalogv1.ListShopsResponse:
		writeShops(tw, r.Shops)
	case *catalogv1.ProductResponse:
		writeProducts(tw, []*catalogv1.Product{r.Product})
	case *catalogv1.ListProductsResponse:
		writeProducts(tw, r.Products)
	case *catalogv1.ListingResponse:
		writeListings(tw, []*catalogv1.Listing{r.Listing})
	case *catalogv1.ListListingsResponse:
		writeListings(tw, r.Listings)
	case *catalogv1.DeleteListingResponse:
		fmt.Fprintf(tw, "deleted listing %d\n", r.ID)
	case *catalogv1.SettlementResponse:
		writeReceipt(tw, r.Receipt)
	case *catalogv1.DepositResponse:
		fmt.Fprintf(tw, "account\t%s\nbalance\t%s\n", r.Account, r.Balance)
	case *catalogv1.GetHistoryResponse:
		fmt.Fprintln(tw, "TYPE\tREASON\tAT")
		for _, e := range r.Events {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Type, e.Reason, time.Unix(e.UnixTime, 0).UTC().Format(time.RFC3339))
		}
	default:
		return fmt.Errorf("unsupported response type %T", resp)
	}
	return tw.Flush()
}

func writeShops(w io.Writer, shops []*catalogv1.Shop) {
	fmt.Fprintln(w, "SEQ\tOWNER\tNAME\tPRODUCTS")
	for _, s := range shops {
		if s == nil {
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", s.Seq, s.Owner, s.Name, s.TotalProduct)
	}
}

func writeProducts(w io.Writer, products []*catalogv1.Product) {
	fmt.Fprintln(w, "SEQ\tPRODUCT_ID\tNAME\tSUPPLY\tPRICE\tOWNER")
	for _, p := range products {
		if p == nil {
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n", p.Seq, p.ProductID, p.Name, p.TotalSupply, p.Price, p.Owner)
	}
}

func writeListings(w io.Writer, listings []*catalogv1.Listing) {
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tOWNER")
	for _, l := range listings {
		if l == nil {
			continue
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l.ID, l.Name, l.Price, l.Owner)
	}
}

// writeReceipt не печатает hold_id: он есть в json-выводе.
func writeReceipt(w io.Writer, r *catalogv1.Receipt) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "aggregate\t%s/%s\n", r.AggregateType, r.AggregateID)
	fmt.Fprintf(w, "seller\t%s\n", r.Seller)
	fmt.Fprintf(w, "beneficiary\t%s\n", r.Beneficiary)
	fmt.Fprintf(w, "price\t%s\n", r.Price)
	fmt.Fprintf(w, "remaining_supply\t%d\n", r.RemainingSupply)
	fmt.Fprintf(w, "mode\t%s\n", r.Mode)
	fmt.Fprintf(w, "channel\t%s\n", r.Channel)
	fmt.Fprintf(w, "event\t%s\n", r.Event)
}

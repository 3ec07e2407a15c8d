package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	catalogv1 "github.com/vladislavdragonenkov/catalog/api/catalogv1"
)

func idempotencyKeyOrNew(key string) string {
	if key = strings.TrimSpace(key); key != "" {
		return key
	}
	return uuid.NewString()
}

func parseListingID(raw string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid listing id %q: %w", raw, err)
	}
	return uint32(id), nil
}

func newShopCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "shop", Short: "Manage shops"}

	var desc string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create the caller's shop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.CreateShop(ctx, &catalogv1.CreateShopRequest{Name: args[0], Desc: desc})
			})
		},
	}
	create.Flags().StringVar(&desc, "desc", "", "shop description")

	get := &cobra.Command{
		Use:   "get <owner>",
		Short: "Show a shop by owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.GetShop(ctx, &catalogv1.GetShopRequest{Owner: args[0]})
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List shops in creation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.ListShops(ctx, &catalogv1.ListShopsRequest{})
			})
		},
	}

	cmd.AddCommand(create, get, list)
	return cmd
}

func newProductCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "product", Short: "Manage shop products"}

	var (
		supply uint64
		price  string
		desc   string
	)
	create := &cobra.Command{
		Use:   "create <product_id> <name>",
		Short: "Add a product to the caller's shop",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.CreateProduct(ctx, &catalogv1.CreateProductRequest{
					ProductID:   args[0],
					Name:        args[1],
					TotalSupply: supply,
					Price:       price,
					Desc:        desc,
				})
			})
		},
	}
	create.Flags().Uint64Var(&supply, "supply", 1, "total supply")
	create.Flags().StringVar(&price, "price", "0", "unit price in minimal units")
	create.Flags().StringVar(&desc, "desc", "", "product description")

	get := &cobra.Command{
		Use:   "get <product_id>",
		Short: "Show a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.GetProduct(ctx, &catalogv1.GetProductRequest{ProductID: args[0]})
			})
		},
	}

	var owner string
	list := &cobra.Command{
		Use:   "list",
		Short: "List products, optionally by owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				if owner != "" {
					return c.ListProductsByOwner(ctx, &catalogv1.ListProductsByOwnerRequest{Owner: owner})
				}
				return c.ListProducts(ctx, &catalogv1.ListProductsRequest{})
			})
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "only products of this owner")

	setPrice := &cobra.Command{
		Use:   "set-price <product_id> <price>",
		Short: "Change a product price (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.UpdatePrice(ctx, &catalogv1.UpdatePriceRequest{ProductID: args[0], Price: args[1]})
			})
		},
	}

	cmd.AddCommand(create, get, list, setPrice)
	return cmd
}

func newListingCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "listing", Short: "Manage registry listings"}

	var (
		price string
		desc  string
		image string
	)
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a listing owned by the caller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.CreateListing(ctx, &catalogv1.CreateListingRequest{Name: args[0], Price: price, Desc: desc, Image: image})
			})
		},
	}
	create.Flags().StringVar(&price, "price", "0", "asking price")
	create.Flags().StringVar(&desc, "desc", "", "listing description")
	create.Flags().StringVar(&image, "image", "", "image reference")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseListingID(args[0])
			if err != nil {
				return err
			}
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.GetListing(ctx, &catalogv1.GetListingRequest{ID: id})
			})
		},
	}

	var owner string
	list := &cobra.Command{
		Use:   "list",
		Short: "List listings, optionally by owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				if owner != "" {
					return c.ListListingsByOwner(ctx, &catalogv1.ListListingsByOwnerRequest{Owner: owner})
				}
				return c.ListListings(ctx, &catalogv1.ListListingsRequest{})
			})
		},
	}
	list.Flags().StringVar(&owner, "owner", "", "only listings of this owner")

	setPrice := &cobra.Command{
		Use:   "set-price <id> <price>",
		Short: "Change a listing price (owner only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseListingID(args[0])
			if err != nil {
				return err
			}
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.UpdateListingPrice(ctx, &catalogv1.UpdateListingPriceRequest{ID: id, Price: args[1]})
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a listing (owner only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseListingID(args[0])
			if err != nil {
				return err
			}
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.DeleteListing(ctx, &catalogv1.DeleteListingRequest{ID: id})
			})
		},
	}

	cmd.AddCommand(create, get, list, setPrice, del)
	return cmd
}

type settleFlags struct {
	attached       string
	memo           string
	idempotencyKey string
}

func (f *settleFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.attached, "attached", "0", "attached payment")
	cmd.Flags().StringVar(&f.memo, "memo", "", "memo recorded in the audit event")
	cmd.Flags().StringVar(&f.idempotencyKey, "idempotency-key", "", "idempotency key (random UUID when empty)")
}

func newPurchaseCommand(opts *RootOptions) *cobra.Command {
	var flags settleFlags
	cmd := &cobra.Command{
		Use:   "purchase <product_id>",
		Short: "Buy one unit of a shop product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				ctx = withIdempotencyKey(ctx, flags.idempotencyKey)
				return c.Purchase(ctx, &catalogv1.PurchaseRequest{ProductID: args[0], Attached: flags.attached, Memo: flags.memo})
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newBuyCommand(opts *RootOptions) *cobra.Command {
	var flags settleFlags
	cmd := &cobra.Command{
		Use:   "buy <listing_id>",
		Short: "Buy a registry listing from its owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseListingID(args[0])
			if err != nil {
				return err
			}
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				ctx = withIdempotencyKey(ctx, flags.idempotencyKey)
				return c.BuyListing(ctx, &catalogv1.BuyListingRequest{ListingID: id, Attached: flags.attached, Memo: flags.memo})
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newTokenTransferCommand(opts *RootOptions) *cobra.Command {
	var (
		sender         string
		amount         string
		msg            string
		idempotencyKey string
	)
	cmd := &cobra.Command{
		Use:   "token-transfer <product_id>",
		Short: "Notify about a token transfer paying for a product (caller is the token contract)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				ctx = withIdempotencyKey(ctx, idempotencyKey)
				return c.OnTokenTransfer(ctx, &catalogv1.OnTokenTransferRequest{
					Sender:    sender,
					Amount:    amount,
					Msg:       msg,
					ProductID: args[0],
				})
			})
		},
	}
	cmd.Flags().StringVar(&sender, "sender", "", "account that sent the tokens")
	cmd.Flags().StringVar(&amount, "amount", "0", "transferred amount")
	cmd.Flags().StringVar(&msg, "msg", "", "transfer message")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "idempotency key (random UUID when empty)")
	return cmd
}

func newDepositCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <account> <amount>",
		Short: "Credit an account in the development ledger",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.Deposit(ctx, &catalogv1.DepositRequest{Account: args[0], Amount: args[1]})
			})
		},
	}
}

func newHistoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <shop|product|listing> <id>",
		Short: "Show the timeline of an aggregate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.call(cmd, func(ctx context.Context, c catalogv1.CatalogServiceClient) (any, error) {
				return c.GetHistory(ctx, &catalogv1.GetHistoryRequest{AggregateType: args[0], AggregateID: args[1]})
			})
		},
	}
}

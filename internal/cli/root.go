// Package cli реализует catalogctl: gRPC-клиент каталога на cobra.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	catalogv1 "github.com/vladislavdragonenkov/catalog/api/catalogv1"
	grpcsvc "github.com/vladislavdragonenkov/catalog/internal/service/grpc"
)

// ValidFormats — допустимые форматы вывода.
var ValidFormats = []string{"text", "json"}

// DialFunc открывает соединение с сервисом; в тестах подменяется на bufconn.
type DialFunc func(ctx context.Context, addr string) (*grpc.ClientConn, error)

// RootOptions — глобальные флаги всех команд.
type RootOptions struct {
	Addr    string
	Caller  string
	Format  string
	Timeout time.Duration

	Dial DialFunc
}

func defaultDial(_ context.Context, addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// NewRootCommand собирает catalogctl. dial == nil означает обычное TCP-подключение.
func NewRootCommand(dial DialFunc) *cobra.Command {
	if dial == nil {
		dial = defaultDial
	}
	opts := &RootOptions{Dial: dial}

	cmd := &cobra.Command{
		Use:   "catalogctl",
		Short: "catalogctl - клиент CatalogService",
		Long:  "Command line client for the catalog and settlement service.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", envOr("CATALOG_GRPC_ADDR", "localhost:50051"), "gRPC address of the service")
	cmd.PersistentFlags().StringVar(&opts.Caller, "caller", os.Getenv("CATALOG_CALLER"), "caller account sent as "+grpcsvc.CallerHeader)
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "request timeout")

	cmd.AddCommand(newShopCommand(opts))
	cmd.AddCommand(newProductCommand(opts))
	cmd.AddCommand(newListingCommand(opts))
	cmd.AddCommand(newPurchaseCommand(opts))
	cmd.AddCommand(newBuyCommand(opts))
	cmd.AddCommand(newTokenTransferCommand(opts))
	cmd.AddCommand(newDepositCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// call открывает соединение, кладёт caller в metadata и вызывает fn.
func (o *RootOptions) call(cmd *cobra.Command, fn func(ctx context.Context, client catalogv1.CatalogServiceClient) (any, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), o.Timeout)
	defer cancel()

	conn, err := o.Dial(ctx, o.Addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", o.Addr, err)
	}
	defer conn.Close()

	if caller := strings.TrimSpace(o.Caller); caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcsvc.CallerHeader, caller)
	}

	resp, err := fn(ctx, catalogv1.NewCatalogServiceClient(conn))
	if err != nil {
		return err
	}
	return newPrinter(cmd.OutOrStdout(), o.Format).print(resp)
}

// withIdempotencyKey добавляет idempotency-key; пустой ключ заменяется случайным UUID.
func withIdempotencyKey(ctx context.Context, key string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, grpcsvc.IdempotencyKeyHeader, idempotencyKeyOrNew(key))
}

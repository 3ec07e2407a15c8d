package main

import (
	"fmt"
	"os"

	"github.com/vladislavdragonenkov/catalog/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(nil).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

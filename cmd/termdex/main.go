// Package main is the entry point of the termdex CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bold-kg/termdex/cmd/termdex/cmd"
	"github.com/bold-kg/termdex/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
		os.Exit(1)
	}
}

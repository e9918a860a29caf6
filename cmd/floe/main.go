package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/polarlab/floe/components/ocean"
	"github.com/polarlab/floe/internal/cmd"
	"github.com/polarlab/floe/internal/exitcode"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	oceanComponent, err := ocean.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitcode.Exit(exitcode.GeneralError)
	}

	if err := cmd.ExecuteContext(ctx, oceanComponent); err != nil {
		if ctx.Err() == context.Canceled {
			fmt.Fprintln(os.Stderr, "\nRun cancelled")
			exitcode.Exit(exitcode.Interrupted)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitcode.ExitWithError(err)
	}
	exitcode.Exit(exitcode.Success)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/assistants/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.NewRootCmd().ExecuteContext(ctx)

	stop()

	if err != nil {
		cli.Failure(os.Stderr, err)
		os.Exit(1)
	}
}

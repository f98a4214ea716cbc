package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/icodeforyou/ews-go/ews"
)

var Version = "?.?.?"

func main() {
	if Version != "?.?.?" {
		ews.Version = Version
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

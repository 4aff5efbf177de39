package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/viewctl/viewctl/internal/observability"
	"github.com/viewctl/viewctl/internal/viewersim"
)

func main() {
	configPath := flag.String("config", "", "path to viewer config TOML")
	flag.Parse()

	observability.InitLogger("viewersim")

	cfg := viewersim.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "viewersim: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	svc, err := viewersim.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewersim: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "viewersim: %v\n", err)
		os.Exit(1)
	}
}

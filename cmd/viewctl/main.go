package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/viewctl/viewctl/internal/config"
	"github.com/viewctl/viewctl/internal/host"
	"github.com/viewctl/viewctl/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to coordinator config TOML")
	flag.Parse()

	observability.InitLogger("viewctl")

	cfg := host.DefaultConfig()
	if *configPath != "" {
		fileCfg, err := config.LoadCoordinatorConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "viewctl: %v\n", err)
			os.Exit(1)
		}
		cfg, err = fileCfg.HostConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "viewctl: %v\n", err)
			os.Exit(1)
		}
	}

	svc, err := host.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "viewctl: %v\n", err)
		os.Exit(1)
	}
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "viewctl: %v\n", err)
		os.Exit(1)
	}
}

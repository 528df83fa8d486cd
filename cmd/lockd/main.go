package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/keyfold/lockcore/internal/config"
	"github.com/keyfold/lockcore/internal/daemon"
	"github.com/keyfold/lockcore/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to lockd TOML config (defaults apply when omitted)")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lockd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := daemon.New(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "lockd: %v\n", err)
		os.Exit(1)
	}
}

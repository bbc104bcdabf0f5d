package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/amasampo/mesh/internal/config"
	"github.com/amasampo/mesh/internal/daemon"
)

func main() {
	configFlag := flag.String("config", "", "path to config.toml")
	flag.Parse()

	// Missing .env is fine; it only layers extra env overrides.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Config: cfg}),
	)

	app.Run()
}

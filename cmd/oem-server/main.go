package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"partsbot/internal/app"
	"partsbot/internal/config"
	"partsbot/internal/logging"
	"partsbot/internal/server"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.Open(ctx, cfg, log)
	must(err)
	defer a.Close()

	srv := server.New(a.Service, a.DB, log)
	must(srv.Run(ctx, cfg.HTTPAddr))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

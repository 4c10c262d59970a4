package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/keevault/internal/buildinfo"
	"github.com/dmitrijs2005/keevault/internal/cli"
	"github.com/dmitrijs2005/keevault/internal/config"
	"github.com/dmitrijs2005/keevault/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.LoadErr != nil {
		logger.Warn(ctx, "config file ignored", "error", cfg.LoadErr)
	}

	app, err := cli.NewApp(ctx, cfg, logger)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}

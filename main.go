package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/resonancelabs/resonance-service/internal/cmd/fold"
	"github.com/resonancelabs/resonance-service/internal/cmd/migrate"
	"github.com/resonancelabs/resonance-service/internal/cmd/serve"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "resonance-service",
		Usage: "Tiered memory lifecycle engine with autonomous synthesis",
		Commands: []*cli.Command{
			serve.Command(),
			migrate.Command(),
			fold.Command(),
		},
	}
	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

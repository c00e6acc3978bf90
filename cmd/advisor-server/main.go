// Command advisor-server runs the HTTP front end for the
// insurance-recommendation service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/insurlab/advisor/config"
	"github.com/insurlab/advisor/internal/bootstrap"
	"github.com/insurlab/advisor/log"
	"github.com/insurlab/advisor/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	settings := config.Load()
	logger := log.Default()

	logger.Info("starting insurance recommendation service")

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	settings.Diagnose(probeCtx, logger)
	cancel()

	app, err := bootstrap.Build(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	srv := server.New(app.Service, server.WithLogger(logger))
	logger.Info("listening on %s", settings.Addr())
	return srv.Router().Run(settings.Addr())
}

// Command server runs the ingestion/retrieval core's task worker,
// following the teacher's cmd/server/main.go fx bootstrap: build the
// app, start it with a bounded timeout, wait for shutdown, stop it with
// a bounded timeout.
package main

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/alleneee/docingest/internal/logger"
	"github.com/alleneee/docingest/internal/wiring"
)

func main() {
	app := fx.New(
		wiring.Module,
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()

	if err := app.Start(startCtx); err != nil {
		logger.Get().Error("application startup failed", zap.Error(err))
		os.Exit(1)
	}

	<-app.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		logger.Get().Error("application shutdown failed", zap.Error(err))
	}
}

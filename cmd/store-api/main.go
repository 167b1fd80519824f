package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

func main() {
	app := mustBootstrapStoreAPI()
	defer app.Close()

	if err := app.Run(); err != nil && !errors.Is(err, context.Canceled) {
		app.log.Error("store-api stopped", zap.Error(err))
	}
}

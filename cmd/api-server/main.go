// Command api-server serves the storefront HTTP API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	storefront "github.com/xenking/storefront/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := storefront.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		return storefront.Run(ctx, lg, m, cfg)
	})
}

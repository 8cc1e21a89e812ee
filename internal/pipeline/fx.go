package pipeline

import (
	"context"

	"github.com/smallbiznis/kpireport/internal/guru"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("pipeline",
	fx.Provide(func(c *guru.Client) Fetcher { return c }),
	fx.Provide(NewPipeline),
	fx.Invoke(RunOnStart),
)

// RunOnStart executes one run once the app has started and shuts the app
// down with exit code 1 when the run fails.
func RunOnStart(lc fx.Lifecycle, shutdowner fx.Shutdowner, p *Pipeline, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				code := 0
				if _, err := p.Run(ctx); err != nil {
					code = 1
				}
				if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					log.Error("shutdown failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

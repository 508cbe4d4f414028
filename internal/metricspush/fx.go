package metricspush

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/royalti/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("metrics.push",
	fx.Provide(NewPusher),
	fx.Invoke(register),
)

// register pushes the default registry on an interval and once more on
// shutdown, so the counters of the last ingestion batch are not lost.
func register(lc fx.Lifecycle, cfg config.Config, pusher Pusher, log *zap.Logger) {
	if pusher == nil {
		return
	}
	log = log.Named("metricspush")
	interval := cfg.Push.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	loop := NewLoop(pusher, prometheus.DefaultGatherer, interval, log)
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting metrics push", zap.String("exporter", cfg.Push.Exporter), zap.Duration("interval", interval))
			go loop.Run(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			loop.PushOnce(stopCtx)
			return nil
		},
	})
}

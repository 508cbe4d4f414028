package metricspush

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Loop pushes gathered metrics on a fixed interval. Push failures are logged
// once until a push succeeds again.
type Loop struct {
	pusher   Pusher
	gatherer prometheus.Gatherer
	interval time.Duration
	log      *zap.Logger
	failing  atomic.Bool
}

func NewLoop(pusher Pusher, gatherer prometheus.Gatherer, interval time.Duration, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{pusher: pusher, gatherer: gatherer, interval: interval, log: log}
}

func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.PushOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// PushOnce reports whether the push succeeded.
func (l *Loop) PushOnce(ctx context.Context) bool {
	pushCtx, cancel := context.WithTimeout(ctx, defaultPushTimeout)
	defer cancel()

	if err := l.pusher.Push(pushCtx, l.gatherer); err != nil {
		if l.failing.CompareAndSwap(false, true) {
			l.log.Warn("metrics push failed", zap.Error(err))
		}
		return false
	}
	if l.failing.CompareAndSwap(true, false) {
		l.log.Info("metrics push recovered")
	}
	return true
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"marketplace-backend/pkg/blockchain"
	"marketplace-backend/pkg/config"
	"marketplace-backend/pkg/db"
	"marketplace-backend/pkg/lock"
	"marketplace-backend/pkg/logger"
	"marketplace-backend/pkg/ratelimit"
	"marketplace-backend/pkg/redis"
	"marketplace-backend/pkg/task"
	"marketplace-backend/services/offer"
	"marketplace-backend/services/order"
	"marketplace-backend/services/payment"
)

const defaultSweepInterval = time.Minute

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		lock.Module,
		ratelimit.Module,
		blockchain.Module,
		task.Client,
		task.Server,
		fx.Provide(
			provideSnowflakeNode,
			offer.NewService,
			order.NewService,
			func(l *ratelimit.Limiter) order.RateLimiter { return l },
		),
		payment.Module,
		payment.TaskModule,
		order.TaskModule,
		fx.Invoke(runSweepScheduler),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

// runSweepScheduler enqueues the expiry sweep on a fixed interval. The read
// path stays correct without it; the sweep just bounds how long stale rows
// survive.
func runSweepScheduler(lc fx.Lifecycle, cfg *config.Config, enqueuer task.Enqueuer) {
	interval := cfg.Sweep.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if _, err := enqueuer.Enqueue(order.NewExpireSweepTask()); err != nil {
							zap.L().Error("failed to enqueue expiry sweep", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})
}

package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace-backend/pkg/blockchain"
	"marketplace-backend/pkg/config"
	"marketplace-backend/pkg/db"
	"marketplace-backend/pkg/health"
	"marketplace-backend/pkg/lock"
	"marketplace-backend/pkg/logger"
	"marketplace-backend/pkg/ratelimit"
	"marketplace-backend/pkg/redis"
	"marketplace-backend/pkg/server"
	"marketplace-backend/pkg/task"
	"marketplace-backend/services/offer"
	"marketplace-backend/services/order"
	"marketplace-backend/services/payment"
	"marketplace-backend/services/user"
)

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
		fx.Provide(provideSnowflakeNode),
		fx.Invoke(autoMigrate),
		server.ProvideHTTPServer,
		health.Module,
		offer.Module,
		order.Module,
		payment.Module,
		user.Module,
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

func autoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&offer.Offer{}, &order.Order{}, &user.User{})
}

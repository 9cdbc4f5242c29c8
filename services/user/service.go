package user

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"marketplace-backend/pkg/config"
	"marketplace-backend/pkg/middleware"
	"marketplace-backend/pkg/rediskey"
	"marketplace-backend/pkg/repository"
)

// RateLimiter caps registrations per app per window.
type RateLimiter interface {
	Allow(ctx context.Context, name string, limit int64, window time.Duration) error
}

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	users   repository.Repository[User]
	limiter RateLimiter
	cfg     *config.Config
}

type ServiceParams struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Limiter RateLimiter
	Config  *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		users:   repository.ProvideStore[User](p.DB),
		limiter: p.Limiter,
		cfg:     p.Config,
	}
}

// Register upserts the caller's identity row. Re-registration refreshes the
// device and wallet bindings instead of erroring, so the flow is safe for
// clients to repeat.
func (s *Service) Register(ctx context.Context, caller middleware.Caller) (*User, error) {
	limits := s.cfg.Limits
	if err := s.limiter.Allow(ctx,
		rediskey.BuildRegistrationLimitKey(caller.AppID),
		limits.RegistrationPerApp, limits.RegistrationWindow); err != nil {
		return nil, err
	}

	existing, err := s.users.FindOne(ctx, &User{AppID: caller.AppID, UserID: caller.UserID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.DeviceID != caller.DeviceID || existing.WalletAddress != caller.WalletAddress {
			if err := s.users.Update(ctx, existing.ID, map[string]any{
				"device_id":      caller.DeviceID,
				"wallet_address": caller.WalletAddress,
			}); err != nil {
				return nil, err
			}
			existing.DeviceID = caller.DeviceID
			existing.WalletAddress = caller.WalletAddress
		}
		return existing, nil
	}

	u := &User{
		ID:            NewUserID(s.node),
		AppID:         caller.AppID,
		UserID:        caller.UserID,
		DeviceID:      caller.DeviceID,
		WalletAddress: caller.WalletAddress,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"marketplace-backend/pkg/middleware"
	"marketplace-backend/pkg/ratelimit"
)

var Module = fx.Module("user.service",
	fx.Provide(
		func(l *ratelimit.Limiter) RateLimiter { return l },
		NewService,
	),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, s *Service) {
	r.POST("/v1/users", middleware.Auth(), s.register)
}

func (s *Service) register(c *gin.Context) {
	caller := middleware.CallerFromGin(c)

	u, err := s.Register(c.Request.Context(), caller)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":             u.ID,
		"app_id":         u.AppID,
		"user_id":        u.UserID,
		"wallet_address": u.WalletAddress,
	})
}

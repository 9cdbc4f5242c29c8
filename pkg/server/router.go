package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace-backend/pkg/config"
	"marketplace-backend/pkg/middleware"
)

// NewRouter builds the gin engine shared by every service module; the
// modules attach their own route groups through fx.Invoke.
func NewRouter(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Error())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

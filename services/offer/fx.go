package offer

import (
	"net/http"

	"marketplace-backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("offer.service",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, s *Service) {
	g := r.Group("/v1/offers", middleware.Auth())
	g.GET("", s.listOffers)
	g.GET("/:offer_id", s.getOffer)
}

func (s *Service) listOffers(c *gin.Context) {
	caller := middleware.CallerFromGin(c)

	offers, err := s.List(c.Request.Context(), caller.AppID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": offers})
}

func (s *Service) getOffer(c *gin.Context) {
	off, err := s.Get(c.Request.Context(), c.Param("offer_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, off)
}

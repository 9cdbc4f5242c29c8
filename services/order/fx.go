package order

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"

	"marketplace-backend/pkg/db/pagination"
	"marketplace-backend/pkg/errutil"
	"marketplace-backend/pkg/middleware"
	"marketplace-backend/pkg/ratelimit"
)

var Module = fx.Module("order.service",
	fx.Provide(
		func(l *ratelimit.Limiter) RateLimiter { return l },
		NewService,
	),
	fx.Invoke(registerRoutes),
)

// TaskModule hangs the sweep handler on the worker's mux. The worker binary
// provides the Service itself; it has no HTTP surface to hang routes on.
var TaskModule = fx.Module("task.order",
	fx.Invoke(registerTaskHandlers),
)

func registerTaskHandlers(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(TaskExpireSweep, s.HandleExpireSweep)
}

func registerRoutes(r *gin.Engine, s *Service) {
	r.POST("/v1/offers/:offer_id/orders", middleware.Auth(), s.createOrder)

	g := r.Group("/v1/orders", middleware.Auth())
	g.POST("/:order_id", s.submitOrder)
	g.DELETE("/:order_id", s.cancelOrder)
	g.GET("/:order_id", s.getOrder)
	g.GET("", s.orderHistory)
}

type createOrderRequest struct {
	Origin Origin `json:"origin"`
}

func (s *Service) createOrder(c *gin.Context) {
	caller := middleware.CallerFromGin(c)

	var req createOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
			return
		}
	}

	result, err := s.CreateOrder(c.Request.Context(), caller, c.Param("offer_id"), req.Origin)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

type submitOrderRequest struct {
	Form map[string]any `json:"form"`
}

func (s *Service) submitOrder(c *gin.Context) {
	caller := middleware.CallerFromGin(c)

	var req submitOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
			return
		}
	}

	view, err := s.SubmitOrder(c.Request.Context(), caller, c.Param("order_id"), req.Form)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Service) cancelOrder(c *gin.Context) {
	caller := middleware.CallerFromGin(c)

	if err := s.CancelOrder(c.Request.Context(), caller, c.Param("order_id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Service) getOrder(c *gin.Context) {
	caller := middleware.CallerFromGin(c)

	view, err := s.GetOrder(c.Request.Context(), caller, c.Param("order_id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Service) orderHistory(c *gin.Context) {
	caller := middleware.CallerFromGin(c)

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.Error(errutil.BadRequest("invalid pagination query", errutil.WithErr(err)))
		return
	}

	views, info, err := s.OrderHistory(c.Request.Context(), caller, page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": views,
		"paging": info,
	})
}

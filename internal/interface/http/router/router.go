// Package router 路由注册
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/internal/domain/user"
	"github.com/xiebiao/rentalhub/internal/interface/http/handler"
	"github.com/xiebiao/rentalhub/internal/interface/http/middleware"
	"github.com/xiebiao/rentalhub/pkg/response"
)

// Handlers 全部HTTP处理器
type Handlers struct {
	User      *handler.UserHandler
	Product   *handler.ProductHandler
	Order     *handler.OrderHandler
	Scheduler *handler.SchedulerHandler
}

// Options 引擎选项
type Options struct {
	Mode          string // debug / release / test
	EnableSwagger bool
}

// New 创建Gin引擎并注册全部路由
//
// 路由一览：
//
//	GET  /ping                             健康检查
//	GET  /metrics                          Prometheus指标
//	POST /api/v1/users/{register,login}    公开
//	POST /api/v1/users/logout              需登录
//	GET  /api/v1/products[/:id]            公开
//	GET  /api/v1/products/:id/availability 公开
//	POST /api/v1/products[/:id/restock]    需登录
//	*    /api/v1/orders/...                需登录
//	*    /api/v1/admin/scheduler/...       仅管理员
func New(h Handlers, auth *middleware.AuthMiddleware, logger *zap.Logger, opts Options) *gin.Engine {
	switch opts.Mode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(opts.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.Metrics())

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")

	// 用户
	users := v1.Group("/users")
	{
		users.POST("/register", h.User.Register)
		users.POST("/login", h.User.Login)
		users.POST("/logout", auth.RequireAuth(), h.User.Logout)
	}

	// 商品
	products := v1.Group("/products")
	{
		products.GET("", h.Product.ListProducts)
		products.GET("/:id", h.Product.GetProduct)
		products.GET("/:id/availability", h.Product.Availability)
		products.POST("", auth.RequireAuth(), middleware.RequireRole(user.RoleVendor), h.Product.PublishProduct)
		products.POST("/:id/restock", auth.RequireAuth(), h.Product.Restock)
	}

	// 订单（权限由应用层按订单归属判断）
	orders := v1.Group("/orders")
	orders.Use(auth.RequireAuth())
	{
		orders.POST("", h.Order.CreateOrder)
		orders.GET("", h.Order.ListOrders)
		orders.GET("/:id", h.Order.GetOrder)
		orders.GET("/:id/late-fee", h.Order.LateFee)
		orders.POST("/:id/send", h.Order.SendOrder)
		orders.POST("/:id/confirm", h.Order.ConfirmOrder)
		orders.POST("/:id/pickup", h.Order.PickupOrder)
		orders.POST("/:id/return", h.Order.ReturnOrder)
		orders.POST("/:id/cancel", h.Order.CancelOrder)
	}

	// 管理
	admin := v1.Group("/admin")
	admin.Use(auth.RequireAuth(), middleware.RequireRole(user.RoleAdmin))
	{
		admin.GET("/scheduler", h.Scheduler.Status)
		admin.POST("/scheduler/start", h.Scheduler.Start)
		admin.POST("/scheduler/stop", h.Scheduler.Stop)
		admin.POST("/scheduler/sweep", h.Scheduler.Sweep)
	}

	return r
}

package routers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/LockDeal/config"
	"github.com/Gopher0727/LockDeal/internal/handlers"
	"github.com/Gopher0727/LockDeal/internal/middlewares"
)

// Handlers 全部 HTTP 处理器
type Handlers struct {
	Auth    *handlers.AuthHandler
	Group   *handlers.GroupHandler
	Seller  *handlers.SellerHandler
	Product *handlers.ProductHandler
	Rating  *handlers.RatingHandler
	Deal    *handlers.DealHandler
}

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, cfg *config.Config, mw *middlewares.MiddlewareManager, h Handlers) {
	r.Use(mw.Trace(), mw.Logger(), mw.Recovery())
	r.Use(middlewares.MaxConcurrencyMiddleware(cfg.RateLimit.MaxConcurrent))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	public := r.Group("/api/v1")
	public.Use(mw.RateLimit(cfg.RateLimit.APIPerMinute))

	authed := r.Group("/api/v1")
	authed.Use(mw.JWTAuth(), mw.RateLimit(cfg.RateLimit.APIPerMinute))

	RegisterAuthRoutes(public, authed, h.Auth)
	RegisterSellerRoutes(public, authed, h.Seller)
	RegisterProductRoutes(public, authed, h.Product)
	RegisterGroupRoutes(authed, h.Group)
	RegisterRatingRoutes(authed, h.Rating)
	RegisterDealRoutes(authed, h.Deal)
}

func RegisterAuthRoutes(public, authed *gin.RouterGroup, h *handlers.AuthHandler) {
	public.POST("/users", h.Register)       // 登记用户并签发 Token
	public.POST("/auth/refresh", h.Refresh) // 换发 Token
	authed.GET("/users/me", h.Me)
	authed.PATCH("/users/me", h.UpdateProfile)
}

func RegisterSellerRoutes(public, authed *gin.RouterGroup, h *handlers.SellerHandler) {
	authed.POST("/sellers", h.Register)         // 填写卖家资料
	authed.POST("/sellers/me/paid", h.MarkPaid) // 入驻费已缴

	sellers := public.Group("/sellers")
	{
		sellers.GET("/:id", h.Get)
		sellers.GET("/:id/trust", h.TrustScore)
		sellers.GET("/:id/permissions", h.Permissions)
		sellers.GET("/:id/can-create-group", h.CanCreateGroup)
		sellers.GET("/:id/can-set-price", h.CanSetPrice)
		sellers.GET("/:id/products", h.Products)
		sellers.GET("/:id/ratings", h.Ratings)
	}
}

func RegisterProductRoutes(public, authed *gin.RouterGroup, h *handlers.ProductHandler) {
	public.GET("/products", h.List)
	public.GET("/products/:id", h.Get)

	authed.POST("/products", h.Create)
	authed.PUT("/products/:id", h.Update)
	authed.DELETE("/products/:id", h.Delete)
}

func RegisterGroupRoutes(authed *gin.RouterGroup, h *handlers.GroupHandler) {
	groups := authed.Group("/groups")
	{
		groups.POST("", h.CreateGroup)

		// 列表
		groups.GET("/available", h.ListAvailable)
		groups.GET("/accepted", h.ListAccepted)
		groups.GET("/completed", h.ListCompleted)
		groups.GET("/mine", h.ListMine)

		groups.GET("/:id", h.GetGroup)
		groups.POST("/:id/join", h.Join)
		groups.POST("/:id/lock", h.Lock)
		groups.POST("/:id/accept", h.Accept)

		// 提货
		groups.POST("/:id/pickup/verify", h.VerifyPickup)
		groups.POST("/:id/pickup/code", h.RegenerateOTP)
		groups.POST("/members/:member_id/pickup", h.ConfirmPickup)
	}
}

func RegisterRatingRoutes(authed *gin.RouterGroup, h *handlers.RatingHandler) {
	authed.POST("/ratings", h.Rate)
	authed.GET("/ratings/mine", h.ListMine)
}

func RegisterDealRoutes(authed *gin.RouterGroup, h *handlers.DealHandler) {
	deals := authed.Group("/deals")
	{
		deals.GET("", h.List)
		deals.GET("/:id", h.Get)
		deals.POST("/:id/cancel", h.Cancel)
		deals.GET("/customers/:customer_id/pending", h.CustomerPending)
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Gopher0727/LockDeal/internal/services"
)

// SellerHandler 卖家资料, 信任分与权限
type SellerHandler struct {
	sellerService  *services.SellerService
	productService *services.ProductService
	ratingService  *services.RatingService
}

func NewSellerHandler(sellerService *services.SellerService, productService *services.ProductService, ratingService *services.RatingService) *SellerHandler {
	return &SellerHandler{
		sellerService:  sellerService,
		productService: productService,
		ratingService:  ratingService,
	}
}

type TrustResponse struct {
	SellerID   uint    `json:"seller_id"`
	TrustScore float64 `json:"trust_score"`
}

type PriceCheckResponse struct {
	Allowed     bool                 `json:"allowed"`
	Price       decimal.Decimal      `json:"price"`
	Permissions services.Permissions `json:"permissions"`
}

// Register 创建或更新当前卖家的资料
func (h *SellerHandler) Register(c *gin.Context) {
	var req services.RegisterSellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	seller, err := h.sellerService.Register(c.Request.Context(), actorOf(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, seller)
}

// MarkPaid 入驻费回调
func (h *SellerHandler) MarkPaid(c *gin.Context) {
	seller, err := h.sellerService.MarkPaid(c.Request.Context(), actorOf(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, seller)
}

func (h *SellerHandler) Get(c *gin.Context) {
	sellerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	profile, err := h.sellerService.Get(c.Request.Context(), sellerID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, profile)
}

func (h *SellerHandler) TrustScore(c *gin.Context) {
	sellerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	score, err := h.sellerService.TrustScore(c.Request.Context(), sellerID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, TrustResponse{SellerID: sellerID, TrustScore: score})
}

func (h *SellerHandler) Permissions(c *gin.Context) {
	sellerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	perms, err := h.sellerService.Permissions(c.Request.Context(), sellerID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, perms)
}

func (h *SellerHandler) CanCreateGroup(c *gin.Context) {
	sellerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	capacity, err := h.sellerService.CanCreateGroup(c.Request.Context(), sellerID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, capacity)
}

// CanSetPrice ?price=7000
func (h *SellerHandler) CanSetPrice(c *gin.Context) {
	sellerID, ok := pathID(c, "id")
	if !ok {
		return
	}
	price, err := decimal.NewFromString(c.Query("price"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 price"})
		return
	}

	allowed, perms, err := h.sellerService.CanSetPrice(c.Request.Context(), sellerID, price)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, PriceCheckResponse{Allowed: allowed, Price: price, Permissions: perms})
}

func (h *SellerHandler) Products(c *gin.Context) {
	sellerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	products, err := h.productService.ListBySeller(c.Request.Context(), sellerID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, products)
}

func (h *SellerHandler) Ratings(c *gin.Context) {
	sellerID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ratings, err := h.ratingService.ListForSeller(c.Request.Context(), sellerID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, ratings)
}

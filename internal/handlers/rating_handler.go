package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/LockDeal/internal/services"
)

type RatingHandler struct {
	ratingService *services.RatingService
}

func NewRatingHandler(ratingService *services.RatingService) *RatingHandler {
	return &RatingHandler{ratingService: ratingService}
}

// Rate 顾客评价卖家, 同一 (卖家, 商品) 重复评价会覆盖
func (h *RatingHandler) Rate(c *gin.Context) {
	var req services.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rating, err := h.ratingService.Rate(c.Request.Context(), actorOf(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, rating)
}

func (h *RatingHandler) ListMine(c *gin.Context) {
	ratings, err := h.ratingService.ListMine(c.Request.Context(), actorOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, ratings)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/LockDeal/internal/services"
)

type DealHandler struct {
	dealService *services.DealService
}

func NewDealHandler(dealService *services.DealService) *DealHandler {
	return &DealHandler{dealService: dealService}
}

// List 当前卖家的成交单
func (h *DealHandler) List(c *gin.Context) {
	deals, err := h.dealService.ListForSeller(c.Request.Context(), actorOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, deals)
}

func (h *DealHandler) Get(c *gin.Context) {
	dealID, ok := pathID(c, "id")
	if !ok {
		return
	}

	deal, err := h.dealService.Get(c.Request.Context(), actorOf(c), dealID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, deal)
}

func (h *DealHandler) Cancel(c *gin.Context) {
	dealID, ok := pathID(c, "id")
	if !ok {
		return
	}

	deal, err := h.dealService.Cancel(c.Request.Context(), actorOf(c), dealID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, deal)
}

// CustomerPending 某顾客在本店尚未提货的商品
func (h *DealHandler) CustomerPending(c *gin.Context) {
	customerID, ok := pathID(c, "customer_id")
	if !ok {
		return
	}

	pending, err := h.dealService.CustomerPendingItems(c.Request.Context(), actorOf(c), customerID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, pending)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/LockDeal/internal/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ProductHandler struct {
	productService *services.ProductService
}

func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

func (h *ProductHandler) Create(c *gin.Context) {
	var req services.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.productService.Create(c.Request.Context(), actorOf(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, product)
}

func (h *ProductHandler) Update(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	product, err := h.productService.Update(c.Request.Context(), actorOf(c), productID, req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, product)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.productService.Delete(c.Request.Context(), actorOf(c), productID); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"id": productID})
}

func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}

	product, err := h.productService.Get(c.Request.Context(), productID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, product)
}

// List ?limit=20&offset=0
func (h *ProductHandler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	page, err := h.productService.List(c.Request.Context(), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, page)
}

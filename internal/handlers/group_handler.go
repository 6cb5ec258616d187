package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/LockDeal/internal/services"
)

// GroupHandler 团购生命周期与提货接口
type GroupHandler struct {
	groupService  *services.GroupService
	pickupService *services.PickupService
}

func NewGroupHandler(groupService *services.GroupService, pickupService *services.PickupService) *GroupHandler {
	return &GroupHandler{
		groupService:  groupService,
		pickupService: pickupService,
	}
}

type CreateGroupRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
}

type JoinGroupRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type PickupCodeResponse struct {
	GroupID uint   `json:"group_id"`
	Code    string `json:"pickup_code"`
}

// CreateGroup 开团
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	group, err := h.groupService.CreateGroup(c.Request.Context(), actorOf(c), req.ProductID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, group)
}

func (h *GroupHandler) GetGroup(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	group, err := h.groupService.GetGroup(c.Request.Context(), groupID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, group)
}

// Join 参团, 请求体中的数量必须为正
func (h *GroupHandler) Join(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req JoinGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	member, err := h.groupService.Join(c.Request.Context(), actorOf(c), groupID, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, member)
}

func (h *GroupHandler) Lock(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	group, err := h.groupService.Lock(c.Request.Context(), actorOf(c), groupID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, group)
}

// Accept 接单. 提货码只发给顾客, 不出现在响应里
func (h *GroupHandler) Accept(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	res, err := h.groupService.Accept(c.Request.Context(), actorOf(c), groupID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, res)
}

// ConfirmPickup 卖家按成员确认提货 (不校验提货码)
func (h *GroupHandler) ConfirmPickup(c *gin.Context) {
	memberID, ok := pathID(c, "member_id")
	if !ok {
		return
	}

	group, err := h.groupService.ConfirmPickup(c.Request.Context(), actorOf(c), memberID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, group)
}

// VerifyPickup 卖家凭提货码核销
func (h *GroupHandler) VerifyPickup(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.VerifyPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.GroupID = groupID

	manifest, err := h.pickupService.VerifyPickup(c.Request.Context(), actorOf(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, manifest)
}

// RegenerateOTP 顾客重新获取自己的提货码
func (h *GroupHandler) RegenerateOTP(c *gin.Context) {
	groupID, ok := pathID(c, "id")
	if !ok {
		return
	}

	code, err := h.pickupService.RegenerateOTP(c.Request.Context(), actorOf(c), groupID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, PickupCodeResponse{GroupID: groupID, Code: code})
}

func (h *GroupHandler) writeViews(c *gin.Context, views []services.GroupView, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, views)
}

// ListAvailable 达到门槛待接单的团购
func (h *GroupHandler) ListAvailable(c *gin.Context) {
	views, err := h.groupService.ListAvailable(c.Request.Context(), actorOf(c))
	h.writeViews(c, views, err)
}

func (h *GroupHandler) ListAccepted(c *gin.Context) {
	views, err := h.groupService.ListAccepted(c.Request.Context(), actorOf(c))
	h.writeViews(c, views, err)
}

func (h *GroupHandler) ListCompleted(c *gin.Context) {
	views, err := h.groupService.ListCompleted(c.Request.Context(), actorOf(c))
	h.writeViews(c, views, err)
}

// ListMine 顾客: 参与的团; 卖家: 自己的团
func (h *GroupHandler) ListMine(c *gin.Context) {
	views, err := h.groupService.ListMine(c.Request.Context(), actorOf(c))
	h.writeViews(c, views, err)
}

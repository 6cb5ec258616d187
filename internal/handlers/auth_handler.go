package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/services"
	"github.com/Gopher0727/LockDeal/middleware/jwt"
)

// AuthHandler 用户登记与 Token 签发
type AuthHandler struct {
	userService  *services.UserService
	tokenManager *jwt.TokenManager
}

func NewAuthHandler(userService *services.UserService, tokenManager *jwt.TokenManager) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		tokenManager: tokenManager,
	}
}

type TokenResponse struct {
	User  *models.User `json:"user,omitempty"`
	Token string       `json:"token"`
}

type RefreshRequest struct {
	Token string `json:"token" binding:"required"`
}

// Register 登记用户并签发 Token
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	token, err := h.tokenManager.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, TokenResponse{User: user, Token: token})
}

// Refresh 在刷新窗口内换发新 Token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, err := h.tokenManager.RefreshToken(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	success(c, http.StatusOK, TokenResponse{Token: token})
}

// Me 当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), actorOf(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, user)
}

// UpdateProfile 修改当前用户姓名
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), actorOf(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, user)
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/LockDeal/internal/middlewares"
	"github.com/Gopher0727/LockDeal/internal/models"
	"github.com/Gopher0727/LockDeal/internal/services"
)

func success(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// statusOf 服务层错误 -> HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrInvalidOTP),
		errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrStorage):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail 写出错误响应. 存储与未知错误不向客户端暴露细节
func fail(c *gin.Context, err error) {
	status := statusOf(err)
	message := err.Error()
	switch status {
	case http.StatusServiceUnavailable:
		message = "服务暂时不可用, 请稍后重试"
	case http.StatusInternalServerError:
		message = "服务器内部错误"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": message})
}

// actorOf 从认证中间件写入的 context 取当前用户
func actorOf(c *gin.Context) services.Actor {
	return services.Actor{
		UserID: c.GetUint(middlewares.ContextUserID),
		Role:   models.Role(c.GetString(middlewares.ContextRole)),
	}
}

// pathID 解析路径中的正整数 ID, 失败时已写出 400
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 " + name})
		return 0, false
	}
	return uint(id), true
}

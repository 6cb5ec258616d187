package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// 服务层错误. 返回值均可用 errors.Is 匹配下列哨兵
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidOTP   = errors.New("invalid pickup code")
	ErrValidation   = errors.New("validation failed")
	ErrStorage      = errors.New("storage unavailable")
)

// ErrInvalidState 的细分
var (
	ErrAlreadyLocked      = fmt.Errorf("%w: group already locked", ErrInvalidState)
	ErrAlreadyAccepted    = fmt.Errorf("%w: group already accepted", ErrInvalidState)
	ErrNotAccepted        = fmt.Errorf("%w: group not accepted yet", ErrInvalidState)
	ErrPickupWindowClosed = fmt.Errorf("%w: pickup is not open today", ErrInvalidState)
	ErrTooManyAttempts    = fmt.Errorf("%w: too many pickup attempts, try again later", ErrInvalidState)
)

// ErrPriceLimitExceeded 价格超出卖家信任档位上限
var ErrPriceLimitExceeded = fmt.Errorf("%w: price exceeds the seller's limit", ErrValidation)

var domainErrors = []error{ErrNotFound, ErrForbidden, ErrInvalidState, ErrInvalidOTP, ErrValidation, ErrStorage}

// dbErr 归类仓储错误: 记录不存在 -> ErrNotFound, 其余 -> ErrStorage
func dbErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return fmt.Errorf("%w: %s: %v", ErrStorage, what, err)
}

// finish 保证事务返回的错误可被归类; 提交失败等未分类错误视为存储错误
func finish(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

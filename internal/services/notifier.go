package services

import (
	"context"

	"go.uber.org/zap"

	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

// PickupNotice 发给顾客的提货码通知
type PickupNotice struct {
	GroupID     uint   `json:"group_id"`
	MemberID    uint   `json:"member_id"`
	UserID      uint   `json:"user_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	ProductName string `json:"product_name"`
	Code        string `json:"code"`
}

// OTPNotifier 提货码的投递通道, 在事务提交之后调用
type OTPNotifier interface {
	NotifyPickupOTP(ctx context.Context, notice PickupNotice) error
}

// LogNotifier 未配置消息队列时使用, 只记录日志, 不输出提货码
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyPickupOTP(ctx context.Context, notice PickupNotice) error {
	n.log.InfoContext(ctx, "pickup code issued",
		zap.Uint("group_id", notice.GroupID),
		zap.Uint("member_id", notice.MemberID),
		zap.Uint("user_id", notice.UserID),
	)
	return nil
}

// deliver 逐条投递, 失败只记录, 不影响已提交的事务
func deliver(ctx context.Context, n OTPNotifier, log *logger.Logger, notices []PickupNotice) {
	if n == nil {
		return
	}
	for _, notice := range notices {
		if err := n.NotifyPickupOTP(ctx, notice); err != nil {
			log.WarnContext(ctx, "pickup code notification failed",
				zap.Uint("group_id", notice.GroupID),
				zap.Uint("user_id", notice.UserID),
				zap.Error(err),
			)
		}
	}
}

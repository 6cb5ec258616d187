package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Gopher0727/LockDeal/internal/services"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
	"github.com/Gopher0727/LockDeal/utils/workerpool"
)

// AsyncNotifier 把通知放进协程池发送, 接单请求不等待 Kafka
type AsyncNotifier struct {
	next    services.OTPNotifier
	pool    *workerpool.Pool
	timeout time.Duration
	log     *logger.Logger
}

func NewAsyncNotifier(next services.OTPNotifier, workers, queueSize int, timeout time.Duration, log *logger.Logger) *AsyncNotifier {
	pool := workerpool.New(workers, queueSize, log.Logger)
	pool.Start()
	return &AsyncNotifier{next: next, pool: pool, timeout: timeout, log: log}
}

// NotifyPickupOTP 入队即返回. 队列满时退回同步发送
func (a *AsyncNotifier) NotifyPickupOTP(ctx context.Context, notice services.PickupNotice) error {
	// 请求结束后 ctx 会被取消, 只保留其中的 trace id
	detached := context.WithoutCancel(ctx)
	job := func() {
		sendCtx := detached
		if a.timeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(detached, a.timeout)
			defer cancel()
		}
		if err := a.next.NotifyPickupOTP(sendCtx, notice); err != nil {
			a.log.WarnContext(sendCtx, "pickup code notification failed",
				zap.Uint("group_id", notice.GroupID),
				zap.Uint("user_id", notice.UserID),
				zap.Error(err),
			)
		}
	}

	if err := a.pool.TrySubmit(job); err != nil {
		a.log.WarnContext(ctx, "notification queue unavailable, sending inline", zap.Error(err))
		return a.next.NotifyPickupOTP(ctx, notice)
	}
	return nil
}

// Close 等待已排队的通知发送完
func (a *AsyncNotifier) Close() {
	a.pool.Stop()
}

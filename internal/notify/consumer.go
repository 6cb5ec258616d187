package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

// Deliverer 把提货码送达顾客 (短信/邮件网关)
type Deliverer interface {
	Deliver(ctx context.Context, event PickupOTPEvent) error
}

// LogDeliverer 没有接入网关时使用, 只记录投递, 不输出提货码
type LogDeliverer struct {
	log *logger.Logger
}

func NewLogDeliverer(log *logger.Logger) *LogDeliverer {
	return &LogDeliverer{log: log}
}

func (d *LogDeliverer) Deliver(ctx context.Context, event PickupOTPEvent) error {
	d.log.InfoContext(ctx, "pickup code delivered",
		zap.Uint("group_id", event.GroupID),
		zap.Uint("user_id", event.UserID),
		zap.String("email", event.Email),
	)
	return nil
}

// PickupOTPConsumer 消费通知 topic 中的 pickup_otp 事件
type PickupOTPConsumer struct {
	deliverer Deliverer
	log       *logger.Logger
}

func NewPickupOTPConsumer(deliverer Deliverer, log *logger.Logger) *PickupOTPConsumer {
	return &PickupOTPConsumer{deliverer: deliverer, log: log}
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (c *PickupOTPConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (c *PickupOTPConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (c *PickupOTPConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		c.handle(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}

// handle 解析失败或投递失败都只记录, 消息仍标记为已消费, 避免死循环
func (c *PickupOTPConsumer) handle(ctx context.Context, message *sarama.ConsumerMessage) {
	var event PickupOTPEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		c.log.WarnContext(ctx, "反序列化消息失败",
			zap.String("topic", message.Topic),
			zap.Int64("offset", message.Offset),
			zap.Error(err),
		)
		return
	}
	if event.Type != EventPickupOTP {
		return
	}

	ctx = logger.WithTraceID(ctx, event.TraceID)
	if err := c.deliverer.Deliver(ctx, event); err != nil {
		c.log.ErrorContext(ctx, "pickup code delivery failed",
			zap.Uint("group_id", event.GroupID),
			zap.Uint("user_id", event.UserID),
			zap.Error(err),
		)
	}
}

// StartConsumer 加入消费者组并在后台消费, ctx 取消后退出并关闭客户端
func StartConsumer(ctx context.Context, brokers []string, groupID, topic string, handler sarama.ConsumerGroupHandler, log *logger.Logger) error {
	sc := sarama.NewConfig()
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, sc)
	if err != nil {
		return fmt.Errorf("创建消费者组客户端失败: %w", err)
	}

	go func() {
		defer client.Close()
		for {
			if err := client.Consume(ctx, []string{topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				log.ErrorContext(ctx, "消费者错误", zap.Error(err))
			}
			// check if context was cancelled, signaling that the consumer should stop
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Gopher0727/LockDeal/config"
	"github.com/Gopher0727/LockDeal/internal/services"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

// EventPickupOTP 提货码通知事件类型
const EventPickupOTP = "pickup_otp"

// PickupOTPEvent 写入 Kafka 的提货码事件, 由下游的短信/邮件服务消费
type PickupOTPEvent struct {
	Type        string    `json:"type"`
	GroupID     uint      `json:"group_id"`
	MemberID    uint      `json:"member_id"`
	UserID      uint      `json:"user_id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	ProductName string    `json:"product_name"`
	Code        string    `json:"code"`
	TraceID     string    `json:"trace_id,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
}

// KafkaNotifier 通过 sarama 同步生产者投递提货码
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	log      *logger.Logger
	now      func() time.Time
}

// NewKafkaNotifier 按配置连接 Kafka 集群
func NewKafkaNotifier(cfg *config.KafkaConfig, log *logger.Logger) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka.brokers 不能为空")
	}

	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("启动 Sarama 生产者失败: %w", err)
	}
	return NewKafkaNotifierWithProducer(producer, cfg.Topic, log), nil
}

// NewKafkaNotifierWithProducer 使用已有的生产者, 测试中传入 mocks.SyncProducer
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string, log *logger.Logger) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic, log: log, now: time.Now}
}

var _ services.OTPNotifier = (*KafkaNotifier)(nil)

// NotifyPickupOTP 以用户 ID 作为消息 key, 同一用户的通知落在同一分区
func (k *KafkaNotifier) NotifyPickupOTP(ctx context.Context, notice services.PickupNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := PickupOTPEvent{
		Type:        EventPickupOTP,
		GroupID:     notice.GroupID,
		MemberID:    notice.MemberID,
		UserID:      notice.UserID,
		Email:       notice.Email,
		Name:        notice.Name,
		ProductName: notice.ProductName,
		Code:        notice.Code,
		TraceID:     logger.GetTraceID(ctx),
		IssuedAt:    k.now().UTC(),
	}
	bytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(notice.UserID), 10)),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte(EventPickupOTP)},
		},
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送消息到 kafka 失败: %w", err)
	}

	k.log.DebugContext(ctx, "pickup code published",
		zap.String("topic", k.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.Uint("group_id", notice.GroupID),
	)
	return nil
}

func (k *KafkaNotifier) Close() error {
	return k.producer.Close()
}

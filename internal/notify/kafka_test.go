package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/LockDeal/config"
	"github.com/Gopher0727/LockDeal/internal/services"
	logger "github.com/Gopher0727/LockDeal/middleware/log"
)

func newMockProducer(t *testing.T) *mocks.SyncProducer {
	sc := mocks.NewTestConfig()
	sc.Producer.Return.Successes = true
	return mocks.NewSyncProducer(t, sc)
}

func TestKafkaNotifier_PublishesEvent(t *testing.T) {
	producer := newMockProducer(t)
	issued := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

	var got PickupOTPEvent
	var key string
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "lockdeal.notifications" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		k, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		key = string(k)
		v, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		return json.Unmarshal(v, &got)
	})

	n := NewKafkaNotifierWithProducer(producer, "lockdeal.notifications", logger.NewNop())
	n.now = func() time.Time { return issued }
	ctx := logger.WithTraceID(context.Background(), "trace-1")

	err := n.NotifyPickupOTP(ctx, services.PickupNotice{
		GroupID: 7, MemberID: 11, UserID: 42, Email: "andi@lockdeal.test", Name: "andi", ProductName: "Beras", Code: "123456",
	})
	require.NoError(t, err)
	require.NoError(t, n.Close())

	assert.Equal(t, "42", key)
	assert.Equal(t, EventPickupOTP, got.Type)
	assert.EqualValues(t, 7, got.GroupID)
	assert.EqualValues(t, 11, got.MemberID)
	assert.Equal(t, "123456", got.Code)
	assert.Equal(t, "trace-1", got.TraceID)
	assert.True(t, issued.Equal(got.IssuedAt))
}

func TestKafkaNotifier_SendFailure(t *testing.T) {
	producer := newMockProducer(t)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	n := NewKafkaNotifierWithProducer(producer, "lockdeal.notifications", logger.NewNop())
	err := n.NotifyPickupOTP(context.Background(), services.PickupNotice{UserID: 1, Code: "654321"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, n.Close())
}

func TestKafkaNotifier_CancelledContext(t *testing.T) {
	producer := newMockProducer(t)
	n := NewKafkaNotifierWithProducer(producer, "topic", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.NotifyPickupOTP(ctx, services.PickupNotice{UserID: 1})
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, n.Close())
}

func TestNewKafkaNotifier_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaNotifier(&config.KafkaConfig{Topic: "t"}, logger.NewNop())
	assert.Error(t, err)
}

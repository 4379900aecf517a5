package push

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"moment_social_server/internal/config"
)

// KafkaNotifier 基于 Kafka 的推送实现
type KafkaNotifier struct {
	writer *kafka.Writer
}

// NewKafkaNotifier 创建 Kafka 推送通道
func NewKafkaNotifier(conf *config.KafkaConfig) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(conf.HostPort),
		Topic:                  conf.PushTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           time.Duration(conf.Timeout) * time.Second,
		RequiredAcks:           kafka.RequireNone,
		AllowAutoTopicCreation: true,
	}
	zap.L().Info("Kafka push notifier created", zap.String("addr", conf.HostPort), zap.String("topic", conf.PushTopic))
	return &KafkaNotifier{writer: writer}
}

// Notify 写入推送事件，按 user_id 分区保证同一用户的推送有序
func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		zap.L().Error("marshal push notification failed", zap.Error(err))
		return
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.UserId),
		Value: payload,
	}); err != nil {
		// 推送失败只记日志
		zap.L().Warn("write push notification failed",
			zap.String("user_id", n.UserId), zap.Error(err))
	}
}

// Close 关闭底层 Writer
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

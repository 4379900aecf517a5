package push

import (
	"context"

	"go.uber.org/zap"

	"moment_social_server/internal/config"
)

// NoopNotifier 空实现，Kafka 未启用时使用
type NoopNotifier struct{}

func (NoopNotifier) Notify(_ context.Context, n Notification) {
	zap.L().Debug("push disabled, dropping notification", zap.String("user_id", n.UserId))
}

func (NoopNotifier) Close() error { return nil }

// NewNotifier 按配置选择推送实现
func NewNotifier(conf *config.KafkaConfig) Notifier {
	if conf != nil && conf.Enabled {
		return NewKafkaNotifier(conf)
	}
	return NoopNotifier{}
}

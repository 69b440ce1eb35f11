package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/internal/domain/notification"
	"github.com/xiebiao/rentalhub/pkg/circuitbreaker"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
	"github.com/xiebiao/rentalhub/pkg/metrics"
)

// 路由键:消费方(邮件、短信服务)按需绑定
const (
	RoutingKeyDueSoon = "rental.due_soon"
	RoutingKeyOverdue = "rental.overdue"
)

// Publisher 消息发布接口(pkg/mq.Publisher实现)
type Publisher interface {
	Publish(ctx context.Context, routingKey, messageID string, message interface{}) error
}

// MQNotifier 通过RabbitMQ发布到期提醒事件
// 设计说明:
// 1. 事件ID作为MessageId,消费方据此去重(至少一次投递)
// 2. 熔断器保护:MQ不可用时快速失败,调度器补偿后下个周期重试
type MQNotifier struct {
	publisher Publisher
	breaker   *circuitbreaker.CircuitBreaker
	exchange  string
	logger    *zap.Logger
}

// NewMQNotifier 创建MQ通知端
func NewMQNotifier(publisher Publisher, exchange string, logger *zap.Logger) *MQNotifier {
	logger = logger.With(zap.String("component", "notifier"))
	breaker := circuitbreaker.New("notify-mq", circuitbreaker.Config{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c circuitbreaker.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.SetCircuitBreakerState(name, int(to))
		},
	})
	return &MQNotifier{
		publisher: publisher,
		breaker:   breaker,
		exchange:  exchange,
		logger:    logger,
	}
}

// RoutingKey 提醒类型对应的路由键
func RoutingKey(kind notification.Kind) string {
	if kind == notification.KindOverdue {
		return RoutingKeyOverdue
	}
	return RoutingKeyDueSoon
}

// Notify 实现notification.Notifier
func (n *MQNotifier) Notify(ctx context.Context, m notification.Message) error {
	key := RoutingKey(m.Kind)

	err := n.breaker.Execute(ctx, func(ctx context.Context) error {
		return n.publisher.Publish(ctx, key, m.EventID, m)
	})
	switch {
	case err == nil:
		metrics.RecordCircuitBreakerRequest(n.breaker.Name(), "success")
		metrics.RecordMessagePublished(n.exchange, key)
		return nil
	case errors.Is(err, circuitbreaker.ErrOpenState), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(n.breaker.Name(), "rejected")
	default:
		metrics.RecordCircuitBreakerRequest(n.breaker.Name(), "failure")
	}

	n.logger.Warn("publish reminder failed",
		zap.Uint("order_id", m.OrderID),
		zap.String("routing_key", key),
		zap.Error(err))
	return apperrors.WithCode(apperrors.ErrCodeNotifyError, err, "通知发送失败")
}

// State 熔断器状态
func (n *MQNotifier) State() circuitbreaker.State {
	return n.breaker.State()
}

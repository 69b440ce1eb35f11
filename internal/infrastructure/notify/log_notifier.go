// Package notify 到期提醒的发送端实现
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/internal/domain/notification"
)

// LogNotifier 只写日志的通知端(本地开发、未接入消息队列时使用)
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通知端
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(zap.String("component", "notifier"))}
}

// Notify 实现notification.Notifier
func (n *LogNotifier) Notify(_ context.Context, m notification.Message) error {
	n.logger.Info("rental reminder",
		zap.String("event_id", m.EventID),
		zap.Uint("order_id", m.OrderID),
		zap.String("order_no", m.OrderNo),
		zap.Uint("customer_id", m.CustomerID),
		zap.Uint("vendor_id", m.VendorID),
		zap.String("kind", string(m.Kind)),
		zap.Time("planned_end", time.Unix(m.PlannedEnd, 0)))
	return nil
}

package notification

import (
	"context"
)

// Repository 通知记录仓储
type Repository interface {
	// Record 写入通知记录,(order_id, kind)重复时返回ErrAlreadyNotified
	Record(ctx context.Context, l *Log) error

	// Delete 删除通知记录(发送失败时的补偿动作)
	Delete(ctx context.Context, orderID uint, kind Kind) error

	// Exists 是否已记录
	Exists(ctx context.Context, orderID uint, kind Kind) (bool, error)
}

// Notifier 通知发送端(邮件/短信/消息队列由实现决定)
type Notifier interface {
	Notify(ctx context.Context, n Message) error
}

// Message 发往通知端的消息
type Message struct {
	EventID    string `json:"event_id"`
	OrderID    uint   `json:"order_id"`
	OrderNo    string `json:"order_no"`
	CustomerID uint   `json:"customer_id"`
	VendorID   uint   `json:"vendor_id"`
	Kind       Kind   `json:"kind"`
	PlannedEnd int64  `json:"planned_end"` // Unix秒
}

package notification

import (
	"time"
)

// Kind 到期提醒类型(阈值)
type Kind string

const (
	KindDueSoon Kind = "DUE_SOON" // 即将到期(计划归还时间落在提前量窗口内)
	KindOverdue Kind = "OVERDUE"  // 已逾期(计划归还时间已过)
)

// KindFor 根据计划归还时间判断应触发的阈值
// 返回false表示尚未进入提醒窗口
func KindFor(plannedEnd, now time.Time, lookahead time.Duration) (Kind, bool) {
	switch {
	case !plannedEnd.After(now):
		return KindOverdue, true
	case !plannedEnd.After(now.Add(lookahead)):
		return KindDueSoon, true
	default:
		return "", false
	}
}

// Log 通知记录
// 教学要点:(order_id, kind) 唯一索引保证同一订单同一阈值只通知一次
// 先写记录再发送,发送失败时删除记录(补偿),下个周期会重新尝试
type Log struct {
	ID        uint
	OrderID   uint
	Kind      Kind
	EventID   string // 事件ID(uuid),消息消费方用于去重
	CreatedAt time.Time
}

// NewLog 创建通知记录
func NewLog(orderID uint, kind Kind, eventID string, now time.Time) *Log {
	return &Log{
		OrderID:   orderID,
		Kind:      kind,
		EventID:   eventID,
		CreatedAt: now,
	}
}

package reservation

import (
	"time"
)

// Status 预留状态
type Status string

const (
	StatusActive   Status = "ACTIVE"   // 生效中(计入占用)
	StatusReleased Status = "RELEASED" // 已释放(订单取消或归还)
)

// Reservation 预留记录:某订单行在时间窗口内占用商品的数量
//
// 教学要点:
// 1. 预留是逻辑占用,不扣减商品的实物数量
// 2. 每个订单行最多一条预留(order_line_id唯一索引保证)
// 3. 释放时只改状态、不删除,保留审计轨迹(只增不删的思路)
type Reservation struct {
	ID          uint
	ProductID   uint
	OrderID     uint
	OrderLineID uint
	Quantity    int
	Window      Window
	Status      Status
	CreatedAt   time.Time
	ReleasedAt  *time.Time
}

// New 创建生效中的预留
func New(productID, orderID, orderLineID uint, quantity int, w Window, now time.Time) (*Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Reservation{
		ProductID:   productID,
		OrderID:     orderID,
		OrderLineID: orderLineID,
		Quantity:    quantity,
		Window:      w,
		Status:      StatusActive,
		CreatedAt:   now,
	}, nil
}

// IsActive 是否计入占用
func (r *Reservation) IsActive() bool {
	return r.Status == StatusActive
}

// Release 释放预留(重复释放无副作用)
func (r *Reservation) Release(at time.Time) bool {
	if !r.IsActive() {
		return false
	}
	r.Status = StatusReleased
	r.ReleasedAt = &at
	return true
}

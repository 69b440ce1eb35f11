// Package rental 租赁订单用例:下单、状态流转、滞纳金、订单查询
package rental

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xiebiao/rentalhub/internal/domain/order"
)

const tracerName = "rentalhub/rental"

// TxManager 事务管理器
// fn内的仓储调用共享同一事务;fn返回错误时整体回滚
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// LateFeeSettings 滞纳金配置来源
type LateFeeSettings interface {
	LateFeeConfig() order.LateFeeConfig
}

// StaticLateFeeSettings 固定配置(启动时从配置文件读取)
type StaticLateFeeSettings struct {
	cfg order.LateFeeConfig
}

// NewStaticLateFeeSettings 创建固定滞纳金配置
func NewStaticLateFeeSettings(rate decimal.Decimal, gracePeriodHours int) *StaticLateFeeSettings {
	return &StaticLateFeeSettings{cfg: order.LateFeeConfig{Rate: rate, GracePeriodHours: gracePeriodHours}}
}

// LateFeeConfig 实现LateFeeSettings
func (s *StaticLateFeeSettings) LateFeeConfig() order.LateFeeConfig {
	return s.cfg
}

// =========================================
// 应用层DTO
// =========================================

// OrderLineResponse 订单行
type OrderLineResponse struct {
	ID        uint  `json:"id"`
	ProductID uint  `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
	Amount    int64 `json:"amount"`
	Days      int   `json:"days"`
}

// OrderResponse 订单详情
type OrderResponse struct {
	ID             uint                `json:"id"`
	OrderNo        string              `json:"order_no"`
	CustomerID     uint                `json:"customer_id"`
	VendorID       uint                `json:"vendor_id"`
	Status         string              `json:"status"`
	StatusLabel    string              `json:"status_label"`
	StartAt        time.Time           `json:"start_at"`
	EndAt          time.Time           `json:"end_at"`
	Lines          []OrderLineResponse `json:"lines"`
	TotalAmount    int64               `json:"total_amount"`
	TotalYuan      string              `json:"total_yuan"`
	LateFee        *string             `json:"late_fee,omitempty"`
	CouponCode     string              `json:"coupon_code,omitempty"`
	SentAt         *time.Time          `json:"sent_at,omitempty"`
	ConfirmedAt    *time.Time          `json:"confirmed_at,omitempty"`
	PickedUpAt     *time.Time          `json:"picked_up_at,omitempty"`
	ActualReturnAt *time.Time          `json:"actual_return_at,omitempty"`
	CancelledAt    *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

func toOrderResponse(o *order.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:             o.ID,
		OrderNo:        o.OrderNo,
		CustomerID:     o.CustomerID,
		VendorID:       o.VendorID,
		Status:         o.Status.String(),
		StatusLabel:    o.Status.Label(),
		StartAt:        o.Window.Start,
		EndAt:          o.Window.End,
		Lines:          make([]OrderLineResponse, len(o.Lines)),
		TotalAmount:    o.TotalAmount,
		TotalYuan:      o.AmountYuan().StringFixed(2),
		CouponCode:     o.CouponCode,
		SentAt:         o.SentAt,
		ConfirmedAt:    o.ConfirmedAt,
		PickedUpAt:     o.PickedUpAt,
		ActualReturnAt: o.ActualReturnAt,
		CancelledAt:    o.CancelledAt,
		CreatedAt:      o.CreatedAt,
	}
	for i, l := range o.Lines {
		resp.Lines[i] = OrderLineResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Amount:    l.Amount,
			Days:      l.Window.Days(),
		}
	}
	if o.LateFee != nil {
		fee := o.LateFee.StringFixed(2)
		resp.LateFee = &fee
	}
	return resp
}

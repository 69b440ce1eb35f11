package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xiebiao/rentalhub/internal/domain/reservation"
)

// OrderStatus 租赁订单状态
// 教学要点:
// 1. 使用int类型存储(节省空间,便于索引)
// 2. 状态值递增,便于理解流转方向
// 3. 只有CONFIRMED、PICKED_UP两种状态会占用库存(见HoldsInventory)
type OrderStatus int

const (
	StatusQuotation OrderStatus = 1 // 报价单(不占用库存)
	StatusSent      OrderStatus = 2 // 已发送报价(不占用库存)
	StatusConfirmed OrderStatus = 3 // 已确认(创建预留)
	StatusPickedUp  OrderStatus = 4 // 已取货
	StatusReturned  OrderStatus = 5 // 已归还(终态)
	StatusCancelled OrderStatus = 6 // 已取消(终态)
)

// String 状态编码(日志、接口返回)
func (s OrderStatus) String() string {
	switch s {
	case StatusQuotation:
		return "QUOTATION"
	case StatusSent:
		return "SENT"
	case StatusConfirmed:
		return "CONFIRMED"
	case StatusPickedUp:
		return "PICKED_UP"
	case StatusReturned:
		return "RETURNED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Label 中文名称(页面展示)
func (s OrderStatus) Label() string {
	switch s {
	case StatusQuotation:
		return "报价中"
	case StatusSent:
		return "待确认"
	case StatusConfirmed:
		return "已确认"
	case StatusPickedUp:
		return "租用中"
	case StatusReturned:
		return "已归还"
	case StatusCancelled:
		return "已取消"
	default:
		return "未知状态"
	}
}

// HoldsInventory 该状态是否占用库存
func (s OrderStatus) HoldsInventory() bool {
	return s == StatusConfirmed || s == StatusPickedUp
}

// IsTerminal 是否终态
func (s OrderStatus) IsTerminal() bool {
	return s == StatusReturned || s == StatusCancelled
}

// Order 租赁订单(聚合根)
// 教学要点:
// 1. Order是聚合根,OrderLine是子实体
// 2. TotalAmount冗余存储(下单时按日租金快照计算,防止改价影响历史订单)
// 3. LateFee为空表示未产生或尚未计算
type Order struct {
	ID             uint
	OrderNo        string
	CustomerID     uint
	VendorID       uint
	Status         OrderStatus
	Window         reservation.Window // 租期,End即计划归还时间
	Lines          []OrderLine
	TotalAmount    int64 // 订单总金额(分)
	LateFee        *decimal.Decimal
	CouponCode     string
	SentAt         *time.Time
	ConfirmedAt    *time.Time
	PickedUpAt     *time.Time
	ActualReturnAt *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderLine 订单行
// UnitPrice是下单时的日租金快照(分)
type OrderLine struct {
	ID        uint
	OrderID   uint
	ProductID uint
	Quantity  int
	UnitPrice int64
	Window    reservation.Window
	Amount    int64 // UnitPrice * Quantity * 计费天数
}

// NewOrder 创建报价单(工厂方法)
// 初始状态为QUOTATION,订单行的金额在这里汇总
func NewOrder(orderNo string, customerID, vendorID uint, w reservation.Window, lines []OrderLine, couponCode string, now time.Time) *Order {
	o := &Order{
		OrderNo:    orderNo,
		CustomerID: customerID,
		VendorID:   vendorID,
		Status:     StatusQuotation,
		Window:     w,
		Lines:      lines,
		CouponCode: couponCode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i := range o.Lines {
		o.Lines[i].Amount = o.Lines[i].UnitPrice * int64(o.Lines[i].Quantity) * int64(o.Lines[i].Window.Days())
	}
	o.TotalAmount = o.CalculateTotal()
	return o
}

// PlannedEndAt 计划归还时间
func (o *Order) PlannedEndAt() time.Time {
	return o.Window.End
}

// CalculateTotal 汇总订单行金额
func (o *Order) CalculateTotal() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.Amount
	}
	return total
}

// AmountYuan 订单金额(元)
func (o *Order) AmountYuan() decimal.Decimal {
	return decimal.New(o.TotalAmount, -2)
}

// IsCustomer 订单是否属于该租客
func (o *Order) IsCustomer(userID uint) bool {
	return o.CustomerID == userID
}

// IsVendor 订单是否属于该出租方
func (o *Order) IsVendor(userID uint) bool {
	return o.VendorID == userID
}

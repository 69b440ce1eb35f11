package dto

import "time"

// CreateOrderRequest 创建报价单请求
type CreateOrderRequest struct {
	CustomerID uint              `json:"customer_id"` // 仅管理员代客下单时使用
	VendorID   uint              `json:"vendor_id"`
	Start      time.Time         `json:"start" binding:"required"`
	End        time.Time         `json:"end" binding:"required"`
	Lines      []CreateOrderLine `json:"lines" binding:"required,min=1,dive"`
	CouponCode string            `json:"coupon_code" binding:"max=50"`
}

// CreateOrderLine 订单明细
type CreateOrderLine struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

// ListOrdersRequest 订单列表查询参数
type ListOrdersRequest struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}

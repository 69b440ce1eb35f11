package dto

import "time"

// PublishProductRequest 发布商品请求
type PublishProductRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`

	// 日租金(分)
	DailyRate int64 `json:"daily_rate" binding:"required,min=1"`
	// 初始实物数量
	Quantity int `json:"quantity" binding:"min=0"`
}

// RestockRequest 补货/报损请求
type RestockRequest struct {
	Delta int `json:"delta" binding:"required"` // 正数补货,负数报损
}

// ListProductsRequest 商品列表查询参数
type ListProductsRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Keyword  string `form:"keyword"`
	VendorID uint   `form:"vendor_id"`
}

// AvailabilityRequest 可用性查询参数
// 时间格式RFC3339,如 2024-06-01T09:00:00+08:00
type AvailabilityRequest struct {
	Start    time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	End      time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	Quantity int       `form:"quantity"`
}

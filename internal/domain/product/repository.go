package product

import (
	"context"
)

// Repository 商品仓储接口(依赖倒置原则)
// 设计说明:
// 1. 由domain层定义接口,infrastructure层实现
// 2. 便于Mock测试,不依赖具体数据库实现
type Repository interface {
	// Create 创建商品
	Create(ctx context.Context, p *Product) error

	// FindByID 根据ID查找商品,不存在返回ErrProductNotFound
	FindByID(ctx context.Context, id uint) (*Product, error)

	// Update 更新商品信息(不含数量)
	Update(ctx context.Context, p *Product) error

	// List 分页查询商品列表
	List(ctx context.Context, params ListParams) ([]*Product, int64, error)

	// LockByID 悲观锁查询商品(SELECT FOR UPDATE)
	// 订单确认时锁定商品行,使"可用性检查 + 写入预留"对同一商品串行化
	// 必须在事务中调用
	LockByID(ctx context.Context, id uint) (*Product, error)

	// AdjustQuantity 原子调整实物数量(delta可正可负)
	// 调整后为负返回ErrInsufficientStock
	AdjustQuantity(ctx context.Context, id uint, delta int) error
}

// ListParams 列表查询参数
type ListParams struct {
	Page     int    // 页码(从1开始)
	PageSize int    // 每页数量
	Keyword  string // 搜索关键词(名称、描述)
	VendorID uint   // 按出租方过滤(0表示不过滤)
}

package order

import (
	"context"
	"time"
)

// Repository 订单仓储接口(依赖倒置原则)
// 教学要点:
// 1. 由domain层定义接口,infrastructure层实现
// 2. 支持事务操作(通过context传递事务)
type Repository interface {
	// Create 创建订单(包含订单行),回填ID
	Create(ctx context.Context, o *Order) error

	// FindByID 根据ID查找订单(包含订单行)
	FindByID(ctx context.Context, id uint) (*Order, error)

	// LockByID 悲观锁查询订单(SELECT FOR UPDATE),必须在事务中调用
	// 同一订单的并发状态转换在此串行化
	LockByID(ctx context.Context, id uint) (*Order, error)

	// Update 更新订单状态、时间戳与滞纳金(不更新订单行)
	Update(ctx context.Context, o *Order) error

	// ListByCustomer 查询租客的订单列表
	ListByCustomer(ctx context.Context, customerID uint, page, pageSize int) ([]*Order, int64, error)

	// ListByVendor 查询出租方的订单列表
	ListByVendor(ctx context.Context, vendorID uint, page, pageSize int) ([]*Order, int64, error)

	// ListAwaitingReminder 到期扫描:计划归还时间不晚于deadline的租用中订单
	// 已按当前阈值提醒过的订单不返回(end_at<=now为逾期,否则为即将到期),
	// 长期未归还的逾期订单不会占满limit,挤掉新进入提醒窗口的订单
	ListAwaitingReminder(ctx context.Context, now, deadline time.Time, limit int) ([]*Order, error)
}

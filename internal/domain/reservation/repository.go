package reservation

import (
	"context"
	"time"
)

// Repository 预留仓储接口
// 教学要点:
// 1. 只有订单状态机(rental用例)写入预留,可用性查询只读
// 2. 写操作必须在事务中调用(通过context传递事务)
type Repository interface {
	// Create 创建预留,同一订单行重复创建返回ErrDuplicateReservation
	Create(ctx context.Context, r *Reservation) error

	// FindActiveOverlapping 查询商品在窗口内重叠的生效预留
	// SQL: status = 'ACTIVE' AND start_at <= window.End AND end_at >= window.Start
	FindActiveOverlapping(ctx context.Context, productID uint, w Window) ([]*Reservation, error)

	// ListActiveByProduct 查询商品的全部生效预留(报损校验用)
	ListActiveByProduct(ctx context.Context, productID uint) ([]*Reservation, error)

	// ListByOrder 查询订单的全部预留(含已释放)
	ListByOrder(ctx context.Context, orderID uint) ([]*Reservation, error)

	// ReleaseByOrder 释放订单的所有生效预留,返回实际释放条数
	// 幂等:已释放的记录不会被再次处理
	ReleaseByOrder(ctx context.Context, orderID uint, at time.Time) (int64, error)
}

package mysql

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

// txKey context中事务DB的key
type txKey struct{}

// TxManager 事务管理器
// 教学要点:
// 1. 封装GORM的Transaction方法
// 2. 通过context传递事务DB(避免全局变量)
// 3. 支持嵌套事务(GORM自动使用Savepoint)
// 4. 隔离级别固定为READ COMMITTED
//
// 隔离级别说明:
// MySQL默认REPEATABLE READ,事务内第一条普通SELECT就固定了快照。
// 确认订单时先锁订单、读订单行,再阻塞在商品行锁上;等到拿到锁,
// 对reservations的普通查询仍读旧快照,看不到刚提交的预留,同一批库存会被再次预留。
// READ COMMITTED下每条语句读最新已提交数据,商品行锁 + 重新统计才真正串行。
// (PostgreSQL默认就是READ COMMITTED)
type TxManager struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

// NewTxManager 创建事务管理器
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{
		db:   db,
		opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	}
}

// Transaction 执行事务
// 教学要点:
// 1. fn函数内的所有Repository操作都会在同一事务中执行
// 2. fn返回error时自动ROLLBACK,返回nil时自动COMMIT
// 3. 死锁/锁等待超时会被转换为ErrConcurrencyConflict,由调用方决定是否重试
//
// 使用示例:
//
//	err := txManager.Transaction(ctx, func(ctx context.Context) error {
//	    // 1. 锁定订单与商品
//	    o, err := orderRepo.LockByID(ctx, orderID)
//	    if err != nil {
//	        return err
//	    }
//	    p, err := productRepo.LockByID(ctx, productID)
//	    ...
//	    // 2. 检查可用数量并写入预留
//	    return reservationRepo.Create(ctx, r) // nil则提交,非nil则回滚
//	})
func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(txCtx)
	}, m.opts)
	return translateLockError(err)
}

// getDB 从context获取事务DB,如果没有则使用默认DB
// 教学要点:事务传递机制,所有Repository都通过它访问数据库
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

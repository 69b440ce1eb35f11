// Package memory 仓储接口的内存实现
// 用于单元测试与本地演示(database.driver=memory),不持久化
package memory

import (
	"context"
	"sync"

	"github.com/xiebiao/rentalhub/internal/domain/notification"
	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/domain/product"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/internal/domain/user"
)

type notifyKey struct {
	orderID uint
	kind    notification.Kind
}

// Store 内存数据集
// 教学要点:
// 1. mu保护数据读写,txMu串行化事务(相当于把所有行都加了FOR UPDATE)
// 2. 事务失败时整体回滚到快照,与数据库"要么全成功要么全失败"一致
// 3. 事务外的写操作同样要拿txMu,等进行中的事务结束后再写,
//    否则回滚快照会抹掉事务期间写入的通知记录、新用户等无关数据
// 4. 读写都返回副本,调用方修改实体不会影响存储
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextID uint

	users         map[uint]*user.User
	products      map[uint]*product.Product
	orders        map[uint]*order.Order
	reservations  map[uint]*reservation.Reservation
	notifications map[notifyKey]*notification.Log
}

// NewStore 创建内存数据集
func NewStore() *Store {
	return &Store{
		users:         make(map[uint]*user.User),
		products:      make(map[uint]*product.Product),
		orders:        make(map[uint]*order.Order),
		reservations:  make(map[uint]*reservation.Reservation),
		notifications: make(map[notifyKey]*notification.Log),
	}
}

// lockWrite 写操作加锁,返回解锁函数
// 事务内(ctx携带txKey)已持有txMu,只需要mu
func (s *Store) lockWrite(ctx context.Context) func() {
	if inTx(ctx) {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

type snapshot struct {
	nextID        uint
	users         map[uint]*user.User
	products      map[uint]*product.Product
	orders        map[uint]*order.Order
	reservations  map[uint]*reservation.Reservation
	notifications map[notifyKey]*notification.Log
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		nextID:        s.nextID,
		users:         make(map[uint]*user.User, len(s.users)),
		products:      make(map[uint]*product.Product, len(s.products)),
		orders:        make(map[uint]*order.Order, len(s.orders)),
		reservations:  make(map[uint]*reservation.Reservation, len(s.reservations)),
		notifications: make(map[notifyKey]*notification.Log, len(s.notifications)),
	}
	for k, v := range s.users {
		c := *v
		snap.users[k] = &c
	}
	for k, v := range s.products {
		c := *v
		snap.products[k] = &c
	}
	for k, v := range s.orders {
		snap.orders[k] = copyOrder(v)
	}
	for k, v := range s.reservations {
		snap.reservations[k] = copyReservation(v)
	}
	for k, v := range s.notifications {
		c := *v
		snap.notifications[k] = &c
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID = snap.nextID
	s.users = snap.users
	s.products = snap.products
	s.orders = snap.orders
	s.reservations = snap.reservations
	s.notifications = snap.notifications
}

// TxManager 内存事务
type TxManager struct {
	store *Store
}

// NewTxManager 创建内存事务管理器
func NewTxManager(s *Store) *TxManager {
	return &TxManager{store: s}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

// Transaction 串行执行fn,返回错误时回滚
// 嵌套调用直接复用外层事务
func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

func copyOrder(o *order.Order) *order.Order {
	c := *o
	c.Lines = append([]order.OrderLine(nil), o.Lines...)
	if o.LateFee != nil {
		fee := *o.LateFee
		c.LateFee = &fee
	}
	return &c
}

func copyReservation(r *reservation.Reservation) *reservation.Reservation {
	c := *r
	if r.ReleasedAt != nil {
		at := *r.ReleasedAt
		c.ReleasedAt = &at
	}
	return &c
}

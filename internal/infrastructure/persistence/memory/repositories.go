package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/xiebiao/rentalhub/internal/domain/notification"
	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/domain/product"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/internal/domain/user"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// =========================================
// 用户
// =========================================

type userRepository struct{ s *Store }

// NewUserRepository 创建用户仓储
func NewUserRepository(s *Store) user.Repository { return &userRepository{s: s} }

func (r *userRepository) Create(ctx context.Context, u *user.User) error {
	defer r.s.lockWrite(ctx)()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperrors.ErrEmailDuplicate
		}
	}
	u.ID = r.s.id()
	c := *u
	r.s.users[u.ID] = &c
	return nil
}

func (r *userRepository) FindByID(_ context.Context, id uint) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *userRepository) FindByEmail(_ context.Context, email string) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

// =========================================
// 商品
// =========================================

type productRepository struct{ s *Store }

// NewProductRepository 创建商品仓储
func NewProductRepository(s *Store) product.Repository { return &productRepository{s: s} }

func (r *productRepository) Create(ctx context.Context, p *product.Product) error {
	defer r.s.lockWrite(ctx)()

	p.ID = r.s.id()
	c := *p
	r.s.products[p.ID] = &c
	return nil
}

func (r *productRepository) FindByID(_ context.Context, id uint) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

// LockByID 事务已串行化,直接读取
func (r *productRepository) LockByID(ctx context.Context, id uint) (*product.Product, error) {
	return r.FindByID(ctx, id)
}

func (r *productRepository) Update(ctx context.Context, p *product.Product) error {
	defer r.s.lockWrite(ctx)()

	existing, ok := r.s.products[p.ID]
	if !ok {
		return product.ErrProductNotFound
	}
	existing.Name = p.Name
	existing.Description = p.Description
	existing.DailyRate = p.DailyRate
	existing.UpdatedAt = p.UpdatedAt
	return nil
}

func (r *productRepository) List(_ context.Context, params product.ListParams) ([]*product.Product, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*product.Product
	for _, p := range r.s.products {
		if params.VendorID != 0 && p.VendorID != params.VendorID {
			continue
		}
		if params.Keyword != "" &&
			!strings.Contains(p.Name, params.Keyword) &&
			!strings.Contains(p.Description, params.Keyword) {
			continue
		}
		c := *p
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return paginate(matched, params.Page, params.PageSize), int64(len(matched)), nil
}

func (r *productRepository) AdjustQuantity(ctx context.Context, id uint, delta int) error {
	defer r.s.lockWrite(ctx)()

	p, ok := r.s.products[id]
	if !ok {
		return product.ErrProductNotFound
	}
	if p.QuantityOnHand+delta < 0 {
		return product.ErrInsufficientStock
	}
	p.QuantityOnHand += delta
	return nil
}

// =========================================
// 预留
// =========================================

type reservationRepository struct{ s *Store }

// NewReservationRepository 创建预留仓储
func NewReservationRepository(s *Store) reservation.Repository {
	return &reservationRepository{s: s}
}

func (r *reservationRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	defer r.s.lockWrite(ctx)()

	for _, existing := range r.s.reservations {
		if existing.OrderLineID == res.OrderLineID {
			return reservation.ErrDuplicateReservation
		}
	}
	res.ID = r.s.id()
	r.s.reservations[res.ID] = copyReservation(res)
	return nil
}

func (r *reservationRepository) FindActiveOverlapping(_ context.Context, productID uint, w reservation.Window) ([]*reservation.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*reservation.Reservation
	for _, res := range r.s.reservations {
		if res.ProductID == productID && res.IsActive() && res.Window.Overlaps(w) {
			out = append(out, copyReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reservationRepository) ListActiveByProduct(_ context.Context, productID uint) ([]*reservation.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*reservation.Reservation
	for _, res := range r.s.reservations {
		if res.ProductID == productID && res.IsActive() {
			out = append(out, copyReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Window.Start.Before(out[j].Window.Start) })
	return out, nil
}

func (r *reservationRepository) ListByOrder(_ context.Context, orderID uint) ([]*reservation.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*reservation.Reservation
	for _, res := range r.s.reservations {
		if res.OrderID == orderID {
			out = append(out, copyReservation(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reservationRepository) ReleaseByOrder(ctx context.Context, orderID uint, at time.Time) (int64, error) {
	defer r.s.lockWrite(ctx)()

	var n int64
	for _, res := range r.s.reservations {
		if res.OrderID == orderID && res.Release(at) {
			n++
		}
	}
	return n, nil
}

// =========================================
// 订单
// =========================================

type orderRepository struct{ s *Store }

// NewOrderRepository 创建订单仓储
func NewOrderRepository(s *Store) order.Repository { return &orderRepository{s: s} }

func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	defer r.s.lockWrite(ctx)()

	o.ID = r.s.id()
	for i := range o.Lines {
		o.Lines[i].ID = r.s.id()
		o.Lines[i].OrderID = o.ID
	}
	r.s.orders[o.ID] = copyOrder(o)
	return nil
}

func (r *orderRepository) FindByID(_ context.Context, id uint) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (r *orderRepository) LockByID(ctx context.Context, id uint) (*order.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *orderRepository) Update(ctx context.Context, o *order.Order) error {
	defer r.s.lockWrite(ctx)()

	existing, ok := r.s.orders[o.ID]
	if !ok {
		return order.ErrOrderNotFound
	}
	updated := copyOrder(o)
	updated.Lines = existing.Lines
	r.s.orders[o.ID] = updated
	return nil
}

func (r *orderRepository) ListByCustomer(_ context.Context, customerID uint, page, pageSize int) ([]*order.Order, int64, error) {
	return r.listBy(func(o *order.Order) bool { return o.CustomerID == customerID }, page, pageSize)
}

func (r *orderRepository) ListByVendor(_ context.Context, vendorID uint, page, pageSize int) ([]*order.Order, int64, error) {
	return r.listBy(func(o *order.Order) bool { return o.VendorID == vendorID }, page, pageSize)
}

func (r *orderRepository) listBy(match func(*order.Order) bool, page, pageSize int) ([]*order.Order, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*order.Order
	for _, o := range r.s.orders {
		if match(o) {
			matched = append(matched, copyOrder(o))
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return paginate(matched, page, pageSize), int64(len(matched)), nil
}

func (r *orderRepository) ListAwaitingReminder(_ context.Context, now, deadline time.Time, limit int) ([]*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*order.Order
	for _, o := range r.s.orders {
		end := o.PlannedEndAt()
		if o.Status != order.StatusPickedUp || end.After(deadline) {
			continue
		}
		kind := notification.KindDueSoon
		if !end.After(now) {
			kind = notification.KindOverdue
		}
		if _, done := r.s.notifications[notifyKey{orderID: o.ID, kind: kind}]; done {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		ei, ej := out[i].PlannedEndAt(), out[j].PlannedEndAt()
		if !ei.Equal(ej) {
			return ei.Before(ej)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// =========================================
// 通知记录
// =========================================

type notificationRepository struct{ s *Store }

// NewNotificationRepository 创建通知记录仓储
func NewNotificationRepository(s *Store) notification.Repository {
	return &notificationRepository{s: s}
}

func (r *notificationRepository) Record(ctx context.Context, l *notification.Log) error {
	defer r.s.lockWrite(ctx)()

	key := notifyKey{orderID: l.OrderID, kind: l.Kind}
	if _, ok := r.s.notifications[key]; ok {
		return notification.ErrAlreadyNotified
	}
	l.ID = r.s.id()
	c := *l
	r.s.notifications[key] = &c
	return nil
}

func (r *notificationRepository) Delete(ctx context.Context, orderID uint, kind notification.Kind) error {
	defer r.s.lockWrite(ctx)()

	delete(r.s.notifications, notifyKey{orderID: orderID, kind: kind})
	return nil
}

func (r *notificationRepository) Exists(_ context.Context, orderID uint, kind notification.Kind) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.notifications[notifyKey{orderID: orderID, kind: kind}]
	return ok, nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 || pageSize < 1 {
		return items
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

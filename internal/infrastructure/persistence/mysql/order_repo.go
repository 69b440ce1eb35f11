package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/rentalhub/internal/domain/notification"
	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// orderRepository 订单仓储实现
// 教学要点:
// 1. Order和OrderLine是聚合关系,必须一起保存
// 2. 查询时使用Preload预加载订单行,避免N+1问题
// 3. 事务通过context传递
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepository{db: db}
}

// Create 创建订单(GORM自动保存关联的Lines)
func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	model := toOrderModel(o)

	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "创建订单失败")
	}

	o.ID = model.ID
	for i := range o.Lines {
		o.Lines[i].ID = model.Lines[i].ID
		o.Lines[i].OrderID = model.ID
	}
	return nil
}

// FindByID 根据ID查找订单
// Preload("Lines")会执行:
// 1. SELECT * FROM rental_orders WHERE id = ?
// 2. SELECT * FROM order_lines WHERE order_id IN (?)
func (r *orderRepository) FindByID(ctx context.Context, id uint) (*order.Order, error) {
	var model RentalOrderModel
	err := getDB(ctx, r.db).Preload("Lines").First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询订单失败")
	}

	return toOrderEntity(&model), nil
}

// LockByID 悲观锁查询订单
// SELECT * FROM rental_orders WHERE id = ? FOR UPDATE
// 教学要点:只锁订单行本身,订单行(order_lines)在确认后不再修改,不需要加锁
func (r *orderRepository) LockByID(ctx context.Context, id uint) (*order.Order, error) {
	var model RentalOrderModel
	err := getDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "锁定订单失败")
	}

	var lines []OrderLineModel
	if err := getDB(ctx, r.db).Where("order_id = ?", id).Order("id ASC").Find(&lines).Error; err != nil {
		return nil, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询订单行失败")
	}
	model.Lines = lines

	return toOrderEntity(&model), nil
}

// Update 更新订单状态、时间戳与滞纳金(不更新订单行)
func (r *orderRepository) Update(ctx context.Context, o *order.Order) error {
	lateFee := decimal.NullDecimal{}
	if o.LateFee != nil {
		lateFee = decimal.NullDecimal{Decimal: *o.LateFee, Valid: true}
	}

	result := getDB(ctx, r.db).Model(&RentalOrderModel{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
		"status":           int(o.Status),
		"late_fee":         lateFee,
		"sent_at":          o.SentAt,
		"confirmed_at":     o.ConfirmedAt,
		"picked_up_at":     o.PickedUpAt,
		"actual_return_at": o.ActualReturnAt,
		"cancelled_at":     o.CancelledAt,
		"updated_at":       o.UpdatedAt,
	})

	if result.Error != nil {
		return apperrors.WithCode(apperrors.ErrCodeDatabaseError, result.Error, "更新订单失败")
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// ListByCustomer 查询租客的订单列表
func (r *orderRepository) ListByCustomer(ctx context.Context, customerID uint, page, pageSize int) ([]*order.Order, int64, error) {
	return r.listBy(ctx, "customer_id = ?", customerID, page, pageSize)
}

// ListByVendor 查询出租方的订单列表
func (r *orderRepository) ListByVendor(ctx context.Context, vendorID uint, page, pageSize int) ([]*order.Order, int64, error) {
	return r.listBy(ctx, "vendor_id = ?", vendorID, page, pageSize)
}

func (r *orderRepository) listBy(ctx context.Context, cond string, id uint, page, pageSize int) ([]*order.Order, int64, error) {
	var models []RentalOrderModel
	var total int64

	query := getDB(ctx, r.db).Model(&RentalOrderModel{}).Where(cond, id)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询订单总数失败")
	}

	offset := (page - 1) * pageSize
	err := query.Preload("Lines").
		Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询订单列表失败")
	}

	orders := make([]*order.Order, len(models))
	for i := range models {
		orders[i] = toOrderEntity(&models[i])
	}
	return orders, total, nil
}

// ListAwaitingReminder 到期扫描
//
//	SELECT * FROM rental_orders o
//	WHERE o.status = 4 AND o.end_at <= ?
//	  AND NOT EXISTS (SELECT 1 FROM notification_logs l
//	                  WHERE l.order_id = o.id
//	                    AND l.kind = CASE WHEN o.end_at <= ? THEN 'OVERDUE' ELSE 'DUE_SOON' END)
//	ORDER BY o.end_at, o.id LIMIT ?
//
// 命中(status, end_at)复合索引,子查询走notification_logs的(order_id, kind)唯一索引
func (r *orderRepository) ListAwaitingReminder(ctx context.Context, now, deadline time.Time, limit int) ([]*order.Order, error) {
	var models []RentalOrderModel
	err := getDB(ctx, r.db).
		Where("status = ? AND end_at <= ?", int(order.StatusPickedUp), deadline).
		Where("NOT EXISTS (SELECT 1 FROM notification_logs l WHERE l.order_id = rental_orders.id "+
			"AND l.kind = CASE WHEN rental_orders.end_at <= ? THEN ? ELSE ? END)",
			now, string(notification.KindOverdue), string(notification.KindDueSoon)).
		Order("end_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询到期订单失败")
	}

	orders := make([]*order.Order, len(models))
	for i := range models {
		orders[i] = toOrderEntity(&models[i])
	}
	return orders, nil
}

// toOrderModel 领域实体 → GORM模型
func toOrderModel(o *order.Order) *RentalOrderModel {
	lines := make([]OrderLineModel, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderLineModel{
			ID:        l.ID,
			OrderID:   l.OrderID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			StartAt:   l.Window.Start,
			EndAt:     l.Window.End,
			Amount:    l.Amount,
		}
	}

	model := &RentalOrderModel{
		ID:             o.ID,
		OrderNo:        o.OrderNo,
		CustomerID:     o.CustomerID,
		VendorID:       o.VendorID,
		Status:         int(o.Status),
		StartAt:        o.Window.Start,
		EndAt:          o.Window.End,
		TotalAmount:    o.TotalAmount,
		CouponCode:     o.CouponCode,
		SentAt:         o.SentAt,
		ConfirmedAt:    o.ConfirmedAt,
		PickedUpAt:     o.PickedUpAt,
		ActualReturnAt: o.ActualReturnAt,
		CancelledAt:    o.CancelledAt,
		Lines:          lines,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.LateFee != nil {
		model.LateFee = decimal.NullDecimal{Decimal: *o.LateFee, Valid: true}
	}
	return model
}

// toOrderEntity GORM模型 → 领域实体
func toOrderEntity(model *RentalOrderModel) *order.Order {
	lines := make([]order.OrderLine, len(model.Lines))
	for i, l := range model.Lines {
		lines[i] = order.OrderLine{
			ID:        l.ID,
			OrderID:   l.OrderID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Window:    reservation.Window{Start: l.StartAt, End: l.EndAt},
			Amount:    l.Amount,
		}
	}

	o := &order.Order{
		ID:             model.ID,
		OrderNo:        model.OrderNo,
		CustomerID:     model.CustomerID,
		VendorID:       model.VendorID,
		Status:         order.OrderStatus(model.Status),
		Window:         reservation.Window{Start: model.StartAt, End: model.EndAt},
		Lines:          lines,
		TotalAmount:    model.TotalAmount,
		CouponCode:     model.CouponCode,
		SentAt:         model.SentAt,
		ConfirmedAt:    model.ConfirmedAt,
		PickedUpAt:     model.PickedUpAt,
		ActualReturnAt: model.ActualReturnAt,
		CancelledAt:    model.CancelledAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
	if model.LateFee.Valid {
		fee := model.LateFee.Decimal
		o.LateFee = &fee
	}
	return o
}

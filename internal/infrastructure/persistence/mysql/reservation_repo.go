package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// reservationRepository 预留仓储实现
// 教学要点:
// 1. 预留只增不删,释放时更新status/released_at
// 2. 写操作必须在事务中执行(与订单状态更新同一事务)
type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository 创建预留仓储
func NewReservationRepository(db *gorm.DB) reservation.Repository {
	return &reservationRepository{db: db}
}

// Create 创建预留
// order_line_id唯一索引冲突 → ErrDuplicateReservation
func (r *reservationRepository) Create(ctx context.Context, res *reservation.Reservation) error {
	model := toReservationModel(res)

	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return reservation.ErrDuplicateReservation
		}
		return apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "创建预留失败")
	}

	res.ID = model.ID
	return nil
}

// FindActiveOverlapping 查询重叠的生效预留
// 重叠条件(边界相接算重叠): start_at <= ? AND end_at >= ?
func (r *reservationRepository) FindActiveOverlapping(ctx context.Context, productID uint, w reservation.Window) ([]*reservation.Reservation, error) {
	var models []ReservationModel
	err := getDB(ctx, r.db).
		Where("product_id = ? AND status = ?", productID, string(reservation.StatusActive)).
		Where("start_at <= ? AND end_at >= ?", w.End, w.Start).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询预留失败")
	}

	return toReservationEntities(models), nil
}

// ListActiveByProduct 查询商品的全部生效预留
func (r *reservationRepository) ListActiveByProduct(ctx context.Context, productID uint) ([]*reservation.Reservation, error) {
	var models []ReservationModel
	err := getDB(ctx, r.db).
		Where("product_id = ? AND status = ?", productID, string(reservation.StatusActive)).
		Order("start_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询预留失败")
	}
	return toReservationEntities(models), nil
}

// ListByOrder 查询订单的全部预留
func (r *reservationRepository) ListByOrder(ctx context.Context, orderID uint) ([]*reservation.Reservation, error) {
	var models []ReservationModel
	err := getDB(ctx, r.db).Where("order_id = ?", orderID).Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询预留失败")
	}
	return toReservationEntities(models), nil
}

// ReleaseByOrder 释放订单的所有生效预留
// UPDATE reservations SET status='RELEASED', released_at=? WHERE order_id=? AND status='ACTIVE'
// 教学要点:WHERE status='ACTIVE'保证幂等,重复释放影响0行,不会重复归还容量
func (r *reservationRepository) ReleaseByOrder(ctx context.Context, orderID uint, at time.Time) (int64, error) {
	result := getDB(ctx, r.db).Model(&ReservationModel{}).
		Where("order_id = ? AND status = ?", orderID, string(reservation.StatusActive)).
		Updates(map[string]interface{}{
			"status":      string(reservation.StatusReleased),
			"released_at": at,
		})
	if result.Error != nil {
		return 0, apperrors.WithCode(apperrors.ErrCodeDatabaseError, result.Error, "释放预留失败")
	}
	return result.RowsAffected, nil
}

func toReservationModel(res *reservation.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:          res.ID,
		ProductID:   res.ProductID,
		OrderID:     res.OrderID,
		OrderLineID: res.OrderLineID,
		Quantity:    res.Quantity,
		Status:      string(res.Status),
		StartAt:     res.Window.Start,
		EndAt:       res.Window.End,
		CreatedAt:   res.CreatedAt,
		ReleasedAt:  res.ReleasedAt,
	}
}

func toReservationEntities(models []ReservationModel) []*reservation.Reservation {
	list := make([]*reservation.Reservation, len(models))
	for i, m := range models {
		list[i] = &reservation.Reservation{
			ID:          m.ID,
			ProductID:   m.ProductID,
			OrderID:     m.OrderID,
			OrderLineID: m.OrderLineID,
			Quantity:    m.Quantity,
			Window:      reservation.Window{Start: m.StartAt, End: m.EndAt},
			Status:      reservation.Status(m.Status),
			CreatedAt:   m.CreatedAt,
			ReleasedAt:  m.ReleasedAt,
		}
	}
	return list
}

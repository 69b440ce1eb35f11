package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/xiebiao/rentalhub/internal/domain/notification"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// notificationRepository 通知记录仓储实现
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository 创建通知记录仓储
func NewNotificationRepository(db *gorm.DB) notification.Repository {
	return &notificationRepository{db: db}
}

// Record 写入通知记录
// 教学要点:去重依赖(order_id, kind)唯一索引,而不是先查后写
// 多实例同时扫描时,只有一个INSERT能成功
func (r *notificationRepository) Record(ctx context.Context, l *notification.Log) error {
	model := &NotificationLogModel{
		OrderID:   l.OrderID,
		Kind:      string(l.Kind),
		EventID:   l.EventID,
		CreatedAt: l.CreatedAt,
	}

	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return notification.ErrAlreadyNotified
		}
		return apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "写入通知记录失败")
	}

	l.ID = model.ID
	return nil
}

// Delete 删除通知记录(补偿)
func (r *notificationRepository) Delete(ctx context.Context, orderID uint, kind notification.Kind) error {
	err := getDB(ctx, r.db).
		Where("order_id = ? AND kind = ?", orderID, string(kind)).
		Delete(&NotificationLogModel{}).Error
	if err != nil {
		return apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "删除通知记录失败")
	}
	return nil
}

// Exists 是否已记录
func (r *notificationRepository) Exists(ctx context.Context, orderID uint, kind notification.Kind) (bool, error) {
	var count int64
	err := getDB(ctx, r.db).Model(&NotificationLogModel{}).
		Where("order_id = ? AND kind = ?", orderID, string(kind)).
		Count(&count).Error
	if err != nil {
		return false, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询通知记录失败")
	}
	return count > 0, nil
}

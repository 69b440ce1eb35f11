package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/rentalhub/internal/domain/product"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// productRepository 商品仓储实现
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) product.Repository {
	return &productRepository{db: db}
}

// Create 创建商品
func (r *productRepository) Create(ctx context.Context, p *product.Product) error {
	model := toProductModel(p)

	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "创建商品失败")
	}

	p.ID = model.ID
	p.CreatedAt = model.CreatedAt
	p.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID 根据ID查找商品
func (r *productRepository) FindByID(ctx context.Context, id uint) (*product.Product, error) {
	var model ProductModel
	err := getDB(ctx, r.db).First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, product.ErrProductNotFound
		}
		return nil, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询商品失败")
	}

	return toProductEntity(&model), nil
}

// Update 更新商品基本信息
// 教学要点:数量只能通过AdjustQuantity修改,这里不写quantity_on_hand
func (r *productRepository) Update(ctx context.Context, p *product.Product) error {
	result := getDB(ctx, r.db).Model(&ProductModel{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":        p.Name,
		"description": p.Description,
		"daily_rate":  p.DailyRate,
		"updated_at":  p.UpdatedAt,
	})

	if result.Error != nil {
		return apperrors.WithCode(apperrors.ErrCodeDatabaseError, result.Error, "更新商品失败")
	}
	if result.RowsAffected == 0 {
		return product.ErrProductNotFound
	}
	return nil
}

// List 分页查询商品列表
func (r *productRepository) List(ctx context.Context, params product.ListParams) ([]*product.Product, int64, error) {
	var models []ProductModel
	var total int64

	query := getDB(ctx, r.db).Model(&ProductModel{})

	if params.Keyword != "" {
		keyword := "%" + params.Keyword + "%"
		query = query.Where("name LIKE ? OR description LIKE ?", keyword, keyword)
	}
	if params.VendorID != 0 {
		query = query.Where("vendor_id = ?", params.VendorID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询商品总数失败")
	}

	offset := (params.Page - 1) * params.PageSize
	err := query.Order("created_at DESC").
		Limit(params.PageSize).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询商品列表失败")
	}

	products := make([]*product.Product, len(models))
	for i := range models {
		products[i] = toProductEntity(&models[i])
	}
	return products, total, nil
}

// LockByID 悲观锁查询商品
// SELECT * FROM products WHERE id = ? FOR UPDATE
// 教学要点:必须使用getDB(ctx)从context获取事务DB,否则锁在语句结束时就释放了
func (r *productRepository) LockByID(ctx context.Context, id uint) (*product.Product, error) {
	var model ProductModel
	err := getDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, id).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, product.ErrProductNotFound
		}
		return nil, apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "锁定商品失败")
	}

	return toProductEntity(&model), nil
}

// AdjustQuantity 原子调整实物数量
// UPDATE products SET quantity_on_hand = quantity_on_hand + ? WHERE id = ? AND quantity_on_hand + ? >= 0
func (r *productRepository) AdjustQuantity(ctx context.Context, id uint, delta int) error {
	db := getDB(ctx, r.db)
	result := db.Model(&ProductModel{}).
		Where("id = ?", id).
		Where("quantity_on_hand + ? >= 0", delta).
		Update("quantity_on_hand", gorm.Expr("quantity_on_hand + ?", delta))

	if result.Error != nil {
		return apperrors.WithCode(apperrors.ErrCodeDatabaseError, result.Error, "调整商品数量失败")
	}

	if result.RowsAffected == 0 {
		// 可能是商品不存在,或者调整后为负,再查一次确定原因
		var model ProductModel
		if err := db.First(&model, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return product.ErrProductNotFound
			}
			return apperrors.WithCode(apperrors.ErrCodeDatabaseError, err, "查询商品失败")
		}
		return product.ErrInsufficientStock
	}

	return nil
}

// toProductModel 领域实体 → GORM模型
func toProductModel(p *product.Product) *ProductModel {
	return &ProductModel{
		ID:             p.ID,
		VendorID:       p.VendorID,
		Name:           p.Name,
		Description:    p.Description,
		DailyRate:      p.DailyRate,
		QuantityOnHand: p.QuantityOnHand,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// toProductEntity GORM模型 → 领域实体
func toProductEntity(model *ProductModel) *product.Product {
	return &product.Product{
		ID:             model.ID,
		VendorID:       model.VendorID,
		Name:           model.Name,
		Description:    model.Description,
		DailyRate:      model.DailyRate,
		QuantityOnHand: model.QuantityOnHand,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
}

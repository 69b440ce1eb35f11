package product

import (
	"time"
)

// Product 可出租商品（库存台账）
// 教学要点:
// 1. QuantityOnHand是"拥有的实物数量",只在补货/报损时变化
// 2. 预留(Reservation)是逻辑占用,不会扣减QuantityOnHand
//   - 对比图书商城:下单直接扣减stock
//   - 租赁场景:同一件实物在不同时间段可以被反复出租
//
// 3. DailyRate单位为"分",避免浮点精度问题
type Product struct {
	ID             uint
	VendorID       uint   // 所属出租方用户ID
	Name           string // 商品名称
	Description    string // 商品描述
	DailyRate      int64  // 日租金(分)
	QuantityOnHand int    // 拥有的实物数量
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewProduct 创建商品(工厂方法)
func NewProduct(vendorID uint, name, description string, dailyRate int64, quantity int) *Product {
	now := time.Now()
	return &Product{
		VendorID:       vendorID,
		Name:           name,
		Description:    description,
		DailyRate:      dailyRate,
		QuantityOnHand: quantity,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Restock 调整实物数量(补货为正,报损为负)
// 业务规则:调整后数量不能为负
func (p *Product) Restock(delta int) error {
	if delta == 0 {
		return ErrInvalidQuantity
	}
	if p.QuantityOnHand+delta < 0 {
		return ErrInsufficientStock
	}
	p.QuantityOnHand += delta
	p.UpdatedAt = time.Now()
	return nil
}

// UpdateInfo 更新商品基本信息(空值表示不修改)
func (p *Product) UpdateInfo(name, description string, dailyRate int64) error {
	if dailyRate < 0 {
		return ErrInvalidRate
	}
	if name != "" {
		p.Name = name
	}
	if description != "" {
		p.Description = description
	}
	if dailyRate > 0 {
		p.DailyRate = dailyRate
	}
	p.UpdatedAt = time.Now()
	return nil
}

// IsOwnedBy 检查商品是否属于指定出租方
func (p *Product) IsOwnedBy(vendorID uint) bool {
	return p.VendorID == vendorID
}

package product

import (
	"context"
	"time"

	"github.com/xiebiao/rentalhub/internal/domain/product"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/internal/domain/user"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

// ProductResponse 商品响应DTO
type ProductResponse struct {
	ID             uint      `json:"id"`
	VendorID       uint      `json:"vendor_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	DailyRate      int64     `json:"daily_rate"` // 日租金(分)
	QuantityOnHand int       `json:"quantity_on_hand"`
	CreatedAt      time.Time `json:"created_at"`
}

func toProductResponse(p *product.Product) *ProductResponse {
	return &ProductResponse{
		ID:             p.ID,
		VendorID:       p.VendorID,
		Name:           p.Name,
		Description:    p.Description,
		DailyRate:      p.DailyRate,
		QuantityOnHand: p.QuantityOnHand,
		CreatedAt:      p.CreatedAt,
	}
}

// PublishProductUseCase 商品发布用例
// 设计说明:
// 1. 应用层负责用例编排,业务规则校验由领域服务负责
// 2. 只有出租方可以发布商品,VendorID取自当前登录用户
type PublishProductUseCase struct {
	productService product.Service
}

// NewPublishProductUseCase 创建发布用例
func NewPublishProductUseCase(productService product.Service) *PublishProductUseCase {
	return &PublishProductUseCase{productService: productService}
}

// PublishProductRequest 发布请求DTO
type PublishProductRequest struct {
	Actor       user.Actor
	Name        string
	Description string
	DailyRate   int64 // 日租金(分)
	Quantity    int   // 初始实物数量
}

// Execute 执行发布
func (uc *PublishProductUseCase) Execute(ctx context.Context, req PublishProductRequest) (*ProductResponse, error) {
	if req.Actor.Role != user.RoleVendor || req.Actor.UserID == 0 {
		return nil, apperrors.ErrForbidden
	}

	p, err := uc.productService.Publish(ctx, req.Actor.UserID, req.Name, req.Description, req.DailyRate, req.Quantity)
	if err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// GetProductUseCase 商品详情
type GetProductUseCase struct {
	productService product.Service
}

// NewGetProductUseCase 创建商品详情用例
func NewGetProductUseCase(productService product.Service) *GetProductUseCase {
	return &GetProductUseCase{productService: productService}
}

// Execute 查询商品
func (uc *GetProductUseCase) Execute(ctx context.Context, id uint) (*ProductResponse, error) {
	p, err := uc.productService.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

// ListProductsUseCase 商品列表(公开接口)
type ListProductsUseCase struct {
	productService product.Service
}

// NewListProductsUseCase 创建列表用例
func NewListProductsUseCase(productService product.Service) *ListProductsUseCase {
	return &ListProductsUseCase{productService: productService}
}

// ListProductsRequest 列表请求
type ListProductsRequest struct {
	Page     int
	PageSize int
	Keyword  string
	VendorID uint
}

// ListProductsResponse 列表响应
type ListProductsResponse struct {
	Products []*ProductResponse
	Total    int64
	Page     int
	PageSize int
}

// Execute 查询列表
func (uc *ListProductsUseCase) Execute(ctx context.Context, req ListProductsRequest) (*ListProductsResponse, error) {
	params := product.ListParams{
		Page:     req.Page,
		PageSize: req.PageSize,
		Keyword:  req.Keyword,
		VendorID: req.VendorID,
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	products, total, err := uc.productService.List(ctx, params)
	if err != nil {
		return nil, err
	}

	resp := &ListProductsResponse{
		Products: make([]*ProductResponse, len(products)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for i, p := range products {
		resp.Products[i] = toProductResponse(p)
	}
	return resp, nil
}

// TxManager 事务管理器接口
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RestockUseCase 补货/报损
// 教学要点:
// 1. 与确认订单一样先锁商品行,报损和新预留在商品行上互斥
// 2. 报损后实物数量不能低于生效预留的峰值占用,否则已确认订单在峰值时刻无货可租
// 3. 补货只会增加可用量,不需要查询预留
type RestockUseCase struct {
	productService  product.Service
	productRepo     product.Repository
	reservationRepo reservation.Repository
	txManager       TxManager
}

// NewRestockUseCase 创建补货用例
func NewRestockUseCase(
	productService product.Service,
	productRepo product.Repository,
	reservationRepo reservation.Repository,
	txManager TxManager,
) *RestockUseCase {
	return &RestockUseCase{
		productService:  productService,
		productRepo:     productRepo,
		reservationRepo: reservationRepo,
		txManager:       txManager,
	}
}

// Execute 执行补货(delta>0)或报损(delta<0)
func (uc *RestockUseCase) Execute(ctx context.Context, productID uint, actor user.Actor, delta int) (*ProductResponse, error) {
	if actor.IsAnonymous() {
		return nil, apperrors.ErrUnauthorized
	}

	var p *product.Product
	err := uc.txManager.Transaction(ctx, func(txCtx context.Context) error {
		locked, err := uc.productRepo.LockByID(txCtx, productID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && !locked.IsOwnedBy(actor.UserID) {
			return product.ErrForbidden
		}

		if delta < 0 {
			holds, err := uc.reservationRepo.ListActiveByProduct(txCtx, productID)
			if err != nil {
				return err
			}
			if peak := reservation.PeakReserved(holds); locked.QuantityOnHand+delta < peak {
				return apperrors.Newf(apperrors.ErrCodeInsufficientStock,
					"已确认订单最多同时占用%d件,报损后仅剩%d件", peak, locked.QuantityOnHand+delta)
			}
		}

		p, err = uc.productService.Restock(txCtx, productID, actor.UserID, actor.IsAdmin(), delta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return toProductResponse(p), nil
}

package product

import (
	"context"
	"unicode/utf8"
)

// Service 商品领域服务接口
type Service interface {
	// Publish 发布商品
	// 业务规则:名称1-200字符,日租金1-99999999分,初始数量>=0
	Publish(ctx context.Context, vendorID uint, name, description string, dailyRate int64, quantity int) (*Product, error)

	// Get 根据ID获取商品
	Get(ctx context.Context, id uint) (*Product, error)

	// List 分页查询(公开接口,不需要权限校验)
	List(ctx context.Context, params ListParams) ([]*Product, int64, error)

	// Restock 补货/报损
	// 业务规则:只有所属出租方或管理员可以操作
	Restock(ctx context.Context, id uint, actorID uint, isAdmin bool, delta int) (*Product, error)
}

type service struct {
	repo Repository
}

// NewService 创建商品领域服务
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Publish(ctx context.Context, vendorID uint, name, description string, dailyRate int64, quantity int) (*Product, error) {
	if n := utf8.RuneCountInString(name); n == 0 || n > 200 {
		return nil, ErrInvalidName
	}
	if dailyRate < 1 || dailyRate > 99999999 {
		return nil, ErrInvalidRate
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	p := NewProduct(vendorID, name, description, dailyRate, quantity)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) Get(ctx context.Context, id uint) (*Product, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, params ListParams) ([]*Product, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	return s.repo.List(ctx, params)
}

// Restock 补货/报损
// 教学要点:数量调整使用 UPDATE ... SET quantity = quantity + ? WHERE quantity + ? >= 0
// 由数据库保证原子性,不需要先读后写
func (s *service) Restock(ctx context.Context, id uint, actorID uint, isAdmin bool, delta int) (*Product, error) {
	if delta == 0 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !p.IsOwnedBy(actorID) {
		return nil, ErrForbidden
	}

	if err := s.repo.AdjustQuantity(ctx, id, delta); err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, id)
}

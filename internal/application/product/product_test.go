package product

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/rentalhub/internal/domain/product"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/internal/domain/user"
	"github.com/xiebiao/rentalhub/internal/infrastructure/persistence/memory"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

func newService() product.Service {
	return product.NewService(memory.NewProductRepository(memory.NewStore()))
}

func TestPublishAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	created, err := NewPublishProductUseCase(svc).Execute(ctx, PublishProductRequest{
		Actor: user.VendorActor(10), Name: "折叠自行车", DailyRate: 3000, Quantity: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, uint(10), created.VendorID)

	got, err := NewGetProductUseCase(svc).Execute(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "折叠自行车", got.Name)
	assert.Equal(t, 4, got.QuantityOnHand)

	_, err = NewGetProductUseCase(svc).Execute(ctx, 999)
	assert.ErrorIs(t, err, product.ErrProductNotFound)
}

func TestPublish_Validation(t *testing.T) {
	ctx := context.Background()
	uc := NewPublishProductUseCase(newService())

	_, err := uc.Execute(ctx, PublishProductRequest{Actor: user.CustomerActor(20), Name: "x", DailyRate: 1, Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = uc.Execute(ctx, PublishProductRequest{Actor: user.VendorActor(10), Name: "", DailyRate: 1})
	assert.ErrorIs(t, err, product.ErrInvalidName)

	_, err = uc.Execute(ctx, PublishProductRequest{Actor: user.VendorActor(10), Name: "x", DailyRate: 0})
	assert.ErrorIs(t, err, product.ErrInvalidRate)

	_, err = uc.Execute(ctx, PublishProductRequest{Actor: user.VendorActor(10), Name: "x", DailyRate: 1, Quantity: -1})
	assert.ErrorIs(t, err, product.ErrInvalidQuantity)
}

type restockFixture struct {
	svc          product.Service
	reservations reservation.Repository
	restock      *RestockUseCase
}

func newRestockFixture() *restockFixture {
	s := memory.NewStore()
	products := memory.NewProductRepository(s)
	f := &restockFixture{
		svc:          product.NewService(products),
		reservations: memory.NewReservationRepository(s),
	}
	f.restock = NewRestockUseCase(f.svc, products, f.reservations, memory.NewTxManager(s))
	return f
}

// hold 写入一条生效预留,窗口为第from天到第to天
func (f *restockFixture) hold(t *testing.T, productID, lineID uint, qty, from, to int) {
	t.Helper()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	w, err := reservation.NewWindow(base.AddDate(0, 0, from-1), base.AddDate(0, 0, to-1))
	require.NoError(t, err)
	r, err := reservation.New(productID, lineID, lineID, qty, w, base)
	require.NoError(t, err)
	require.NoError(t, f.reservations.Create(context.Background(), r))
}

func TestRestock(t *testing.T) {
	ctx := context.Background()
	f := newRestockFixture()
	p, err := NewPublishProductUseCase(f.svc).Execute(ctx, PublishProductRequest{
		Actor: user.VendorActor(10), Name: "投影仪", DailyRate: 8000, Quantity: 2,
	})
	require.NoError(t, err)
	uc := f.restock

	got, err := uc.Execute(ctx, p.ID, user.VendorActor(10), 3)
	require.NoError(t, err)
	assert.Equal(t, 5, got.QuantityOnHand)

	_, err = uc.Execute(ctx, p.ID, user.VendorActor(11), 1)
	assert.ErrorIs(t, err, product.ErrForbidden)

	got, err = uc.Execute(ctx, p.ID, user.AdminActor(1), -5)
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuantityOnHand)

	_, err = uc.Execute(ctx, p.ID, user.VendorActor(10), -1)
	assert.ErrorIs(t, err, product.ErrInsufficientStock)

	_, err = uc.Execute(ctx, 999, user.AdminActor(1), 1)
	assert.ErrorIs(t, err, product.ErrProductNotFound)
}

func TestRestock_CannotDropBelowActiveHolds(t *testing.T) {
	ctx := context.Background()
	f := newRestockFixture()
	p, err := NewPublishProductUseCase(f.svc).Execute(ctx, PublishProductRequest{
		Actor: user.VendorActor(10), Name: "无人机", DailyRate: 20000, Quantity: 5,
	})
	require.NoError(t, err)

	// 第1-3天占2件,第3-5天占1件(第3天相接,同时占3件),第8-9天占2件
	f.hold(t, p.ID, 1, 2, 1, 3)
	f.hold(t, p.ID, 2, 1, 3, 5)
	f.hold(t, p.ID, 3, 2, 8, 9)

	_, err = f.restock.Execute(ctx, p.ID, user.VendorActor(10), -3)
	assert.ErrorIs(t, err, product.ErrInsufficientStock, "峰值占用3件,不能报损到2件")

	got, err := NewGetProductUseCase(f.svc).Execute(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.QuantityOnHand, "拒绝后数量不变")

	resp, err := f.restock.Execute(ctx, p.ID, user.VendorActor(10), -2)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.QuantityOnHand)

	// 预留释放后可以继续报损
	_, err = f.reservations.ReleaseByOrder(ctx, 1, time.Now())
	require.NoError(t, err)
	_, err = f.reservations.ReleaseByOrder(ctx, 2, time.Now())
	require.NoError(t, err)

	resp, err = f.restock.Execute(ctx, p.ID, user.AdminActor(1), -1)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.QuantityOnHand)

	// 他人无权操作
	_, err = f.restock.Execute(ctx, p.ID, user.VendorActor(11), -1)
	assert.ErrorIs(t, err, product.ErrForbidden)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	publish := NewPublishProductUseCase(svc)
	for _, name := range []string{"露营帐篷", "睡袋", "露营灯"} {
		_, err := publish.Execute(ctx, PublishProductRequest{Actor: user.VendorActor(10), Name: name, DailyRate: 1000, Quantity: 1})
		require.NoError(t, err)
	}

	resp, err := NewListProductsUseCase(svc).Execute(ctx, ListProductsRequest{Keyword: "露营"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, 20, resp.PageSize)
}

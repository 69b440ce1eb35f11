package rental

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/internal/application/availability"
	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/domain/product"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/internal/domain/user"
	"github.com/xiebiao/rentalhub/internal/infrastructure/persistence/memory"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
)

const (
	vendorID   uint = 10
	customerID uint = 20
	strangerID uint = 30
)

var (
	day1     = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	vendor   = user.VendorActor(vendorID)
	customer = user.CustomerActor(customerID)
	admin    = user.AdminActor(1)
)

func day(n int) time.Time {
	return day1.AddDate(0, 0, n-1)
}

// flakyTx 前failures次事务直接返回并发冲突
type flakyTx struct {
	inner    TxManager
	failures int32
	calls    int32
}

func (f *flakyTx) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if atomic.AddInt32(&f.calls, 1) <= f.failures {
		return apperrors.WithCode(apperrors.ErrCodeConcurrencyConflict, errors.New("Deadlock found when trying to get lock"), "操作冲突")
	}
	return f.inner.Transaction(ctx, fn)
}

type fixture struct {
	store        *memory.Store
	products     product.Repository
	orders       order.Repository
	reservations reservation.Repository
	avail        *availability.Service
	tx           TxManager
	create       *CreateOrderUseCase
	transition   *TransitionUseCase
	clock        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.NewStore()
	f := &fixture{
		store:        s,
		products:     memory.NewProductRepository(s),
		orders:       memory.NewOrderRepository(s),
		reservations: memory.NewReservationRepository(s),
		tx:           memory.NewTxManager(s),
		clock:        day1.Add(-24 * time.Hour),
	}
	f.avail = availability.NewService(f.products, f.reservations, zap.NewNop())
	f.create = NewCreateOrderUseCase(f.orders, f.products, f.avail, f.tx, zap.NewNop())
	f.buildTransition(f.tx, 3)
	return f
}

func (f *fixture) buildTransition(tx TxManager, retries int) {
	settings := NewStaticLateFeeSettings(decimal.RequireFromString("0.1"), 0)
	f.transition = NewTransitionUseCase(f.orders, f.products, f.reservations, tx, settings, retries, zap.NewNop()).
		WithClock(func() time.Time { return f.clock })
}

func (f *fixture) product(t *testing.T, onHand int, dailyRate int64) uint {
	t.Helper()
	p := product.NewProduct(vendorID, "单反相机", "全画幅", dailyRate, onHand)
	require.NoError(t, f.products.Create(context.Background(), p))
	return p.ID
}

func (f *fixture) order(t *testing.T, productID uint, qty int, start, end time.Time) *OrderResponse {
	t.Helper()
	resp, err := f.create.Execute(context.Background(), CreateOrderRequest{
		Actor: customer,
		Start: start,
		End:   end,
		Lines: []CreateOrderLine{{ProductID: productID, Quantity: qty}},
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) do(orderID uint, action order.Action, actor user.Actor) (*OrderResponse, error) {
	return f.transition.Execute(context.Background(), TransitionRequest{OrderID: orderID, Action: action, Actor: actor})
}

func (f *fixture) available(t *testing.T, productID uint, start, end time.Time) int {
	t.Helper()
	n, err := f.avail.GetAvailableQuantity(context.Background(), productID, start, end)
	require.NoError(t, err)
	return n
}

func (f *fixture) setStatus(t *testing.T, orderID uint, status order.OrderStatus) {
	t.Helper()
	o, err := f.orders.FindByID(context.Background(), orderID)
	require.NoError(t, err)
	o.Status = status
	require.NoError(t, f.orders.Update(context.Background(), o))
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 3, 5000)

	resp := f.order(t, pid, 2, day(1), day(4))

	assert.Equal(t, "QUOTATION", resp.Status)
	assert.Equal(t, vendorID, resp.VendorID)
	assert.Equal(t, customerID, resp.CustomerID)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, int64(5000), resp.Lines[0].UnitPrice)
	assert.Equal(t, 3, resp.Lines[0].Days)
	assert.Equal(t, int64(30000), resp.TotalAmount)
	assert.Equal(t, "300.00", resp.TotalYuan)
	assert.Regexp(t, `^RNT\d+$`, resp.OrderNo)

	// 报价单不占用库存
	assert.Equal(t, 3, f.available(t, pid, day(1), day(4)))
}

func TestCreateOrder_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.product(t, 3, 5000)
	other := product.NewProduct(vendorID+1, "三脚架", "", 1000, 5)
	require.NoError(t, f.products.Create(ctx, other))

	tests := []struct {
		name string
		req  CreateOrderRequest
		want error
	}{
		{"空订单行", CreateOrderRequest{Actor: customer, Start: day(1), End: day(2)}, order.ErrInvalidOrderLines},
		{"数量为0", CreateOrderRequest{Actor: customer, Start: day(1), End: day(2), Lines: []CreateOrderLine{{pid, 0}}}, order.ErrInvalidQuantity},
		{"结束早于开始", CreateOrderRequest{Actor: customer, Start: day(2), End: day(1), Lines: []CreateOrderLine{{pid, 1}}}, reservation.ErrInvalidWindow},
		{"商品不存在", CreateOrderRequest{Actor: customer, Start: day(1), End: day(2), Lines: []CreateOrderLine{{999, 1}}}, product.ErrProductNotFound},
		{"跨出租方", CreateOrderRequest{Actor: customer, Start: day(1), End: day(2), Lines: []CreateOrderLine{{pid, 1}, {other.ID, 1}}}, order.ErrVendorMismatch},
		{"出租方不能下单", CreateOrderRequest{Actor: vendor, Start: day(1), End: day(2), Lines: []CreateOrderLine{{pid, 1}}}, order.ErrForbidden},
		{"匿名", CreateOrderRequest{Start: day(1), End: day(2), Lines: []CreateOrderLine{{pid, 1}}}, apperrors.ErrUnauthorized},
		{"超出数量", CreateOrderRequest{Actor: customer, Start: day(1), End: day(2), Lines: []CreateOrderLine{{pid, 2}, {pid, 2}}}, apperrors.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.create.Execute(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateOrder_AdminOnBehalfOfCustomer(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 1, 5000)

	_, err := f.create.Execute(context.Background(), CreateOrderRequest{
		Actor: admin, Start: day(1), End: day(2), Lines: []CreateOrderLine{{pid, 1}},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidParams))

	resp, err := f.create.Execute(context.Background(), CreateOrderRequest{
		Actor: admin, CustomerID: customerID, Start: day(1), End: day(2), Lines: []CreateOrderLine{{pid, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, customerID, resp.CustomerID)
}

func TestLifecycle_LateReturn(t *testing.T) {
	f := newFixture(t)
	// 350元/天 × 1件 × 2天 = 700元
	pid := f.product(t, 1, 35000)
	o := f.order(t, pid, 1, day(1), day(3))
	assert.Equal(t, "700.00", o.TotalYuan)

	resp, err := f.do(o.ID, order.ActionSend, vendor)
	require.NoError(t, err)
	assert.Equal(t, "SENT", resp.Status)
	assert.NotNil(t, resp.SentAt)
	assert.Equal(t, 1, f.available(t, pid, day(1), day(3)))

	resp, err = f.do(o.ID, order.ActionConfirm, customer)
	require.NoError(t, err)
	assert.Equal(t, "CONFIRMED", resp.Status)
	assert.Equal(t, 0, f.available(t, pid, day(1), day(3)))

	f.clock = day(1)
	resp, err = f.do(o.ID, order.ActionPickup, vendor)
	require.NoError(t, err)
	assert.Equal(t, "PICKED_UP", resp.Status)

	// 计划归还day3,实际晚2天
	f.clock = day(5)
	resp, err = f.do(o.ID, order.ActionReturn, vendor)
	require.NoError(t, err)
	assert.Equal(t, "RETURNED", resp.Status)
	require.NotNil(t, resp.LateFee)
	assert.Equal(t, "20.00", *resp.LateFee)
	require.NotNil(t, resp.ActualReturnAt)
	assert.True(t, resp.ActualReturnAt.Equal(day(5)))

	// 归还后预留释放
	assert.Equal(t, 1, f.available(t, pid, day(1), day(3)))

	stored, err := f.reservations.ListByOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, reservation.StatusReleased, stored[0].Status)
}

func TestLifecycle_OnTimeReturnHasNoFee(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 1, 35000)
	o := f.order(t, pid, 1, day(1), day(3))

	_, err := f.do(o.ID, order.ActionConfirm, customer)
	require.NoError(t, err)
	_, err = f.do(o.ID, order.ActionPickup, vendor)
	require.NoError(t, err)

	f.clock = day(3)
	resp, err := f.do(o.ID, order.ActionReturn, admin)
	require.NoError(t, err)
	assert.Nil(t, resp.LateFee, "按时归还不记录滞纳金")

	stored, err := f.orders.FindByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LateFee)
}

func TestLifecycle_ReturnWithinGracePeriodHasNoFee(t *testing.T) {
	f := newFixture(t)
	settings := NewStaticLateFeeSettings(decimal.RequireFromString("0.1"), 6)
	f.transition = NewTransitionUseCase(f.orders, f.products, f.reservations, f.tx, settings, 3, zap.NewNop()).
		WithClock(func() time.Time { return f.clock })

	pid := f.product(t, 1, 35000)
	o := f.order(t, pid, 1, day(1), day(3))
	_, err := f.do(o.ID, order.ActionConfirm, customer)
	require.NoError(t, err)
	_, err = f.do(o.ID, order.ActionPickup, vendor)
	require.NoError(t, err)

	f.clock = day(3).Add(5 * time.Hour)
	resp, err := f.do(o.ID, order.ActionReturn, vendor)
	require.NoError(t, err)
	assert.Nil(t, resp.LateFee)
}

func TestTransition_Legality(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 100, 1000)

	for _, status := range order.Statuses() {
		for _, action := range order.Actions() {
			o := f.order(t, pid, 1, day(1), day(2))
			f.setStatus(t, o.ID, status)
			candidate := &order.Order{Status: status}
			if candidate.CanApply(action) {
				continue
			}

			t.Run(status.String()+"_"+string(action), func(t *testing.T) {
				_, err := f.do(o.ID, action, admin)
				assert.ErrorIs(t, err, order.ErrInvalidTransition)

				after, err := f.orders.FindByID(context.Background(), o.ID)
				require.NoError(t, err)
				assert.Equal(t, status, after.Status, "非法转换后订单状态不变")

				held, err := f.reservations.ListByOrder(context.Background(), o.ID)
				require.NoError(t, err)
				assert.Empty(t, held)
			})
		}
	}
}

func TestTransition_PickedUpCannotBeCancelled(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 1, 1000)
	o := f.order(t, pid, 1, day(1), day(2))

	_, err := f.do(o.ID, order.ActionConfirm, customer)
	require.NoError(t, err)
	_, err = f.do(o.ID, order.ActionPickup, vendor)
	require.NoError(t, err)

	_, err = f.do(o.ID, order.ActionCancel, vendor)
	assert.ErrorIs(t, err, order.ErrInvalidTransition)
	assert.Equal(t, 0, f.available(t, pid, day(1), day(2)), "预留仍然有效")
}

func TestTransition_Authorization(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 5, 1000)
	o := f.order(t, pid, 1, day(1), day(2))

	tests := []struct {
		name   string
		action order.Action
		actor  user.Actor
	}{
		{"租客不能发送报价", order.ActionSend, customer},
		{"其他租客不能确认", order.ActionConfirm, user.CustomerActor(strangerID)},
		{"其他出租方不能取消", order.ActionCancel, user.VendorActor(strangerID)},
		{"匿名", order.ActionCancel, user.Actor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.do(o.ID, tt.action, tt.actor)
			assert.ErrorIs(t, err, order.ErrForbidden)
		})
	}

	// 权限先于状态校验:陌生人对终态订单操作仍然得到无权限
	f.setStatus(t, o.ID, order.StatusReturned)
	_, err := f.do(o.ID, order.ActionPickup, user.VendorActor(strangerID))
	assert.ErrorIs(t, err, order.ErrForbidden)

	_, err = f.do(999, order.ActionSend, admin)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)

	_, err = f.do(o.ID, order.Action("teleport"), admin)
	assert.ErrorIs(t, err, order.ErrInvalidAction)
}

func TestConfirm_RecheckRejectsRace(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 1, 1000)

	// 两张报价单都通过了预检(报价单不占用库存)
	a := f.order(t, pid, 1, day(1), day(3))
	b := f.order(t, pid, 1, day(2), day(4))

	_, err := f.do(a.ID, order.ActionConfirm, customer)
	require.NoError(t, err)

	_, err = f.do(b.ID, order.ActionConfirm, customer)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)

	after, err := f.orders.FindByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusQuotation, after.Status)

	// 发送报价的预检同样会拒绝
	_, err = f.do(b.ID, order.ActionSend, vendor)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestConfirm_ConcurrentNoDoubleBooking(t *testing.T) {
	const (
		capacity = 2
		n        = 8
	)
	f := newFixture(t)
	pid := f.product(t, capacity, 1000)

	ids := make([]uint, n)
	for i := range ids {
		ids[i] = f.order(t, pid, capacity, day(1), day(3)).ID
	}

	var (
		wg          sync.WaitGroup
		successes   int32
		unavailable int32
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.do(id, order.ActionConfirm, customer)
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, apperrors.ErrUnavailable):
				atomic.AddInt32(&unavailable, 1)
			default:
				t.Errorf("意外的错误: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes)
	assert.Equal(t, int32(n-1), unavailable)

	held, err := f.reservations.FindActiveOverlapping(context.Background(), pid, reservation.Window{Start: day(1), End: day(3)})
	require.NoError(t, err)
	assert.LessOrEqual(t, reservation.ReservedQuantity(held, reservation.Window{Start: day(1), End: day(3)}), capacity)
}

func TestCancel_FreesCapacityAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.product(t, 1, 1000)
	o := f.order(t, pid, 1, day(1), day(3))

	_, err := f.do(o.ID, order.ActionConfirm, customer)
	require.NoError(t, err)
	assert.Equal(t, 0, f.available(t, pid, day(2), day(2).Add(time.Hour)))

	resp, err := f.do(o.ID, order.ActionCancel, customer)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", resp.Status)
	assert.Equal(t, 1, f.available(t, pid, day(2), day(2).Add(time.Hour)))

	// 重复取消:干净地失败,不会重复释放
	_, err = f.do(o.ID, order.ActionCancel, customer)
	assert.ErrorIs(t, err, order.ErrInvalidTransition)

	n, err := f.reservations.ReleaseByOrder(ctx, o.ID, day(2))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 1, f.available(t, pid, day(2), day(2).Add(time.Hour)))
}

func TestCancel_QuotationWithoutHold(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 1, 1000)
	o := f.order(t, pid, 1, day(1), day(3))

	_, err := f.do(o.ID, order.ActionCancel, vendor)
	require.NoError(t, err)
	assert.Equal(t, 1, f.available(t, pid, day(1), day(3)))
}

func TestTransition_ConflictRetry(t *testing.T) {
	t.Run("重试后成功", func(t *testing.T) {
		f := newFixture(t)
		pid := f.product(t, 1, 1000)
		o := f.order(t, pid, 1, day(1), day(3))

		flaky := &flakyTx{inner: f.tx, failures: 2}
		f.buildTransition(flaky, 3)

		resp, err := f.do(o.ID, order.ActionConfirm, customer)
		require.NoError(t, err)
		assert.Equal(t, "CONFIRMED", resp.Status)
		assert.Equal(t, int32(3), atomic.LoadInt32(&flaky.calls))
	})

	t.Run("重试耗尽视为不可用", func(t *testing.T) {
		f := newFixture(t)
		pid := f.product(t, 1, 1000)
		o := f.order(t, pid, 1, day(1), day(3))

		flaky := &flakyTx{inner: f.tx, failures: 10}
		f.buildTransition(flaky, 3)

		_, err := f.do(o.ID, order.ActionConfirm, customer)
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		assert.Equal(t, int32(4), atomic.LoadInt32(&flaky.calls))

		after, err := f.orders.FindByID(context.Background(), o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusQuotation, after.Status)
	})

	t.Run("非确认动作保留冲突错误", func(t *testing.T) {
		f := newFixture(t)
		pid := f.product(t, 1, 1000)
		o := f.order(t, pid, 1, day(1), day(3))

		f.buildTransition(&flakyTx{inner: f.tx, failures: 10}, 1)

		_, err := f.do(o.ID, order.ActionSend, vendor)
		assert.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)
	})
}

func TestCapacityInvariant_MixedOperations(t *testing.T) {
	f := newFixture(t)
	pid := f.product(t, 3, 1000)
	w := reservation.Window{Start: day(1), End: day(10)}

	var confirmed []uint
	for i := 0; i < 6; i++ {
		o := f.order(t, pid, 1, day(1+i), day(3+i))
		if _, err := f.do(o.ID, order.ActionConfirm, customer); err == nil {
			confirmed = append(confirmed, o.ID)
		} else {
			assert.ErrorIs(t, err, apperrors.ErrUnavailable)
		}
		if i%2 == 1 && len(confirmed) > 0 {
			_, err := f.do(confirmed[0], order.ActionCancel, customer)
			require.NoError(t, err)
			confirmed = confirmed[1:]
		}

		// 逐日检查任意时刻的占用不超过实物数量
		for d := 1; d <= 10; d++ {
			instant := reservation.Window{Start: day(d), End: day(d)}
			held, err := f.reservations.FindActiveOverlapping(context.Background(), pid, w)
			require.NoError(t, err)
			assert.LessOrEqual(t, reservation.ReservedQuantity(held, instant), 3)
		}
	}
}

package rental

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/internal/domain/user"
)

func TestComputeLateFee(t *testing.T) {
	cfg := order.LateFeeConfig{Rate: decimal.RequireFromString("0.1")}
	w := reservation.Window{Start: day(1), End: day(3)}
	returned := day(5)

	o := &order.Order{Window: w, TotalAmount: 70000}

	o.Status = order.StatusConfirmed
	assert.Equal(t, "0.00", ComputeLateFee(o, cfg, day(9)).StringFixed(2))

	o.Status = order.StatusPickedUp
	assert.Equal(t, "10.00", ComputeLateFee(o, cfg, day(4)).StringFixed(2), "租用中按当前时间预估")

	o.Status = order.StatusReturned
	o.ActualReturnAt = &returned
	assert.Equal(t, "20.00", ComputeLateFee(o, cfg, day(30)).StringFixed(2), "已归还按实际归还时间")
}

func TestGetOrder_Visibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.product(t, 1, 1000)
	o := f.order(t, pid, 1, day(1), day(2))
	uc := NewGetOrderUseCase(f.orders)

	for _, actor := range []user.Actor{customer, vendor, admin} {
		got, err := uc.Execute(ctx, o.ID, actor)
		require.NoError(t, err)
		assert.Equal(t, o.OrderNo, got.OrderNo)
	}

	_, err := uc.Execute(ctx, o.ID, user.CustomerActor(strangerID))
	assert.ErrorIs(t, err, order.ErrForbidden)

	_, err = uc.Execute(ctx, 12345, admin)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestListOrders_ByRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.product(t, 5, 1000)
	for i := 0; i < 3; i++ {
		f.order(t, pid, 1, day(1), day(2))
	}
	uc := NewListOrdersUseCase(f.orders)

	mine, err := uc.Execute(ctx, customer, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), mine.Total)
	assert.Len(t, mine.Orders, 2)

	received, err := uc.Execute(ctx, vendor, 1, 20)
	require.NoError(t, err)
	assert.Len(t, received.Orders, 3)

	none, err := uc.Execute(ctx, user.CustomerActor(strangerID), 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), none.Total)
}

func TestLateFeeUseCase(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.product(t, 1, 35000)
	o := f.order(t, pid, 1, day(1), day(3))

	_, err := f.do(o.ID, order.ActionConfirm, customer)
	require.NoError(t, err)
	_, err = f.do(o.ID, order.ActionPickup, vendor)
	require.NoError(t, err)

	uc := NewLateFeeUseCase(f.orders, NewStaticLateFeeSettings(decimal.RequireFromString("0.1"), 0))
	uc.now = func() time.Time { return day(4) }

	est, err := uc.Execute(ctx, o.ID, customer)
	require.NoError(t, err)
	assert.True(t, est.Estimated)
	assert.Equal(t, 1, est.DelayDays)
	assert.Equal(t, "10.00", est.LateFee)

	f.clock = day(5)
	_, err = f.do(o.ID, order.ActionReturn, vendor)
	require.NoError(t, err)

	final, err := uc.Execute(ctx, o.ID, vendor)
	require.NoError(t, err)
	assert.False(t, final.Estimated)
	assert.Equal(t, 2, final.DelayDays)
	assert.Equal(t, "20.00", final.LateFee)
}

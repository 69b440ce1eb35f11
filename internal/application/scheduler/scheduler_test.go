package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/rentalhub/internal/domain/notification"
	"github.com/xiebiao/rentalhub/internal/domain/order"
	"github.com/xiebiao/rentalhub/internal/domain/reservation"
	"github.com/xiebiao/rentalhub/internal/infrastructure/persistence/memory"
)

var now = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

// recordingNotifier 记录收到的通知,可配置前几次失败
type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
	failures int
}

func (n *recordingNotifier) Notify(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failures > 0 {
		n.failures--
		return notification.ErrNotifyFailed
	}
	n.messages = append(n.messages, m)
	return nil
}

func (n *recordingNotifier) sent() []notification.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification.Message(nil), n.messages...)
}

// failingOrders 查询订单总是失败
type failingOrders struct {
	order.Repository
	calls int32
}

func (f *failingOrders) ListAwaitingReminder(context.Context, time.Time, time.Time, int) ([]*order.Order, error) {
	atomic.AddInt32(&f.calls, 1)
	return nil, errors.New("dial tcp: connection refused")
}

type stubLocker struct {
	acquired bool
	released int
}

func (l *stubLocker) TryLock(context.Context, time.Duration) (func(context.Context) error, bool, error) {
	if !l.acquired {
		return nil, false, nil
	}
	return func(context.Context) error { l.released++; return nil }, true, nil
}

type fixture struct {
	orders   order.Repository
	logs     notification.Repository
	notifier *recordingNotifier
	sched    *ExpiryScheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.NewStore()
	f := &fixture{
		orders:   memory.NewOrderRepository(s),
		logs:     memory.NewNotificationRepository(s),
		notifier: &recordingNotifier{},
	}
	f.sched = NewExpiryScheduler(f.orders, f.logs, f.notifier, nil,
		Config{Lookahead: 10 * time.Minute, TickTimeout: time.Second, BatchSize: 100}, zap.NewNop())
	f.sched.now = func() time.Time { return now }
	return f
}

func (f *fixture) rental(t *testing.T, status order.OrderStatus, end time.Time) *order.Order {
	t.Helper()
	w := reservation.Window{Start: end.Add(-72 * time.Hour), End: end}
	o := order.NewOrder(order.GenerateOrderNo(now), 20, 10, w,
		[]order.OrderLine{{ProductID: 1, Quantity: 1, UnitPrice: 1000, Window: w}}, "", now)
	o.Status = status
	require.NoError(t, f.orders.Create(context.Background(), o))
	return o
}

func TestSweepOnce_NotifiesEachThresholdOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	dueSoon := f.rental(t, order.StatusPickedUp, now.Add(5*time.Minute))
	overdue := f.rental(t, order.StatusPickedUp, now.Add(-2*time.Hour))
	// 以下三单不应被提醒:未进入窗口、尚未取货、已归还
	f.rental(t, order.StatusPickedUp, now.Add(3*time.Hour))
	f.rental(t, order.StatusConfirmed, now.Add(-1*time.Hour))
	f.rental(t, order.StatusReturned, now.Add(-48*time.Hour))

	res, err := f.sched.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 2, res.Notified)

	kinds := map[uint]notification.Kind{}
	for _, m := range f.notifier.sent() {
		kinds[m.OrderID] = m.Kind
		assert.NotEmpty(t, m.EventID)
	}
	assert.Equal(t, notification.KindDueSoon, kinds[dueSoon.ID])
	assert.Equal(t, notification.KindOverdue, kinds[overdue.ID])

	// 下一个周期不重复通知,已提醒的订单不再被扫描
	res, err = f.sched.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Scanned)
	assert.Equal(t, 0, res.Notified)
	assert.Len(t, f.notifier.sent(), 2)
}

func TestSweepOnce_NotifiedOrdersDoNotFillBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.sched.cfg.BatchSize = 2

	// 两单长期逾期未归还
	f.rental(t, order.StatusPickedUp, now.Add(-48*time.Hour))
	f.rental(t, order.StatusPickedUp, now.Add(-24*time.Hour))

	res, err := f.sched.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Notified)

	// 新进入提醒窗口的订单,计划归还时间晚于两单逾期订单
	dueSoon := f.rental(t, order.StatusPickedUp, now.Add(5*time.Minute))

	res, err = f.sched.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Notified)

	sent := f.notifier.sent()
	require.Len(t, sent, 3)
	assert.Equal(t, dueSoon.ID, sent[2].OrderID)
	assert.Equal(t, notification.KindDueSoon, sent[2].Kind)
}

func TestSweepOnce_DueSoonThenOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.rental(t, order.StatusPickedUp, now.Add(5*time.Minute))

	_, err := f.sched.SweepOnce(ctx)
	require.NoError(t, err)

	// 时间越过计划归还时间,触发第二个阈值
	f.sched.now = func() time.Time { return now.Add(time.Hour) }
	res, err := f.sched.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)

	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, o.ID, sent[1].OrderID)
	assert.Equal(t, notification.KindOverdue, sent[1].Kind)
}

func TestSweepOnce_FailedNotifyIsCompensated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.rental(t, order.StatusPickedUp, now.Add(-time.Minute))
	f.notifier.failures = 1

	res, err := f.sched.SweepOnce(ctx)
	require.NoError(t, err, "单个订单失败不影响整次扫描")
	assert.Equal(t, 1, res.Failed)

	exists, err := f.logs.Exists(ctx, o.ID, notification.KindOverdue)
	require.NoError(t, err)
	assert.False(t, exists, "发送失败后通知记录应被删除")

	res, err = f.sched.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)
	assert.Len(t, f.notifier.sent(), 1)
}

func TestSweepOnce_Reentrancy(t *testing.T) {
	f := newFixture(t)
	f.rental(t, order.StatusPickedUp, now.Add(-time.Minute))

	f.sched.sweeping.Store(true)
	res, err := f.sched.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Empty(t, f.notifier.sent())
}

func TestSweepOnce_Locker(t *testing.T) {
	f := newFixture(t)
	f.rental(t, order.StatusPickedUp, now.Add(-time.Minute))

	locker := &stubLocker{}
	f.sched.locker = locker
	f.sched.cfg.LockTTL = time.Minute

	res, err := f.sched.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped, "其他实例持有锁")

	locker.acquired = true
	res, err = f.sched.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)
	assert.Equal(t, 1, locker.released)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	s := f.sched

	assert.False(t, s.IsRunning())
	assert.Error(t, s.Start(0))

	require.NoError(t, s.Start(5))
	assert.True(t, s.IsRunning())
	assert.Equal(t, 5, s.Status().IntervalMinutes)

	// 重复启动:相同间隔无操作,不同间隔按新间隔重启
	require.NoError(t, s.Start(5))
	assert.True(t, s.IsRunning())
	require.NoError(t, s.Start(15))
	assert.Equal(t, 15, s.Status().IntervalMinutes)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop() // 重复停止无副作用
	assert.False(t, s.IsRunning())
}

func TestLoop_SurvivesFailedSweeps(t *testing.T) {
	f := newFixture(t)
	failing := &failingOrders{Repository: f.orders}
	f.sched.orderRepo = failing

	f.sched.start(10 * time.Millisecond)
	defer f.sched.Stop()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&failing.calls) >= 3
	}, 2*time.Second, 5*time.Millisecond, "扫描失败后循环应继续")
	assert.True(t, f.sched.IsRunning())
	assert.Contains(t, f.sched.Status().LastError, "connection refused")
}

func TestLoop_Notifies(t *testing.T) {
	f := newFixture(t)
	f.rental(t, order.StatusPickedUp, now.Add(-time.Minute))

	f.sched.start(10 * time.Millisecond)
	defer f.sched.Stop()

	assert.Eventually(t, func() bool {
		return len(f.notifier.sent()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	// 多个周期后仍然只有一条
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.notifier.sent(), 1)
}

package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock 可手动拨动的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errBroker = errors.New("broker unavailable")

func fail(ctx context.Context) error { return errBroker }
func ok(ctx context.Context) error   { return nil }

func newTestBreaker(clock *fakeClock, transitions *[]string) *CircuitBreaker {
	return New("notify-mq", Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
		OnStateChange: func(name string, from, to State) {
			*transitions = append(*transitions, from.String()+"->"+to.String())
		},
		Now: clock.Now,
	})
}

// TestCircuitBreaker_TripAfterConsecutiveFailures 连续失败达到阈值后熔断
func TestCircuitBreaker_TripAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errBroker) {
			t.Fatalf("第%d次期望业务错误，实际: %v", i+1, err)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("期望OPEN，实际%s", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpenState) {
		t.Errorf("熔断时期望ErrOpenState，实际: %v", err)
	}
	if called {
		t.Error("熔断时不应调用下游")
	}
}

// TestCircuitBreaker_HalfOpenRecovery 超时后半开，探测成功恢复
func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}

	clock.Advance(31 * time.Second)
	if cb.State() != StateHalfOpen {
		t.Fatalf("期望HALF_OPEN，实际%s", cb.State())
	}

	if err := cb.Execute(ctx, ok); err != nil {
		t.Fatalf("探测请求失败: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("探测成功后期望CLOSED，实际%s", cb.State())
	}

	expected := []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}
	if len(transitions) != len(expected) {
		t.Fatalf("状态变化期望%v，实际%v", expected, transitions)
	}
	for i := range expected {
		if transitions[i] != expected[i] {
			t.Errorf("第%d次状态变化期望%s，实际%s", i, expected[i], transitions[i])
		}
	}
}

// TestCircuitBreaker_HalfOpenFailure 半开探测失败立即回到OPEN
func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	clock.Advance(31 * time.Second)

	_ = cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Errorf("半开失败后期望OPEN，实际%s", cb.State())
	}
}

// TestCircuitBreaker_IntervalResetsCounts 统计窗口过期后清零
func TestCircuitBreaker_IntervalResetsCounts(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	var transitions []string
	cb := newTestBreaker(clock, &transitions)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	clock.Advance(2 * time.Minute)
	_ = cb.Execute(ctx, fail)

	if cb.State() != StateClosed {
		t.Errorf("窗口过期后不应熔断，实际%s", cb.State())
	}
	if c := cb.Counts(); c.ConsecutiveFailures != 1 {
		t.Errorf("期望连续失败1次，实际%d", c.ConsecutiveFailures)
	}
}

// TestCircuitBreaker_IsSuccessful 自定义成功判断
func TestCircuitBreaker_IsSuccessful(t *testing.T) {
	errInvalid := errors.New("invalid payload")
	cb := New("notify-mq", Config{
		ReadyToTrip:  func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errInvalid) },
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errInvalid })
	if cb.State() != StateClosed {
		t.Errorf("参数错误不应触发熔断，实际%s", cb.State())
	}
}

// TestCounts_FailureRate 失败率
func TestCounts_FailureRate(t *testing.T) {
	if r := (Counts{}).FailureRate(); r != 0 {
		t.Errorf("无请求时失败率应为0，实际%v", r)
	}
	if r := (Counts{Requests: 4, TotalFailures: 1}).FailureRate(); r != 0.25 {
		t.Errorf("期望0.25，实际%v", r)
	}
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecord_BeforeInit 未初始化时所有Record函数都是空操作
// 注意：本用例必须在InitMetrics之前运行，因此放在文件最前面且不并行
func TestRecord_BeforeInit(t *testing.T) {
	if OrderTransitionsTotal != nil {
		t.Skip("指标已被其它用例初始化")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("未初始化时不应panic: %v", r)
		}
	}()

	RecordHTTPRequest("GET", "/ping", 200, time.Millisecond)
	HTTPInProgress(1)
	RecordOrderCreated("success")
	RecordTransition("confirm", "success", time.Millisecond)
	RecordAvailabilityCheck(true)
	RecordReservationConflict()
	RecordReservationsReleased("cancel", 2)
	RecordSweep("success", time.Second)
	SetSchedulerRunning(true)
	RecordNotification("OVERDUE", "sent")
	SetCircuitBreakerState("notify-mq", 1)
	RecordCircuitBreakerRequest("notify-mq", "rejected")
	RecordMessagePublished("rental.events", "rental.overdue")
	RecordSaga("success")
}

// TestInitMetrics 重复初始化不会重复注册（promauto重复注册会panic）
func TestInitMetrics(t *testing.T) {
	InitMetrics()
	InitMetrics()

	if HTTPRequestsTotal == nil || OrderTransitionsTotal == nil || SchedulerRunning == nil {
		t.Fatal("指标未初始化")
	}
}

// TestRecordTransition 按action/result计数
func TestRecordTransition(t *testing.T) {
	InitMetrics()

	before := testutil.ToFloat64(OrderTransitionsTotal.WithLabelValues("confirm", "unavailable"))
	RecordTransition("confirm", "unavailable", 5*time.Millisecond)
	RecordTransition("confirm", "unavailable", 5*time.Millisecond)

	got := testutil.ToFloat64(OrderTransitionsTotal.WithLabelValues("confirm", "unavailable"))
	if got-before != 2 {
		t.Errorf("期望增加2，实际增加%v", got-before)
	}
}

// TestRecordAvailabilityCheck 可用/不可用分别计数
func TestRecordAvailabilityCheck(t *testing.T) {
	InitMetrics()

	okBefore := testutil.ToFloat64(AvailabilityChecksTotal.WithLabelValues("available"))
	noBefore := testutil.ToFloat64(AvailabilityChecksTotal.WithLabelValues("unavailable"))

	RecordAvailabilityCheck(true)
	RecordAvailabilityCheck(false)
	RecordAvailabilityCheck(false)

	if d := testutil.ToFloat64(AvailabilityChecksTotal.WithLabelValues("available")) - okBefore; d != 1 {
		t.Errorf("available期望+1，实际+%v", d)
	}
	if d := testutil.ToFloat64(AvailabilityChecksTotal.WithLabelValues("unavailable")) - noBefore; d != 2 {
		t.Errorf("unavailable期望+2，实际+%v", d)
	}
}

// TestSetSchedulerRunning Gauge取值
func TestSetSchedulerRunning(t *testing.T) {
	InitMetrics()

	SetSchedulerRunning(true)
	if v := testutil.ToFloat64(SchedulerRunning); v != 1 {
		t.Errorf("期望1，实际%v", v)
	}
	SetSchedulerRunning(false)
	if v := testutil.ToFloat64(SchedulerRunning); v != 0 {
		t.Errorf("期望0，实际%v", v)
	}
}

// TestRecordReservationsReleased 0条不计数
func TestRecordReservationsReleased(t *testing.T) {
	InitMetrics()

	before := testutil.ToFloat64(ReservationsReleasedTotal.WithLabelValues("return"))
	RecordReservationsReleased("return", 0)
	RecordReservationsReleased("return", 3)

	if d := testutil.ToFloat64(ReservationsReleasedTotal.WithLabelValues("return")) - before; d != 3 {
		t.Errorf("期望+3，实际+%v", d)
	}
}

// TestRecordHTTPRequest 状态码作为标签
func TestRecordHTTPRequest(t *testing.T) {
	InitMetrics()

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/orders/:id/confirm", "200"))
	RecordHTTPRequest("POST", "/api/v1/orders/:id/confirm", 200, 20*time.Millisecond)

	if d := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/v1/orders/:id/confirm", "200")) - before; d != 1 {
		t.Errorf("期望+1，实际+%v", d)
	}
}

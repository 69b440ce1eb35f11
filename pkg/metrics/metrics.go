// Package metrics 基于Prometheus的指标收集
//
// 指标类型：
//   - Counter：只增不减（请求总数、转换次数）
//   - Gauge：可增可减（处理中的请求数、扫描任务是否运行）
//   - Histogram：观测值分布（请求耗时，可查询P50/P99）
//
// 命名规范：Counter以_total结尾，Histogram以单位结尾（_seconds）
// 标签只用有限取值（action、result、kind），不要用order_id等高基数字段
//
// 使用方式：
//
//	metrics.InitMetrics()                   // main中调用一次
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
//	metrics.RecordTransition("confirm", "success", time.Since(start))
//
// 所有Record*函数在未初始化时为空操作，单元测试无需注册指标
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var initOnce sync.Once

var (
	// HTTP

	// HTTPRequestsTotal 标签：method、path（路由模板）、status
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration 标签：method、path
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsInProgress 正在处理的HTTP请求数
	HTTPRequestsInProgress prometheus.Gauge

	// 订单

	// OrdersCreatedTotal 标签：result（success/unavailable/error）
	OrdersCreatedTotal *prometheus.CounterVec

	// OrderTransitionsTotal 标签：action（send/confirm/pickup/return/cancel）、result
	OrderTransitionsTotal *prometheus.CounterVec

	// OrderTransitionDuration 标签：action
	OrderTransitionDuration *prometheus.HistogramVec

	// 可用性与预留

	// AvailabilityChecksTotal 标签：result（available/unavailable）
	AvailabilityChecksTotal *prometheus.CounterVec

	// ReservationConflictsTotal 锁冲突（死锁/锁等待超时）次数
	ReservationConflictsTotal prometheus.Counter

	// ReservationsReleasedTotal 释放的预留条数，标签：reason（return/cancel）
	ReservationsReleasedTotal *prometheus.CounterVec

	// 到期扫描

	// SchedulerSweepsTotal 标签：result（success/failure/skipped）
	SchedulerSweepsTotal *prometheus.CounterVec

	// SchedulerSweepDuration 单次扫描耗时
	SchedulerSweepDuration prometheus.Histogram

	// SchedulerRunning 扫描任务是否运行（1/0）
	SchedulerRunning prometheus.Gauge

	// NotificationsTotal 标签：kind（DUE_SOON/OVERDUE）、result（sent/duplicate/failure）
	NotificationsTotal *prometheus.CounterVec

	// 基础设施

	// CircuitBreakerState 0=CLOSED, 1=OPEN, 2=HALF_OPEN
	CircuitBreakerState *prometheus.GaugeVec

	// CircuitBreakerRequests 标签：name、result（success/failure/rejected）
	CircuitBreakerRequests *prometheus.CounterVec

	// MessagesPublishedTotal 标签：exchange、routing_key
	MessagesPublishedTotal *prometheus.CounterVec

	// SagaExecutionsTotal 标签：result（success/failure）
	SagaExecutionsTotal *prometheus.CounterVec
)

// InitMetrics 注册全部指标（重复调用无副作用）
func InitMetrics() {
	initOnce.Do(register)
}

func register() {
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP请求总数",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP请求耗时（秒）",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
	}, []string{"method", "path"})

	HTTPRequestsInProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_progress",
		Help: "正在处理的HTTP请求数",
	})

	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_orders_created_total",
		Help: "报价单创建总数",
	}, []string{"result"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_order_transitions_total",
		Help: "订单状态转换总数",
	}, []string{"action", "result"})

	OrderTransitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rental_order_transition_duration_seconds",
		Help:    "订单状态转换耗时（秒，含锁等待与重试）",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"action"})

	AvailabilityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_availability_checks_total",
		Help: "可用性检查次数",
	}, []string{"result"})

	ReservationConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rental_reservation_conflicts_total",
		Help: "预留写入时的锁冲突次数",
	})

	ReservationsReleasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_reservations_released_total",
		Help: "释放的预留条数",
	}, []string{"reason"})

	SchedulerSweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_scheduler_sweeps_total",
		Help: "到期扫描次数",
	}, []string{"result"})

	SchedulerSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rental_scheduler_sweep_duration_seconds",
		Help:    "单次到期扫描耗时（秒）",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
	})

	SchedulerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rental_scheduler_running",
		Help: "到期扫描任务是否运行（1运行/0停止）",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_notifications_total",
		Help: "到期提醒发送次数",
	}, []string{"kind", "result"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
	}, []string{"name"})

	CircuitBreakerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_requests_total",
		Help: "熔断器请求总数",
	}, []string{"name", "result"})

	MessagesPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messages_published_total",
		Help: "消息发布总数",
	}, []string{"exchange", "routing_key"})

	SagaExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saga_executions_total",
		Help: "Saga执行总数",
	}, []string{"result"})
}

// RecordHTTPRequest 记录HTTP请求
func RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if HTTPRequestsTotal == nil {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// HTTPInProgress 处理中请求数增减（delta为+1或-1）
func HTTPInProgress(delta float64) {
	if HTTPRequestsInProgress == nil {
		return
	}
	HTTPRequestsInProgress.Add(delta)
}

// RecordOrderCreated 记录报价单创建
func RecordOrderCreated(result string) {
	if OrdersCreatedTotal == nil {
		return
	}
	OrdersCreatedTotal.WithLabelValues(result).Inc()
}

// RecordTransition 记录订单状态转换
func RecordTransition(action, result string, d time.Duration) {
	if OrderTransitionsTotal == nil {
		return
	}
	OrderTransitionsTotal.WithLabelValues(action, result).Inc()
	OrderTransitionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// RecordAvailabilityCheck 记录可用性检查结果
func RecordAvailabilityCheck(available bool) {
	if AvailabilityChecksTotal == nil {
		return
	}
	result := "unavailable"
	if available {
		result = "available"
	}
	AvailabilityChecksTotal.WithLabelValues(result).Inc()
}

// RecordReservationConflict 记录一次锁冲突
func RecordReservationConflict() {
	if ReservationConflictsTotal == nil {
		return
	}
	ReservationConflictsTotal.Inc()
}

// RecordReservationsReleased 记录释放的预留条数
func RecordReservationsReleased(reason string, n int64) {
	if ReservationsReleasedTotal == nil || n <= 0 {
		return
	}
	ReservationsReleasedTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordSweep 记录一次到期扫描
func RecordSweep(result string, d time.Duration) {
	if SchedulerSweepsTotal == nil {
		return
	}
	SchedulerSweepsTotal.WithLabelValues(result).Inc()
	SchedulerSweepDuration.Observe(d.Seconds())
}

// SetSchedulerRunning 记录扫描任务状态
func SetSchedulerRunning(running bool) {
	if SchedulerRunning == nil {
		return
	}
	if running {
		SchedulerRunning.Set(1)
	} else {
		SchedulerRunning.Set(0)
	}
}

// RecordNotification 记录到期提醒
func RecordNotification(kind, result string) {
	if NotificationsTotal == nil {
		return
	}
	NotificationsTotal.WithLabelValues(kind, result).Inc()
}

// SetCircuitBreakerState 记录熔断器状态
func SetCircuitBreakerState(name string, state int) {
	if CircuitBreakerState == nil {
		return
	}
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerRequest 记录熔断器请求结果
func RecordCircuitBreakerRequest(name, result string) {
	if CircuitBreakerRequests == nil {
		return
	}
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordMessagePublished 记录消息发布
func RecordMessagePublished(exchange, routingKey string) {
	if MessagesPublishedTotal == nil {
		return
	}
	MessagesPublishedTotal.WithLabelValues(exchange, routingKey).Inc()
}

// RecordSaga 记录Saga执行结果
func RecordSaga(result string) {
	if SagaExecutionsTotal == nil {
		return
	}
	SagaExecutionsTotal.WithLabelValues(result).Inc()
}

package order

import (
	"time"

	"github.com/xiebiao/rentalhub/internal/domain/user"
)

// Action 订单动作
type Action string

const (
	ActionSend    Action = "send"    // 发送报价 QUOTATION→SENT
	ActionConfirm Action = "confirm" // 确认 QUOTATION|SENT→CONFIRMED(创建预留)
	ActionPickup  Action = "pickup"  // 取货 CONFIRMED→PICKED_UP
	ActionReturn  Action = "return"  // 归还 PICKED_UP→RETURNED(释放预留,计算滞纳金)
	ActionCancel  Action = "cancel"  // 取消 QUOTATION|SENT|CONFIRMED→CANCELLED(释放预留)
)

// ParseAction 解析动作名称
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := transitions[a]
	return a, ok
}

// transition 状态转换规则
type transition struct {
	from []OrderStatus
	to   OrderStatus
}

// transitions 状态机定义
// 教学要点:不在表中的(状态,动作)组合一律非法,不做任何"自动修正"
var transitions = map[Action]transition{
	ActionSend:    {from: []OrderStatus{StatusQuotation}, to: StatusSent},
	ActionConfirm: {from: []OrderStatus{StatusQuotation, StatusSent}, to: StatusConfirmed},
	ActionPickup:  {from: []OrderStatus{StatusConfirmed}, to: StatusPickedUp},
	ActionReturn:  {from: []OrderStatus{StatusPickedUp}, to: StatusReturned},
	ActionCancel:  {from: []OrderStatus{StatusQuotation, StatusSent, StatusConfirmed}, to: StatusCancelled},
}

// Actions 全部动作(测试遍历用)
func Actions() []Action {
	return []Action{ActionSend, ActionConfirm, ActionPickup, ActionReturn, ActionCancel}
}

// Statuses 全部状态(测试遍历用)
func Statuses() []OrderStatus {
	return []OrderStatus{StatusQuotation, StatusSent, StatusConfirmed, StatusPickedUp, StatusReturned, StatusCancelled}
}

// TargetStatus 动作对应的目标状态
func TargetStatus(a Action) (OrderStatus, bool) {
	t, ok := transitions[a]
	return t.to, ok
}

// CanApply 检查当前状态下是否允许执行动作
func (o *Order) CanApply(a Action) bool {
	t, ok := transitions[a]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == o.Status {
			return true
		}
	}
	return false
}

// Authorize 权限矩阵
//
//	动作      管理员  出租方(本单)  租客(本单)
//	send       ✓        ✓            ✗
//	confirm    ✓        ✓            ✓
//	pickup     ✓        ✓            ✗
//	return     ✓        ✓            ✗
//	cancel     ✓        ✓            ✓
func (o *Order) Authorize(actor user.Actor, a Action) error {
	if actor.IsAnonymous() {
		return ErrForbidden
	}
	if actor.IsAdmin() || actor.IsVendor(o.VendorID) {
		return nil
	}
	if actor.IsCustomer(o.CustomerID) && (a == ActionConfirm || a == ActionCancel) {
		return nil
	}
	return ErrForbidden
}

// CanView 是否可以查看订单
func (o *Order) CanView(actor user.Actor) bool {
	return actor.IsAdmin() || actor.IsVendor(o.VendorID) || actor.IsCustomer(o.CustomerID)
}

// Apply 执行状态转换并记录对应时间戳
// 不合法时返回ErrInvalidTransition,订单保持不变
func (o *Order) Apply(a Action, now time.Time) error {
	if !o.CanApply(a) {
		return ErrInvalidTransition
	}

	o.Status = transitions[a].to
	o.UpdatedAt = now

	switch a {
	case ActionSend:
		o.SentAt = &now
	case ActionConfirm:
		o.ConfirmedAt = &now
	case ActionPickup:
		o.PickedUpAt = &now
	case ActionReturn:
		o.ActualReturnAt = &now
	case ActionCancel:
		o.CancelledAt = &now
	}
	return nil
}

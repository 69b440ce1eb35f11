package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// LateFeeConfig 滞纳金配置
type LateFeeConfig struct {
	Rate             decimal.Decimal // 日费率(如0.1表示按日租金的10%)
	GracePeriodHours int             // 宽限期(小时),延迟不超过宽限期不收费
}

// baselineDays 日租金估算基数
// 说明:按"订单金额/7"估算日租金,与实际租期无关
// 对非按周的租赁是否合理有待产品确认,这里保持原有口径
const baselineDays = 7

var day = 24 * time.Hour

// DelayDays 逾期天数(向上取整,未逾期为0)
func DelayDays(plannedEnd, actualReturn time.Time) int {
	delay := actualReturn.Sub(plannedEnd)
	if delay <= 0 {
		return 0
	}
	days := int(delay / day)
	if delay%day != 0 {
		days++
	}
	return days
}

// ComputeLateFee 计算滞纳金
//
//	delayDays = ceil((actualReturn - plannedEnd) / 1天),非正数取0
//	fee = (orderAmount / 7) * rate * delayDays,保留2位小数
//
// 示例:金额700元,费率0.1,逾期2天 → 700/7*0.1*2 = 20.00
func ComputeLateFee(orderAmount decimal.Decimal, plannedEnd, actualReturn time.Time, cfg LateFeeConfig) decimal.Decimal {
	delay := actualReturn.Sub(plannedEnd)
	if delay <= 0 {
		return decimal.Zero.Round(2)
	}
	if grace := time.Duration(cfg.GracePeriodHours) * time.Hour; grace > 0 && delay <= grace {
		return decimal.Zero.Round(2)
	}

	days := DelayDays(plannedEnd, actualReturn)
	return orderAmount.
		Div(decimal.NewFromInt(baselineDays)).
		Mul(cfg.Rate).
		Mul(decimal.NewFromInt(int64(days))).
		Round(2)
}

// LateFeeAt 按指定归还时间计算本订单的滞纳金
func (o *Order) LateFeeAt(actualReturn time.Time, cfg LateFeeConfig) decimal.Decimal {
	return ComputeLateFee(o.AmountYuan(), o.PlannedEndAt(), actualReturn, cfg)
}

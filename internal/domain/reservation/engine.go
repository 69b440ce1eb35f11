package reservation

// 可用性计算引擎(纯函数,无副作用)
//
// 算法:
//  1. 取商品的实物数量 onHand
//  2. 取与请求窗口重叠的所有生效预留,数量求和 reserved
//  3. available = max(0, onHand - reserved)
//
// 教学要点:这里对"窗口内所有重叠预留"求和,而不是求某一时刻的峰值占用
// 例:onHand=3,预留A [D1,D2]占2,预留B [D4,D5]占2,查询 [D1,D5]
//   - 峰值算法:任一时刻最多占2,可用1
//   - 本算法:2+2=4,可用0(更保守,不会超租)

// ReservedQuantity 统计与窗口重叠的生效预留数量
// 调用方即使传入了不重叠或已释放的记录,也会在这里被过滤掉
func ReservedQuantity(reservations []*Reservation, w Window) int {
	total := 0
	for _, r := range reservations {
		if r == nil || !r.IsActive() {
			continue
		}
		if !r.Window.Overlaps(w) {
			continue
		}
		total += r.Quantity
	}
	return total
}

// AvailableQuantity 计算窗口内可用数量(不会小于0)
func AvailableQuantity(onHand int, reservations []*Reservation, w Window) int {
	available := onHand - ReservedQuantity(reservations, w)
	if available < 0 {
		return 0
	}
	return available
}

// IsAvailable 判断请求数量是否可满足
// 数量<=0属于参数错误,应在调用前拦截,这里一律返回false
func IsAvailable(onHand int, reservations []*Reservation, w Window, requested int) bool {
	if requested <= 0 {
		return false
	}
	return requested <= AvailableQuantity(onHand, reservations, w)
}

// PeakReserved 生效预留在任一时刻的最大同时占用量
// 闭区间下峰值一定出现在某条预留的开始时刻,逐个开始时刻统计即可
// 报损后实物数量不能低于该值,否则已确认订单在峰值时刻无货可租
func PeakReserved(reservations []*Reservation) int {
	peak := 0
	for _, r := range reservations {
		if r == nil || !r.IsActive() {
			continue
		}
		total := 0
		for _, other := range reservations {
			if other == nil || !other.IsActive() {
				continue
			}
			if other.Window.Contains(r.Window.Start) {
				total += other.Quantity
			}
		}
		if total > peak {
			peak = total
		}
	}
	return peak
}

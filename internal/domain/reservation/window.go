package reservation

import (
	"time"
)

// Window 租用时间窗口 [Start, End](两端闭区间)
//
// 教学要点:边界相接视为重叠
// 例:已有预留 [Day1, Day5],新请求 [Day5, Day8]
//   - 宽松规则:Day5当天"还完立刻租出",不重叠
//   - 保守规则(本项目):同一时刻不允许交接,Day5重叠
//
// 保守规则下,两个窗口重叠当且仅当 a.Start <= b.End && a.End >= b.Start
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow 创建并校验时间窗口
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate 校验窗口:两端非零,且 End > Start
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return ErrInvalidWindow
	}
	if !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// Overlaps 区间重叠判断(边界相接算重叠)
func (w Window) Overlaps(other Window) bool {
	return !w.Start.After(other.End) && !w.End.Before(other.Start)
}

// Contains 判断某一时刻是否落在窗口内
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Duration 窗口时长
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Days 计费天数(不足一天按一天计,最少1天)
func (w Window) Days() int {
	d := w.Duration()
	days := int(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

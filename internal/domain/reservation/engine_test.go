package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func hold(qty, from, to int) *Reservation {
	return &Reservation{Quantity: qty, Window: Window{Start: d(from), End: d(to)}, Status: StatusActive}
}

func TestAvailableQuantity(t *testing.T) {
	released := hold(5, 1, 9)
	released.Release(d(1))
	holds := []*Reservation{hold(2, 1, 2), hold(2, 4, 5), released, nil}

	assert.Equal(t, 4, ReservedQuantity(holds, Window{Start: d(1), End: d(5)}), "窗口内重叠预留求和")
	assert.Equal(t, 0, AvailableQuantity(3, holds, Window{Start: d(1), End: d(5)}))
	assert.Equal(t, 1, AvailableQuantity(3, holds, Window{Start: d(2), End: d(3)}), "第2天相接算重叠")
	assert.Equal(t, 3, AvailableQuantity(3, holds, Window{Start: d(6), End: d(8)}))

	assert.True(t, IsAvailable(3, holds, Window{Start: d(2), End: d(3)}, 1))
	assert.False(t, IsAvailable(3, holds, Window{Start: d(2), End: d(3)}, 2))
	assert.False(t, IsAvailable(3, holds, Window{Start: d(6), End: d(8)}, 0))
}

func TestPeakReserved(t *testing.T) {
	tests := []struct {
		name  string
		holds []*Reservation
		want  int
	}{
		{"无预留", nil, 0},
		{"单条", []*Reservation{hold(2, 1, 3)}, 2},
		{"不重叠取最大", []*Reservation{hold(2, 1, 2), hold(3, 4, 5)}, 3},
		{"边界相接叠加", []*Reservation{hold(2, 1, 3), hold(1, 3, 5)}, 3},
		{"嵌套", []*Reservation{hold(1, 1, 9), hold(2, 2, 3), hold(1, 3, 4)}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeakReserved(tt.holds))
		})
	}

	released := hold(5, 1, 9)
	released.Release(time.Now())
	assert.Equal(t, 2, PeakReserved([]*Reservation{released, hold(2, 1, 3)}), "已释放不计入")
}

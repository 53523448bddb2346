package bwe

import "testing"

func TestUnwrapAbsSendTime(t *testing.T) {
	tests := []struct {
		name string
		prev uint32
		curr uint32
		want int64
	}{
		{
			name: "no wraparound - forward",
			prev: 1000,
			curr: 2000,
			want: 1000,
		},
		{
			name: "no wraparound - backward",
			prev: 2000,
			curr: 1000,
			want: -1000,
		},
		{
			name: "no change",
			prev: 5000,
			curr: 5000,
			want: 0,
		},
		{
			name: "wraparound forward",
			// prev near max (64s - small delta), curr near zero
			// Real scenario: timestamps 16777000 -> 200
			// Raw diff: 200 - 16777000 = -16776800 (large negative)
			// But we're actually moving forward by: 16777216 - 16777000 + 200 = 416 units
			prev: 16777000,
			curr: 200,
			want: 416, // Small positive delta (wrapped forward)
		},
		{
			name: "wraparound backward",
			// prev near zero, curr near max
			// Real scenario: timestamps 200 -> 16777000
			// Raw diff: 16777000 - 200 = 16776800 (large positive)
			// But we're actually moving backward by the same amount
			prev: 200,
			curr: 16777000,
			want: -416, // Small negative delta (wrapped backward)
		},
		{
			name: "exactly at boundary",
			prev: 16777215, // max value
			curr: 0,
			want: 1, // Just crossed the boundary forward
		},
		{
			name: "cross boundary backward",
			prev: 0,
			curr: 16777215,
			want: -1, // Just crossed the boundary backward
		},
		{
			name: "large forward within half range",
			prev: 0,
			curr: 8388607, // Just under half range
			want: 8388607,
		},
		{
			name: "large backward within half range",
			prev: 8388607,
			curr: 0,
			want: -8388607,
		},
		{
			name: "exactly half range forward",
			prev: 0,
			curr: 8388608, // Exactly half range
			want: 8388608,
		},
		{
			name: "just over half range - interpreted as backward wrap",
			prev: 0,
			curr: 8388609,                          // Just over half range
			want: 8388609 - int64(AbsSendTimeMax), // Negative (backward wrap)
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnwrapAbsSendTime(tt.prev, tt.curr)
			if got != tt.want {
				t.Errorf("UnwrapAbsSendTime(%d, %d) = %d, want %d", tt.prev, tt.curr, got, tt.want)
			}
		})
	}
}

func TestAbsSendTimeMax(t *testing.T) {
	if AbsSendTimeMax != 1<<24 {
		t.Errorf("AbsSendTimeMax = %d, want %d", AbsSendTimeMax, 1<<24)
	}
}

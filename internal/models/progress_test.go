package models

import "testing"

func TestPercent(t *testing.T) {
	testCases := []struct {
		current, total, want int
	}{
		{0, 0, 0},
		{0, 10, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{25, 100, 25},
		{100, 100, 100},
	}
	for _, tc := range testCases {
		if got := Percent(tc.current, tc.total); got != tc.want {
			t.Errorf("Percent(%d, %d) = %d; want %d", tc.current, tc.total, got, tc.want)
		}
	}
}

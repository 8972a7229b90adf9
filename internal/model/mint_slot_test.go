package model

import "testing"

func TestSlotFilename(t *testing.T) {
	cases := []struct {
		index uint32
		want  string
	}{
		{0, "0001"},
		{41, "0042"},
		{998, "0999"},
		{9998, "9999"},
		{9999, "10000"}, // beyond the padded range the number just grows
	}
	for _, tc := range cases {
		if got := SlotFilename(tc.index); got != tc.want {
			t.Errorf("SlotFilename(%d) = %q, want %q", tc.index, got, tc.want)
		}
	}
}

package mint

import (
	"testing"
	"time"
)

func TestLeaseExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := 3 * time.Minute

	cases := []struct {
		name      string
		updatedAt time.Time
		want      bool
	}{
		{"just touched", now, false},
		{"within ttl", now.Add(-2 * time.Minute), false},
		{"exactly at ttl", now.Add(-ttl), false},
		{"past ttl", now.Add(-ttl - time.Second), true},
		{"long dead", now.Add(-24 * time.Hour), true},
		{"slight future skew", now.Add(30 * time.Minute), false},
		{"at skew tolerance", now.Add(skewTolerance), false},
		{"far future timestamp", now.Add(skewTolerance + time.Second), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := leaseExpired(tc.updatedAt, now, ttl); got != tc.want {
				t.Fatalf("leaseExpired(%v) = %v, want %v", tc.updatedAt, got, tc.want)
			}
		})
	}
}

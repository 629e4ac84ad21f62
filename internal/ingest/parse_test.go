package ingest

import (
	"testing"
	"time"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"1,000", 1000},
		{"$ 2,500,000.50", 2500000.50},
		{"1500", 1500},
		{1234.5, 1234.5},
		{"", 0},
		{"n/a", 0},
		{"-300", 0},
		{-12.0, 0},
		{nil, 0},
	}
	for _, tc := range cases {
		if got := ParseAmount(tc.in); got != tc.want {
			t.Errorf("ParseAmount(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"2026-03-15", "2026-03-15"},
		{"2026-03-15 09:30:00", "2026-03-15"},
		{"2026-03-15T09:30:00Z", "2026-03-15"},
		{"15/03/2026", "2026-03-15"},
		{time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), "2026-03-15"},
		{"soon", ""},
		{"", ""},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := ParseDate(tc.in); got != tc.want {
			t.Errorf("ParseDate(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

package timeline

import (
	"testing"
	"time"

	"tenderdesk/api/internal/store"
)

func TestProjectClamping(t *testing.T) {
	cases := []struct {
		delta *int
		want  *float64
	}{
		{ptr(-5), fptr(0)},
		{ptr(0), fptr(0)},
		{ptr(30), fptr(50)},
		{ptr(60), fptr(100)},
		{ptr(90), fptr(100)},
		{nil, nil},
	}
	for _, tc := range cases {
		got := Project(tc.delta, 60)
		if (got == nil) != (tc.want == nil) {
			t.Errorf("Project(%v, 60) nil mismatch: got %v want %v", tc.delta, got, tc.want)
			continue
		}
		if got != nil && *got != *tc.want {
			t.Errorf("Project(%v, 60) = %v, want %v", *tc.delta, *got, *tc.want)
		}
	}
}

func TestProjectBadWindow(t *testing.T) {
	if got := Project(ptr(10), 0); got != nil {
		t.Fatalf("zero window yields nil, got %v", *got)
	}
}

func TestMarks(t *testing.T) {
	today := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	rec := store.TenderRecord{
		ClarificationMeetingDate: "2026-09-03",
		BidOpeningDate:           "",
		AwardDate:                "2027-01-15",
	}

	marks := Marks(rec, today, 60)
	if len(marks) != 3 {
		t.Fatalf("expected 3 marks, got %d", len(marks))
	}
	if marks[0].Label != "JA" || marks[1].Label != "AP" || marks[2].Label != "FA" {
		t.Fatalf("labels: %q %q %q", marks[0].Label, marks[1].Label, marks[2].Label)
	}
	if marks[0].Position == nil || *marks[0].Position != 5 {
		t.Fatalf("clarification position: %v", marks[0].Position)
	}
	if marks[1].Position != nil {
		t.Fatalf("unknown milestone gets no position")
	}
	if marks[2].Position == nil || *marks[2].Position != 100 {
		t.Fatalf("distant milestone clamps to 100, got %v", marks[2].Position)
	}
}

func ptr(v int) *int          { return &v }
func fptr(v float64) *float64 { return &v }

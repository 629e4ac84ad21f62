package urgency

import (
	"time"

	"tenderdesk/api/internal/store"
)

// Band classifies how soon a tender needs attention.
type Band string

const (
	BandOverdue      Band = "overdue"
	BandDueToday     Band = "dueToday"
	BandDueSoon      Band = "dueSoon"
	BandScheduled    Band = "scheduled"
	BandUnclassified Band = "unclassified"
)

// Milestones that participate in urgency tracking. Publication and contract
// signing are informational only: publication is always in the past and the
// signing date tracks work already won.
var TrackedMilestones = []string{
	store.FieldClarificationMeetingDate,
	store.FieldBidOpeningDate,
	store.FieldAwardDate,
}

// Result is a view-only derivation, never persisted. Deltas is keyed by
// milestone field name; a nil delta means the date is unknown.
type Result struct {
	Deltas  map[string]*int
	Overall *int
	Band    Band
}

// DayDelta computes milestone minus today in whole days. The empty string
// means unknown and yields nil.
func DayDelta(isoDate string, today time.Time) *int {
	if isoDate == "" {
		return nil
	}
	d, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return nil
	}
	base := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	delta := int(d.Sub(base).Hours() / 24)
	return &delta
}

// Classify maps an overall day-delta onto a band.
func Classify(overall *int) Band {
	switch {
	case overall == nil:
		return BandUnclassified
	case *overall < 0:
		return BandOverdue
	case *overall == 0:
		return BandDueToday
	case *overall <= 7:
		return BandDueSoon
	default:
		return BandScheduled
	}
}

// Evaluate computes every tracked milestone's delta against the caller's
// reference day, plus the overall minimum and its band. The caller supplies
// today explicitly so evaluations across a batch are consistent and tests
// never touch the wall clock.
func Evaluate(rec store.TenderRecord, today time.Time) Result {
	res := Result{Deltas: make(map[string]*int, len(TrackedMilestones))}
	for _, milestone := range TrackedMilestones {
		delta := DayDelta(asString(rec.FieldValue(milestone)), today)
		res.Deltas[milestone] = delta
		if delta == nil {
			continue
		}
		if res.Overall == nil || *delta < *res.Overall {
			v := *delta
			res.Overall = &v
		}
	}
	res.Band = Classify(res.Overall)
	return res
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}

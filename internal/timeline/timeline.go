package timeline

import (
	"time"

	"tenderdesk/api/internal/store"
	"tenderdesk/api/internal/urgency"
)

// Mark positions one milestone on the visual timeline. Position is nil when
// the milestone date is unknown, so the renderer draws nothing.
type Mark struct {
	Label    string
	Field    string
	Delta    *int
	Position *float64
}

var markLabels = map[string]string{
	store.FieldClarificationMeetingDate: "JA",
	store.FieldBidOpeningDate:           "AP",
	store.FieldAwardDate:                "FA",
}

// Project maps a day-delta onto a percentage of the visible window. Overdue
// deltas collapse to 0 and deltas beyond the window collapse to 100; nil in,
// nil out. windowDays comes from the caller so operators can widen or narrow
// the horizon.
func Project(delta *int, windowDays int) *float64 {
	if delta == nil || windowDays <= 0 {
		return nil
	}
	d := *delta
	if d < 0 {
		d = 0
	}
	if d > windowDays {
		d = windowDays
	}
	pct := 100 * float64(d) / float64(windowDays)
	return &pct
}

// Marks builds the timeline marks for one record's tracked milestones.
func Marks(rec store.TenderRecord, today time.Time, windowDays int) []Mark {
	res := urgency.Evaluate(rec, today)
	marks := make([]Mark, 0, len(urgency.TrackedMilestones))
	for _, field := range urgency.TrackedMilestones {
		delta := res.Deltas[field]
		marks = append(marks, Mark{
			Label:    markLabels[field],
			Field:    field,
			Delta:    delta,
			Position: Project(delta, windowDays),
		})
	}
	return marks
}

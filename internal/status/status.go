// Package status models the tender lifecycle board.
package status

const (
	Open            = "Open"
	UnderReview     = "UnderReview"
	UnderManagement = "UnderManagement"
	Closed          = "Closed"
	Cancelled       = "Cancelled"
)

// All lists the lanes in board order.
var All = []string{Open, UnderReview, UnderManagement, Closed, Cancelled}

// Valid reports whether s is a recognized status.
func Valid(s string) bool {
	for _, known := range All {
		if s == known {
			return true
		}
	}
	return false
}

// CanTransition is the single choke point for transition rules. The board is
// deliberately permissive: any recognized status may move to any other, and
// staff do reopen closed tenders in practice. Tightening the rules later
// only touches this function.
func CanTransition(from, to string) bool {
	return Valid(to)
}

package workflow

import "time"

// Revision states on a budget item.
const (
	RevisionNone     = "none"
	RevisionPending  = "pending"
	RevisionAnswered = "answered"
	RevisionResolved = "resolved"
)

// AgingDays counts full days since the last revision activity: the
// latest answer if one exists, otherwise the revise timestamp.
func AgingDays(now time.Time, revisedAt, answeredAt *time.Time) int {
	var since *time.Time
	if answeredAt != nil {
		since = answeredAt
	} else if revisedAt != nil {
		since = revisedAt
	}
	if since == nil {
		return 0
	}
	d := int(now.Sub(*since).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// AgingBucket groups an age in days into the summary buckets.
func AgingBucket(days int) string {
	switch {
	case days <= 1:
		return "0-1"
	case days <= 3:
		return "2-3"
	case days <= 7:
		return "4-7"
	default:
		return ">7"
	}
}

package report

import (
	"time"

	"teampulse/internal/domain"
)

// Classify derives a single effective status for a set of tasks and an
// optional deadline. It is used for projects and reused unchanged for the
// milestone view. Precedence: overdue dominates any incomplete state, then
// all-done, then any-in-progress, then all-to-do. A mix of Done and To Do
// with nothing in progress classifies as In Progress; the source tracker
// asserted on that fallback explicitly, so it is kept.
func Classify(tasks []domain.Task, deadline *string, now time.Time) string {
	if len(tasks) == 0 {
		return domain.StatusToDo
	}
	allDone, allToDo, anyInProgress := true, true, false
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusDone:
			allToDo = false
		case domain.StatusInProgress:
			allDone = false
			allToDo = false
			anyInProgress = true
		default:
			allDone = false
		}
	}
	if dl, ok := parseTime(deadline); ok && pastDay(now, dl) && !allDone {
		return domain.StatusOverdue
	}
	switch {
	case allDone:
		return domain.StatusDone
	case anyInProgress:
		return domain.StatusInProgress
	case allToDo:
		return domain.StatusToDo
	default:
		return domain.StatusInProgress
	}
}

// TaskStatus is the effective status of one task: its stored status, or
// Overdue when the overdue predicate holds. A Done task is never Overdue.
func TaskStatus(t domain.Task, now time.Time) string {
	if IsOverdue(t, now) {
		return domain.StatusOverdue
	}
	switch t.Status {
	case domain.StatusInProgress, domain.StatusDone:
		return t.Status
	default:
		return domain.StatusToDo
	}
}

package report

import (
	"time"

	"teampulse/internal/domain"
)

// PersonStats is one row of the team performance table.
// TasksInvolved == Todo + InProgress + Completed always holds.
type PersonStats struct {
	UserID        string  `json:"userId"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	Todo          int     `json:"todo"`
	InProgress    int     `json:"inProgress"`
	Completed     int     `json:"completed"`
	TasksInvolved int     `json:"tasksInvolved"`
	OverdueTasks  int     `json:"overdueTasks"`
	OverdueRate   float64 `json:"overdueRate"`
}

// AggregatePerformance produces one row per user, partitioning their
// assigned tasks within the scoped task set by stored status. Rows keep
// the input user order.
func AggregatePerformance(users []domain.User, tasks []domain.Task, now time.Time) []PersonStats {
	rows := make([]PersonStats, 0, len(users))
	for _, u := range users {
		row := PersonStats{UserID: u.ID, Name: u.Name, Role: u.Role}
		for _, t := range tasks {
			if !assignedTo(t, u.ID) {
				continue
			}
			switch t.Status {
			case domain.StatusDone:
				row.Completed++
			case domain.StatusInProgress:
				row.InProgress++
			default:
				row.Todo++
			}
			if IsOverdue(t, now) {
				row.OverdueTasks++
			}
		}
		row.TasksInvolved = row.Todo + row.InProgress + row.Completed
		row.OverdueRate = percentage(row.OverdueTasks, row.TasksInvolved)
		rows = append(rows, row)
	}
	return rows
}

func assignedTo(t domain.Task, userID string) bool {
	for _, m := range t.Assignees {
		if m.ID == userID {
			return true
		}
	}
	return false
}

package report

import (
	"time"

	"teampulse/internal/domain"
)

// AvgTaskCompletionDays averages completion duration over Done tasks that
// carry both a parseable creation and completion timestamp. Tasks missing
// either are excluded rather than treated as zero. An empty filtered set
// yields 0, never NaN.
func AvgTaskCompletionDays(tasks []domain.Task) float64 {
	var sum float64
	var n int
	for _, t := range tasks {
		if t.Status != domain.StatusDone {
			continue
		}
		created, ok := parseTime(&t.CreatedAt)
		if !ok {
			continue
		}
		completed, ok := parseTime(t.CompletedAt)
		if !ok {
			continue
		}
		sum += completed.Sub(created).Hours() / 24
		n++
	}
	if n == 0 {
		return 0
	}
	return round1(sum / float64(n))
}

// AvgProjectCompletionDays averages, over projects whose in-scope tasks
// are non-empty and all Done, the span from project creation to the latest
// task completion. When no task in a completed project has a parseable
// completion timestamp, now stands in as an approximation. Spans clamp to
// zero; projects with an unparseable creation timestamp are skipped.
func AvgProjectCompletionDays(projects []domain.Project, tasks []domain.Task, now time.Time) float64 {
	byProject := map[string][]domain.Task{}
	for _, t := range tasks {
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}
	var sum float64
	var n int
	for _, p := range projects {
		own := byProject[p.ID]
		if len(own) == 0 || !allDone(own) {
			continue
		}
		created, ok := parseTime(&p.CreatedAt)
		if !ok {
			continue
		}
		end, ok := latestCompletion(own)
		if !ok {
			end = now
		}
		days := end.Sub(created).Hours() / 24
		if days < 0 {
			days = 0
		}
		sum += days
		n++
	}
	if n == 0 {
		return 0
	}
	return round1(sum / float64(n))
}

func allDone(tasks []domain.Task) bool {
	for _, t := range tasks {
		if t.Status != domain.StatusDone {
			return false
		}
	}
	return true
}

func latestCompletion(tasks []domain.Task) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, t := range tasks {
		if c, ok := parseTime(t.CompletedAt); ok {
			if !found || c.After(latest) {
				latest = c
			}
			found = true
		}
	}
	return latest, found
}

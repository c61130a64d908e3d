package report

import (
	"sort"
	"time"

	"teampulse/internal/domain"
)

// OverdueRecord describes one late task within a report. AssignedMembers
// is restricted to the reporting department when the scope is one.
type OverdueRecord struct {
	TaskID          string      `json:"taskId"`
	Title           string      `json:"title"`
	Deadline        string      `json:"deadline"`
	DaysPastDue     int         `json:"daysPastDue"`
	AssignedMembers []MemberRef `json:"assignedMembers"`
}

type MemberRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type OverdueTaskRef struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title"`
}

// DepartmentOverdueGroup attributes a set of overdue tasks to one
// department through its assigned members.
type DepartmentOverdueGroup struct {
	DepartmentID   string           `json:"departmentId"`
	DepartmentName string           `json:"departmentName"`
	OverdueTasks   []OverdueTaskRef `json:"overdueTasks"`
	OverdueCount   int              `json:"overdueCount"`
}

// IsOverdue reports whether a task is past its deadline and not Done,
// at day granularity.
func IsOverdue(t domain.Task, now time.Time) bool {
	if t.Status == domain.StatusDone {
		return false
	}
	dl, ok := parseTime(t.Deadline)
	if !ok {
		return false
	}
	return pastDay(now, dl)
}

// FindOverdue returns the overdue subset of tasks, preserving input
// order. DaysPastDue is always >= 1 for included records.
func FindOverdue(tasks []domain.Task, now time.Time) []domain.Task {
	var out []domain.Task
	for _, t := range tasks {
		if IsOverdue(t, now) {
			out = append(out, t)
		}
	}
	return out
}

func overdueRecord(t domain.Task, now time.Time, departmentID string) OverdueRecord {
	dl, _ := parseTime(t.Deadline)
	members := []MemberRef{}
	for _, m := range t.Assignees {
		if departmentID != "" {
			if m.Department == nil || m.Department.ID != departmentID {
				continue
			}
		}
		members = append(members, MemberRef{ID: m.ID, Name: m.Name})
	}
	return OverdueRecord{
		TaskID:          t.ID,
		Title:           t.Title,
		Deadline:        dl.UTC().Format(time.RFC3339),
		DaysPastDue:     daysBetween(dl, now),
		AssignedMembers: members,
	}
}

// AttributeByDepartment groups overdue tasks by the departments of their
// assigned members. A task counts once per distinct department it touches;
// two assignees in the same department do not double-count it. Members
// without a resolved department attribute nothing.
func AttributeByDepartment(overdue []domain.Task) []DepartmentOverdueGroup {
	type group struct {
		ref  domain.DepartmentRef
		seen map[string]bool
		refs []OverdueTaskRef
	}
	groups := map[string]*group{}
	for _, t := range overdue {
		for _, m := range t.Assignees {
			if m.Department == nil || m.Department.ID == "" {
				continue
			}
			g, ok := groups[m.Department.ID]
			if !ok {
				g = &group{ref: *m.Department, seen: map[string]bool{}}
				groups[m.Department.ID] = g
			}
			if g.seen[t.ID] {
				continue
			}
			g.seen[t.ID] = true
			g.refs = append(g.refs, OverdueTaskRef{TaskID: t.ID, Title: t.Title})
		}
	}
	out := make([]DepartmentOverdueGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, DepartmentOverdueGroup{
			DepartmentID:   g.ref.ID,
			DepartmentName: g.ref.Name,
			OverdueTasks:   g.refs,
			OverdueCount:   len(g.refs),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartmentName != out[j].DepartmentName {
			return out[i].DepartmentName < out[j].DepartmentName
		}
		return out[i].DepartmentID < out[j].DepartmentID
	})
	return out
}

// hasForeignDepartment reports whether any attributed department differs
// from the reporting scope. Always false for organization-wide scope.
func hasForeignDepartment(groups []DepartmentOverdueGroup, departmentID string) bool {
	if departmentID == "" {
		return false
	}
	for _, g := range groups {
		if g.DepartmentID != departmentID {
			return true
		}
	}
	return false
}

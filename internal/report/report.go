// Package report derives management reports from entity snapshots. Every
// computation is pure: the reference instant is an explicit input, no state
// is shared between calls, and sparse or malformed data resolves to zero
// values instead of errors so consumers always receive a well-formed
// document.
package report

import (
	"sort"
	"time"

	"teampulse/internal/domain"
)

// Input is one scoped snapshot. DepartmentID is empty for an
// organization-wide report; entities are expected pre-filtered to the
// scope by the caller.
type Input struct {
	DepartmentID string
	ScopeName    string
	Projects     []domain.Project
	Tasks        []domain.Task
	Users        []domain.User
	Departments  []domain.Department
	Now          time.Time
}

type Report struct {
	AvgTaskCompletionDays    float64         `json:"avgTaskCompletionDays"`
	AvgProjectCompletionDays float64         `json:"avgProjectCompletionDays"`
	ProductivityTrend        string          `json:"productivityTrend"`
	CompletionRateThisMonth  float64         `json:"completionRateThisMonth"`
	CompletionRateLastMonth  float64         `json:"completionRateLastMonth"`
	ProjectScope             ProjectScope    `json:"projectScope"`
	TaskScope                TaskScope       `json:"taskScope"`
	TeamPerformance          TeamPerformance `json:"teamPerformance"`
	ScopeInfo                ScopeInfo       `json:"scopeInfo"`
}

type ProjectScope struct {
	TotalProjects            int                `json:"totalProjects"`
	ProjectStatusCounts      map[string]int     `json:"projectStatusCounts"`
	ProjectStatusPercentages map[string]float64 `json:"projectStatusPercentages"`
	Milestones               []Milestone        `json:"milestones"`
}

type TaskScope struct {
	TotalTasks            int                `json:"totalTasks"`
	TaskStatusCounts      map[string]int     `json:"taskStatusCounts"`
	TaskStatusPercentages map[string]float64 `json:"taskStatusPercentages"`
	OverdueCount          int                `json:"overdueCount"`
	OverduePercentage     float64            `json:"overduePercentage"`
	OverdueTasksByProject []ProjectOverdue   `json:"overdueTasksByProject"`
}

type ProjectOverdue struct {
	ProjectID    string          `json:"projectId"`
	ProjectName  string          `json:"projectName"`
	OverdueTasks []OverdueRecord `json:"overdueTasks"`
	OverdueCount int             `json:"overdueCount"`
}

type Milestone struct {
	ProjectID                string                   `json:"projectId"`
	ProjectName              string                   `json:"projectName"`
	Status                   string                   `json:"status"`
	Deadline                 *string                  `json:"deadline"`
	OverdueResponsibility    []DepartmentOverdueGroup `json:"overdueResponsibility"`
	HasOverdueFromOtherDepts bool                     `json:"hasOverdueFromOtherDepts"`
}

type TeamPerformance struct {
	TeamSize       int           `json:"teamSize"`
	DepartmentTeam []PersonStats `json:"departmentTeam"`
}

type ScopeInfo struct {
	ScopeID   string `json:"scopeId"`
	ScopeName string `json:"scopeName"`
}

var statuses = []string{
	domain.StatusToDo,
	domain.StatusInProgress,
	domain.StatusDone,
	domain.StatusOverdue,
}

// Build assembles one report document. Empty scopes produce zero counts,
// zero rates, a Stable trend and empty collections; Build never fails.
func Build(in Input) Report {
	byProject := map[string][]domain.Task{}
	for _, t := range in.Tasks {
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}

	names := departmentNames(in.Departments)

	projectCounts := zeroCounts()
	milestones := []Milestone{}
	for _, p := range in.Projects {
		own := byProject[p.ID]
		status := Classify(own, p.Deadline, in.Now)
		projectCounts[status]++
		overdue := FindOverdue(own, in.Now)
		groups := fillDepartmentNames(AttributeByDepartment(overdue), names)
		milestones = append(milestones, Milestone{
			ProjectID:                p.ID,
			ProjectName:              p.Name,
			Status:                   status,
			Deadline:                 p.Deadline,
			OverdueResponsibility:    groups,
			HasOverdueFromOtherDepts: hasForeignDepartment(groups, in.DepartmentID),
		})
	}

	taskCounts := zeroCounts()
	for _, t := range in.Tasks {
		taskCounts[TaskStatus(t, in.Now)]++
	}

	allOverdue := FindOverdue(in.Tasks, in.Now)
	byProjectOverdue := []ProjectOverdue{}
	for _, p := range in.Projects {
		overdue := FindOverdue(byProject[p.ID], in.Now)
		if len(overdue) == 0 {
			continue
		}
		records := make([]OverdueRecord, 0, len(overdue))
		for _, t := range overdue {
			records = append(records, overdueRecord(t, in.Now, in.DepartmentID))
		}
		byProjectOverdue = append(byProjectOverdue, ProjectOverdue{
			ProjectID:    p.ID,
			ProjectName:  p.Name,
			OverdueTasks: records,
			OverdueCount: len(records),
		})
	}

	thisYear, thisMonth := in.Now.UTC().Year(), in.Now.UTC().Month()
	prev := time.Date(thisYear, thisMonth, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	rateThisMonth := CompletionRateForMonth(in.Tasks, thisYear, thisMonth)
	rateLastMonth := CompletionRateForMonth(in.Tasks, prev.Year(), prev.Month())

	team := AggregatePerformance(in.Users, in.Tasks, in.Now)

	return Report{
		AvgTaskCompletionDays:    AvgTaskCompletionDays(in.Tasks),
		AvgProjectCompletionDays: AvgProjectCompletionDays(in.Projects, in.Tasks, in.Now),
		ProductivityTrend:        Trend(rateThisMonth, rateLastMonth),
		CompletionRateThisMonth:  rateThisMonth,
		CompletionRateLastMonth:  rateLastMonth,
		ProjectScope: ProjectScope{
			TotalProjects:            len(in.Projects),
			ProjectStatusCounts:      projectCounts,
			ProjectStatusPercentages: toPercentages(projectCounts, len(in.Projects)),
			Milestones:               milestones,
		},
		TaskScope: TaskScope{
			TotalTasks:            len(in.Tasks),
			TaskStatusCounts:      taskCounts,
			TaskStatusPercentages: toPercentages(taskCounts, len(in.Tasks)),
			OverdueCount:          len(allOverdue),
			OverduePercentage:     percentage(len(allOverdue), len(in.Tasks)),
			OverdueTasksByProject: byProjectOverdue,
		},
		TeamPerformance: TeamPerformance{
			TeamSize:       len(in.Users),
			DepartmentTeam: team,
		},
		ScopeInfo: ScopeInfo{
			ScopeID:   scopeID(in.DepartmentID),
			ScopeName: in.ScopeName,
		},
	}
}

func zeroCounts() map[string]int {
	m := make(map[string]int, len(statuses))
	for _, s := range statuses {
		m[s] = 0
	}
	return m
}

func toPercentages(counts map[string]int, total int) map[string]float64 {
	m := make(map[string]float64, len(statuses))
	for _, s := range statuses {
		m[s] = percentage(counts[s], total)
	}
	return m
}

func departmentNames(departments []domain.Department) map[string]string {
	m := make(map[string]string, len(departments))
	for _, d := range departments {
		m[d.ID] = d.Name
	}
	return m
}

// fillDepartmentNames resolves names for groups whose member references
// carried only an id.
func fillDepartmentNames(groups []DepartmentOverdueGroup, names map[string]string) []DepartmentOverdueGroup {
	changed := false
	for i, g := range groups {
		if g.DepartmentName == "" {
			groups[i].DepartmentName = names[g.DepartmentID]
			changed = changed || groups[i].DepartmentName != ""
		}
	}
	if changed {
		sort.Slice(groups, func(i, j int) bool {
			if groups[i].DepartmentName != groups[j].DepartmentName {
				return groups[i].DepartmentName < groups[j].DepartmentName
			}
			return groups[i].DepartmentID < groups[j].DepartmentID
		})
	}
	return groups
}

func scopeID(departmentID string) string {
	if departmentID == "" {
		return "organization"
	}
	return departmentID
}

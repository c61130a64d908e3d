package report_test

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"

	"teampulse/internal/domain"
	"teampulse/internal/report"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func task(id, projectID, status string, deadline *string) domain.Task {
	return domain.Task{
		ID:        id,
		ProjectID: projectID,
		Title:     id,
		Status:    status,
		Deadline:  deadline,
		CreatedAt: "2025-06-01T00:00:00Z",
	}
}

func TestClassify(t *testing.T) {
	pastDeadline := strPtr("2025-06-10T00:00:00Z")
	futureDeadline := strPtr("2025-07-01T00:00:00Z")
	cases := []struct {
		name     string
		statuses []string
		deadline *string
		want     string
	}{
		{"empty", nil, nil, "To Do"},
		{"all done", []string{"Done", "Done"}, nil, "Done"},
		{"all done past deadline", []string{"Done", "Done"}, pastDeadline, "Done"},
		{"incomplete past deadline", []string{"Done", "To Do"}, pastDeadline, "Overdue"},
		{"in progress past deadline", []string{"In Progress"}, pastDeadline, "Overdue"},
		{"any in progress", []string{"To Do", "In Progress"}, futureDeadline, "In Progress"},
		{"all to do", []string{"To Do", "To Do"}, nil, "To Do"},
		{"mixed done and to do", []string{"Done", "Done", "To Do"}, nil, "In Progress"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tasks := make([]domain.Task, 0, len(tc.statuses))
			for i, s := range tc.statuses {
				tasks = append(tasks, task(string(rune('a'+i)), "p1", s, nil))
			}
			got := report.Classify(tasks, tc.deadline, now)
			if got != tc.want {
				t.Fatalf("Classify(%v, deadline=%v) = %q, want %q", tc.statuses, tc.deadline, got, tc.want)
			}
		})
	}
}

func TestDoneTaskNeverOverdue(t *testing.T) {
	done := task("t1", "p1", "Done", strPtr("2024-01-01T00:00:00Z"))
	if report.IsOverdue(done, now) {
		t.Fatal("Done task with past deadline reported overdue")
	}
	if got := report.TaskStatus(done, now); got != "Done" {
		t.Fatalf("TaskStatus = %q, want Done", got)
	}
}

func TestDeadlineEarlierTodayNotOverdue(t *testing.T) {
	// Deadline this morning, now is noon. Day granularity means not yet past.
	tk := task("t1", "p1", "In Progress", strPtr("2025-06-15T08:00:00Z"))
	if report.IsOverdue(tk, now) {
		t.Fatal("deadline earlier today should not be overdue")
	}
	tk.Deadline = strPtr("2025-06-14T23:00:00Z")
	if !report.IsOverdue(tk, now) {
		t.Fatal("deadline yesterday should be overdue")
	}
}

func TestOverdueDaysPastDue(t *testing.T) {
	tk := task("t1", "p1", "In Progress", strPtr("2025-06-10T00:00:00Z"))
	rep := report.Build(report.Input{
		Projects: []domain.Project{{ID: "p1", Name: "P1", CreatedAt: "2025-06-01T00:00:00Z"}},
		Tasks:    []domain.Task{tk},
		Now:      now,
	})
	if len(rep.TaskScope.OverdueTasksByProject) != 1 {
		t.Fatalf("expected one project with overdue tasks, got %d", len(rep.TaskScope.OverdueTasksByProject))
	}
	rec := rep.TaskScope.OverdueTasksByProject[0].OverdueTasks[0]
	if rec.DaysPastDue != 5 {
		t.Fatalf("daysPastDue = %d, want 5", rec.DaysPastDue)
	}
	if rep.TaskScope.OverdueCount != 1 {
		t.Fatalf("overdueCount = %d, want 1", rep.TaskScope.OverdueCount)
	}
}

func TestBareDateDeadlineAccepted(t *testing.T) {
	tk := task("t1", "p1", "To Do", strPtr("2025-06-10"))
	if !report.IsOverdue(tk, now) {
		t.Fatal("bare date deadline should parse and be overdue")
	}
}

func TestAvgTaskCompletionDays(t *testing.T) {
	done := domain.Task{
		ID: "t1", ProjectID: "p1", Status: "Done",
		CreatedAt:   "2025-06-01T00:00:00Z",
		CompletedAt: strPtr("2025-06-04T00:00:00Z"),
	}
	if got := report.AvgTaskCompletionDays([]domain.Task{done}); got != 3 {
		t.Fatalf("avgTaskCompletionDays = %v, want 3", got)
	}
}

func TestAvgTaskCompletionSkipsUnparseable(t *testing.T) {
	bad := domain.Task{
		ID: "t1", ProjectID: "p1", Status: "Done",
		CreatedAt:   "not-a-date",
		CompletedAt: strPtr("2025-06-04T00:00:00Z"),
	}
	if got := report.AvgTaskCompletionDays([]domain.Task{bad}); got != 0 {
		t.Fatalf("avgTaskCompletionDays = %v, want 0", got)
	}
	if math.IsNaN(report.AvgTaskCompletionDays(nil)) {
		t.Fatal("empty input produced NaN")
	}
}

func TestAvgProjectCompletionDays(t *testing.T) {
	p := domain.Project{ID: "p1", Name: "P1", CreatedAt: "2025-06-01T00:00:00Z"}
	tasks := []domain.Task{
		{ID: "t1", ProjectID: "p1", Status: "Done", CreatedAt: "2025-06-01T00:00:00Z", CompletedAt: strPtr("2025-06-05T00:00:00Z")},
		{ID: "t2", ProjectID: "p1", Status: "Done", CreatedAt: "2025-06-01T00:00:00Z", CompletedAt: strPtr("2025-06-11T00:00:00Z")},
	}
	if got := report.AvgProjectCompletionDays([]domain.Project{p}, tasks, now); got != 10 {
		t.Fatalf("avgProjectCompletionDays = %v, want 10", got)
	}

	// Incomplete projects do not count.
	tasks[1].Status = "In Progress"
	if got := report.AvgProjectCompletionDays([]domain.Project{p}, tasks, now); got != 0 {
		t.Fatalf("avgProjectCompletionDays = %v, want 0 for incomplete project", got)
	}
}

func TestAvgProjectCompletionFallsBackToNow(t *testing.T) {
	p := domain.Project{ID: "p1", Name: "P1", CreatedAt: "2025-06-05T00:00:00Z"}
	tasks := []domain.Task{
		{ID: "t1", ProjectID: "p1", Status: "Done", CreatedAt: "2025-06-05T00:00:00Z"},
	}
	got := report.AvgProjectCompletionDays([]domain.Project{p}, tasks, now)
	if got != 10.5 {
		t.Fatalf("avgProjectCompletionDays = %v, want 10.5 (now fallback)", got)
	}
}

func TestTrend(t *testing.T) {
	cases := []struct {
		current, baseline float64
		want              string
	}{
		{60, 50, "Improving"},
		{55.1, 50, "Improving"},
		{55, 50, "Stable"},
		{50, 50, "Stable"},
		{45, 50, "Stable"},
		{44.9, 50, "Declining"},
		{0, 0, "Stable"},
	}
	for _, tc := range cases {
		if got := report.Trend(tc.current, tc.baseline); got != tc.want {
			t.Errorf("Trend(%v, %v) = %q, want %q", tc.current, tc.baseline, got, tc.want)
		}
	}
}

func TestCompletionRateForMonth(t *testing.T) {
	tasks := []domain.Task{
		{ID: "t1", Status: "Done", CreatedAt: "2025-05-01T00:00:00Z", CompletedAt: strPtr("2025-06-05T00:00:00Z")},
		{ID: "t2", Status: "To Do", CreatedAt: "2025-05-01T00:00:00Z"},
		// Created after June; not in June's denominator.
		{ID: "t3", Status: "To Do", CreatedAt: "2025-07-02T00:00:00Z"},
	}
	if got := report.CompletionRateForMonth(tasks, 2025, time.June); got != 50 {
		t.Fatalf("June rate = %v, want 50", got)
	}
	if got := report.CompletionRateForMonth(tasks, 2025, time.May); got != 0 {
		t.Fatalf("May rate = %v, want 0", got)
	}
	if got := report.CompletionRateForMonth(nil, 2025, time.June); got != 0 {
		t.Fatalf("empty rate = %v, want 0", got)
	}
}

func TestEmptyScopeReport(t *testing.T) {
	rep := report.Build(report.Input{ScopeName: "Engineering", DepartmentID: "d1", Now: now})
	if rep.ProjectScope.TotalProjects != 0 || rep.TaskScope.TotalTasks != 0 {
		t.Fatal("expected zero totals")
	}
	for _, s := range []string{"To Do", "In Progress", "Done", "Overdue"} {
		if rep.ProjectScope.ProjectStatusCounts[s] != 0 || rep.TaskScope.TaskStatusCounts[s] != 0 {
			t.Fatalf("expected zero count for %s", s)
		}
		if rep.ProjectScope.ProjectStatusPercentages[s] != 0 || rep.TaskScope.TaskStatusPercentages[s] != 0 {
			t.Fatalf("expected zero percentage for %s", s)
		}
	}
	if rep.ProductivityTrend != "Stable" {
		t.Fatalf("trend = %q, want Stable", rep.ProductivityTrend)
	}
	if len(rep.ProjectScope.Milestones) != 0 {
		t.Fatal("expected empty milestones")
	}
	if len(rep.TaskScope.OverdueTasksByProject) != 0 {
		t.Fatal("expected empty overdue listing")
	}
	if rep.TeamPerformance.TeamSize != 0 || len(rep.TeamPerformance.DepartmentTeam) != 0 {
		t.Fatal("expected empty team")
	}
	if rep.ScopeInfo.ScopeID != "d1" || rep.ScopeInfo.ScopeName != "Engineering" {
		t.Fatalf("scope = %+v", rep.ScopeInfo)
	}
}

func TestStatusCountsSumToTotals(t *testing.T) {
	projects := []domain.Project{
		{ID: "p1", Name: "P1", CreatedAt: "2025-06-01T00:00:00Z"},
		{ID: "p2", Name: "P2", CreatedAt: "2025-06-01T00:00:00Z", Deadline: strPtr("2025-06-10T00:00:00Z")},
		{ID: "p3", Name: "P3", CreatedAt: "2025-06-01T00:00:00Z"},
	}
	tasks := []domain.Task{
		task("t1", "p1", "Done", nil),
		task("t2", "p1", "In Progress", nil),
		task("t3", "p2", "To Do", strPtr("2025-06-12T00:00:00Z")),
		task("t4", "p2", "In Progress", nil),
		task("t5", "p3", "To Do", nil),
		task("t6", "p3", "Done", strPtr("2024-12-31T00:00:00Z")),
		task("t7", "p3", "In Progress", strPtr("2025-06-01T00:00:00Z")),
	}
	rep := report.Build(report.Input{Projects: projects, Tasks: tasks, Now: now})

	sumP := 0
	for _, c := range rep.ProjectScope.ProjectStatusCounts {
		sumP += c
	}
	if sumP != rep.ProjectScope.TotalProjects {
		t.Fatalf("project counts sum %d != total %d", sumP, rep.ProjectScope.TotalProjects)
	}
	sumT := 0
	for _, c := range rep.TaskScope.TaskStatusCounts {
		sumT += c
	}
	if sumT != rep.TaskScope.TotalTasks {
		t.Fatalf("task counts sum %d != total %d", sumT, rep.TaskScope.TotalTasks)
	}

	// Independent rounding may drift, but not past half a point.
	var pctSum float64
	for _, v := range rep.TaskScope.TaskStatusPercentages {
		pctSum += v
	}
	if math.Abs(pctSum-100) > 0.5 {
		t.Fatalf("task percentage sum %v outside 100±0.5", pctSum)
	}
}

func TestTeamPerformanceInvariants(t *testing.T) {
	users := []domain.User{
		{ID: "u1", Name: "Ada", Role: "Staff"},
		{ID: "u2", Name: "Ben", Role: "Manager"},
		{ID: "u3", Name: "Cam", Role: "Staff"},
	}
	assign := func(tk domain.Task, ids ...string) domain.Task {
		for _, id := range ids {
			tk.Assignees = append(tk.Assignees, domain.Member{ID: id})
		}
		return tk
	}
	tasks := []domain.Task{
		assign(task("t1", "p1", "Done", nil), "u1"),
		assign(task("t2", "p1", "In Progress", strPtr("2025-06-01T00:00:00Z")), "u1", "u2"),
		assign(task("t3", "p1", "To Do", nil), "u1"),
		assign(task("t4", "p1", "To Do", strPtr("2025-06-10T00:00:00Z")), "u2"),
	}
	rows := report.AggregatePerformance(users, tasks, now)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.TasksInvolved != row.Todo+row.InProgress+row.Completed {
			t.Fatalf("row %s breaks tasksInvolved identity: %+v", row.UserID, row)
		}
	}
	ada := rows[0]
	if ada.TasksInvolved != 3 || ada.Completed != 1 || ada.InProgress != 1 || ada.Todo != 1 {
		t.Fatalf("ada = %+v", ada)
	}
	if ada.OverdueTasks != 1 {
		t.Fatalf("ada overdue = %d, want 1", ada.OverdueTasks)
	}
	if ada.OverdueRate != 33.3 {
		t.Fatalf("ada overdueRate = %v, want 33.3", ada.OverdueRate)
	}
	cam := rows[2]
	if cam.TasksInvolved != 0 || cam.OverdueRate != 0 {
		t.Fatalf("cam = %+v, want all zero", cam)
	}
}

func TestAttributionDedup(t *testing.T) {
	eng := &domain.DepartmentRef{ID: "d1", Name: "Engineering"}
	ops := &domain.DepartmentRef{ID: "d2", Name: "Operations"}
	overdue := []domain.Task{
		{
			ID: "t1", ProjectID: "p1", Title: "late", Status: "To Do",
			Deadline: strPtr("2025-06-01T00:00:00Z"),
			Assignees: []domain.Member{
				{ID: "u1", Department: eng},
				{ID: "u2", Department: eng},
				{ID: "u3", Department: ops},
				{ID: "u4"},
			},
		},
	}
	groups := report.AttributeByDepartment(overdue)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	// Sorted by name: Engineering, Operations.
	if groups[0].DepartmentID != "d1" || groups[0].OverdueCount != 1 {
		t.Fatalf("engineering group = %+v, task should count once", groups[0])
	}
	if groups[1].DepartmentID != "d2" || groups[1].OverdueCount != 1 {
		t.Fatalf("operations group = %+v", groups[1])
	}
}

func TestHasOverdueFromOtherDepts(t *testing.T) {
	ops := &domain.DepartmentRef{ID: "d2", Name: "Operations"}
	in := report.Input{
		DepartmentID: "d1",
		ScopeName:    "Engineering",
		Projects:     []domain.Project{{ID: "p1", Name: "P1", CreatedAt: "2025-06-01T00:00:00Z"}},
		Tasks: []domain.Task{{
			ID: "t1", ProjectID: "p1", Title: "late", Status: "To Do",
			CreatedAt: "2025-06-01T00:00:00Z",
			Deadline:  strPtr("2025-06-01T00:00:00Z"),
			Assignees: []domain.Member{{ID: "u3", Department: ops}},
		}},
		Now: now,
	}
	rep := report.Build(in)
	if !rep.ProjectScope.Milestones[0].HasOverdueFromOtherDepts {
		t.Fatal("expected foreign-department flag for department scope")
	}

	// Organization scope never flags.
	in.DepartmentID = ""
	rep = report.Build(in)
	if rep.ProjectScope.Milestones[0].HasOverdueFromOtherDepts {
		t.Fatal("organization scope must not flag foreign departments")
	}
}

func TestScopedMemberRestriction(t *testing.T) {
	eng := &domain.DepartmentRef{ID: "d1", Name: "Engineering"}
	ops := &domain.DepartmentRef{ID: "d2", Name: "Operations"}
	in := report.Input{
		DepartmentID: "d1",
		Projects:     []domain.Project{{ID: "p1", Name: "P1", CreatedAt: "2025-06-01T00:00:00Z"}},
		Tasks: []domain.Task{{
			ID: "t1", ProjectID: "p1", Title: "late", Status: "To Do",
			CreatedAt: "2025-06-01T00:00:00Z",
			Deadline:  strPtr("2025-06-01T00:00:00Z"),
			Assignees: []domain.Member{
				{ID: "u1", Name: "Ada", Department: eng},
				{ID: "u3", Name: "Cam", Department: ops},
			},
		}},
		Now: now,
	}
	rep := report.Build(in)
	rec := rep.TaskScope.OverdueTasksByProject[0].OverdueTasks[0]
	if len(rec.AssignedMembers) != 1 || rec.AssignedMembers[0].ID != "u1" {
		t.Fatalf("assignedMembers = %+v, want only the scoped department's member", rec.AssignedMembers)
	}
}

func TestDepartmentNameBackfill(t *testing.T) {
	in := report.Input{
		Projects: []domain.Project{{ID: "p1", Name: "P1", CreatedAt: "2025-06-01T00:00:00Z"}},
		Tasks: []domain.Task{{
			ID: "t1", ProjectID: "p1", Title: "late", Status: "To Do",
			CreatedAt: "2025-06-01T00:00:00Z",
			Deadline:  strPtr("2025-06-01T00:00:00Z"),
			Assignees: []domain.Member{{ID: "u1", Department: &domain.DepartmentRef{ID: "d1"}}},
		}},
		Departments: []domain.Department{{ID: "d1", Name: "Engineering"}},
		Now:         now,
	}
	rep := report.Build(in)
	groups := rep.ProjectScope.Milestones[0].OverdueResponsibility
	if len(groups) != 1 || groups[0].DepartmentName != "Engineering" {
		t.Fatalf("groups = %+v, want name resolved from departments", groups)
	}
}

func TestReportMarshalIdempotent(t *testing.T) {
	in := report.Input{
		DepartmentID: "d1",
		ScopeName:    "Engineering",
		Projects:     []domain.Project{{ID: "p1", Name: "P1", CreatedAt: "2025-06-01T00:00:00Z"}},
		Tasks: []domain.Task{
			task("t1", "p1", "Done", nil),
			task("t2", "p1", "To Do", strPtr("2025-06-10T00:00:00Z")),
		},
		Users: []domain.User{{ID: "u1", Name: "Ada", Role: "Staff"}},
		Now:   now,
	}
	a, err := json.Marshal(report.Build(in))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(report.Build(in))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("same input produced different documents")
	}
}

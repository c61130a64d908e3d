package engine_test

import (
	"context"
	"testing"
	"time"

	"teampulse/internal/config"
	"teampulse/internal/db"
	"teampulse/internal/engine"
	"teampulse/internal/migrate"
	"teampulse/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	if _, err := db.EnsureWorkspace(dir); err != nil {
		t.Fatalf("workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func TestDepartmentReportRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	dept, err := env.Engine.CreateDepartment(env.Ctx, "d1", "Engineering", "tester")
	if err != nil {
		t.Fatalf("create department: %v", err)
	}
	user, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		ID: "u1", Name: "Ada", DepartmentID: dept.ID, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if user.Role != "Staff" {
		t.Fatalf("role = %q, want Staff default", user.Role)
	}
	proj, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{
		ID: "p1", Name: "Platform", DepartmentIDs: []string{dept.ID}, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ID: "t1", ProjectID: proj.ID, Title: "done work", Status: "done",
		Assignees: []string{user.ID}, ActorID: "tester",
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		ID: "t2", ProjectID: proj.ID, Title: "late work",
		Deadline:  "2025-06-10T00:00:00Z",
		Assignees: []string{user.ID}, ActorID: "tester",
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	rep, err := env.Engine.DepartmentReport(env.Ctx, dept.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.ScopeInfo.ScopeID != "d1" || rep.ScopeInfo.ScopeName != "Engineering" {
		t.Fatalf("scope = %+v", rep.ScopeInfo)
	}
	if rep.TaskScope.TotalTasks != 2 {
		t.Fatalf("totalTasks = %d, want 2", rep.TaskScope.TotalTasks)
	}
	if rep.TaskScope.TaskStatusCounts["Done"] != 1 || rep.TaskScope.TaskStatusCounts["Overdue"] != 1 {
		t.Fatalf("taskStatusCounts = %v", rep.TaskScope.TaskStatusCounts)
	}
	if rep.TaskScope.OverdueCount != 1 {
		t.Fatalf("overdueCount = %d", rep.TaskScope.OverdueCount)
	}
	if rep.TeamPerformance.TeamSize != 1 {
		t.Fatalf("teamSize = %d", rep.TeamPerformance.TeamSize)
	}
	row := rep.TeamPerformance.DepartmentTeam[0]
	if row.TasksInvolved != 2 || row.Completed != 1 || row.OverdueTasks != 1 {
		t.Fatalf("performance row = %+v", row)
	}
}

func TestDepartmentReportUnknownScope(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.Engine.DepartmentReport(env.Ctx, "ghost")
	if err != nil {
		t.Fatalf("unknown department should not error: %v", err)
	}
	if rep.ScopeInfo.ScopeID != "ghost" || rep.ScopeInfo.ScopeName != engine.UnknownScopeName {
		t.Fatalf("scope = %+v", rep.ScopeInfo)
	}
	if rep.TaskScope.TotalTasks != 0 || rep.ProjectScope.TotalProjects != 0 {
		t.Fatal("expected all-zero report")
	}
	if rep.ProductivityTrend != "Stable" {
		t.Fatalf("trend = %q", rep.ProductivityTrend)
	}

	if _, err := env.Engine.DepartmentReport(env.Ctx, " "); err == nil {
		t.Fatal("blank department id should error")
	}
}

func TestOrganizationReportScope(t *testing.T) {
	env := newTestEnv(t)
	rep, err := env.Engine.OrganizationReport(env.Ctx)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.ScopeInfo.ScopeID != "organization" || rep.ScopeInfo.ScopeName != engine.OrganizationScopeName {
		t.Fatalf("scope = %+v", rep.ScopeInfo)
	}
}

func TestSetTaskStatusStampsCompletedAt(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateDepartment(env.Ctx, "d1", "Engineering", "tester"); err != nil {
		t.Fatal(err)
	}
	proj, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{ID: "p1", Name: "P1", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: proj.ID, Title: "work", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != "To Do" || task.CompletedAt != nil {
		t.Fatalf("new task = %+v", task)
	}

	task, err = env.Engine.SetTaskStatus(env.Ctx, task.ID, "done", "tester")
	if err != nil {
		t.Fatalf("set done: %v", err)
	}
	if task.Status != "Done" || task.CompletedAt == nil {
		t.Fatalf("done task = %+v, want stamped completedAt", task)
	}

	task, err = env.Engine.SetTaskStatus(env.Ctx, task.ID, "in progress", "tester")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if task.Status != "In Progress" || task.CompletedAt != nil {
		t.Fatalf("reopened task = %+v, want cleared completedAt", task)
	}

	rows, err := env.Engine.DB.QueryContext(env.Ctx, `SELECT count(*) FROM events WHERE type='task.status' AND entity_id=?`, task.ID)
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close()
	var count int
	rows.Next()
	rows.Scan(&count)
	if count != 2 {
		t.Fatalf("expected 2 status events, got %d", count)
	}
}

func TestCreateTaskRequiresProject(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", ActorID: "tester"}); err == nil {
		t.Fatal("expected error without project")
	}
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{ProjectID: "ghost", Title: "x", ActorID: "tester"}); err == nil {
		t.Fatal("expected error for unknown project")
	}
}

func TestImportSnapshotRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	doc := []byte(`{
		"departments": [{"id": "d1", "name": "Engineering"}],
		"users": [{"id": "u1", "name": "Ada", "role": "Staff", "department": "d1"}],
		"projects": [{"id": "p1", "name": "Platform", "department": "d1"}],
		"tasks": [
			{"id": "t1", "title": "done", "status": "completed",
			 "createdAt": "2025-06-01T00:00:00Z", "completedAt": "2025-06-04T00:00:00Z",
			 "assignedProject": "p1", "assignedTeamMembers": ["u1"]},
			{"id": "t2", "title": "late", "status": "in_progress",
			 "deadline": "2025-06-10T00:00:00Z",
			 "assignedProject": "p1", "assignedTeamMembers": ["u1"]}
		]
	}`)
	counts, err := env.Engine.ImportSnapshot(env.Ctx, doc, "tester")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if counts.Departments != 1 || counts.Users != 1 || counts.Projects != 1 || counts.Tasks != 2 {
		t.Fatalf("counts = %+v", counts)
	}

	rep, err := env.Engine.DepartmentReport(env.Ctx, "d1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.TaskScope.TotalTasks != 2 {
		t.Fatalf("totalTasks = %d", rep.TaskScope.TotalTasks)
	}
	if rep.TaskScope.TaskStatusCounts["Done"] != 1 || rep.TaskScope.TaskStatusCounts["Overdue"] != 1 {
		t.Fatalf("taskStatusCounts = %v", rep.TaskScope.TaskStatusCounts)
	}
	if rep.AvgTaskCompletionDays != 3 {
		t.Fatalf("avgTaskCompletionDays = %v, want 3", rep.AvgTaskCompletionDays)
	}

	// Importing the same document twice does not duplicate entities.
	if _, err := env.Engine.ImportSnapshot(env.Ctx, doc, "tester"); err != nil {
		t.Fatalf("second import: %v", err)
	}
	rep2, err := env.Engine.DepartmentReport(env.Ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if rep2.TaskScope.TotalTasks != 2 {
		t.Fatalf("after re-import totalTasks = %d, want 2", rep2.TaskScope.TotalTasks)
	}
}

func TestImportSnapshotRejectsMalformed(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.ImportSnapshot(env.Ctx, []byte(`{"tasks": [`), "tester"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	plaintext, key, err := env.Engine.CreateAPIKey(env.Ctx, "tester", "ci")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if plaintext == "" || key.ID == "" {
		t.Fatal("expected plaintext and id")
	}
	got, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(plaintext))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ActorID != "tester" {
		t.Fatalf("actor = %q", got.ActorID)
	}
}

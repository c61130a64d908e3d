package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"teampulse/internal/config"
	"teampulse/internal/domain"
	"teampulse/internal/events"
	"teampulse/internal/repo"
	"teampulse/internal/report"
	"teampulse/internal/snapshot"
)

// Engine owns the write path (entity upserts, status changes, snapshot
// import) and builds reports from repo-loaded snapshots. Report
// computation itself lives in internal/report and is pure.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

// OrganizationScopeName labels whole-organization reports.
const OrganizationScopeName = "Organization"

// UnknownScopeName labels reports for scope ids that resolve to nothing.
// An empty department is a valid state, so the report is all zeros rather
// than an error.
const UnknownScopeName = "Unknown"

// DepartmentReport builds the report for one department scope.
func (e Engine) DepartmentReport(ctx context.Context, departmentID string) (report.Report, error) {
	if strings.TrimSpace(departmentID) == "" {
		return report.Report{}, errors.New("department id is required")
	}
	now := e.now()
	scopeName := UnknownScopeName
	dept, err := e.Repo.GetDepartment(ctx, departmentID)
	switch {
	case err == nil:
		scopeName = dept.Name
	case errors.Is(err, repo.ErrNotFound):
		return report.Build(report.Input{
			DepartmentID: departmentID,
			ScopeName:    scopeName,
			Now:          now,
		}), nil
	default:
		return report.Report{}, err
	}
	snap, err := e.Repo.LoadSnapshot(ctx, departmentID)
	if err != nil {
		return report.Report{}, err
	}
	return report.Build(report.Input{
		DepartmentID: departmentID,
		ScopeName:    scopeName,
		Projects:     snap.Projects,
		Tasks:        snap.Tasks,
		Users:        snap.Users,
		Departments:  snap.Departments,
		Now:          now,
	}), nil
}

// OrganizationReport builds the whole-organization report.
func (e Engine) OrganizationReport(ctx context.Context) (report.Report, error) {
	snap, err := e.Repo.LoadSnapshot(ctx, "")
	if err != nil {
		return report.Report{}, err
	}
	return report.Build(report.Input{
		ScopeName:   OrganizationScopeName,
		Projects:    snap.Projects,
		Tasks:       snap.Tasks,
		Users:       snap.Users,
		Departments: snap.Departments,
		Now:         e.now(),
	}), nil
}

func (e Engine) CreateDepartment(ctx context.Context, id, name, actorID string) (domain.Department, error) {
	if name == "" {
		return domain.Department{}, errors.New("name is required")
	}
	if id == "" {
		id = uuid.New().String()
	}
	d := domain.Department{ID: id, Name: name, CreatedAt: e.nowString()}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Department{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertDepartment(ctx, tx, d); err != nil {
		return domain.Department{}, fmt.Errorf("upsert department: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "department.created", "department", d.ID, actorID, events.EventPayload{"name": d.Name}); err != nil {
		return domain.Department{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Department{}, err
	}
	return d, nil
}

// UserCreateOptions are parameters for creating a user.
type UserCreateOptions struct {
	ID           string
	Name         string
	Role         string
	DepartmentID string
	ActorID      string
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if opts.Name == "" {
		return domain.User{}, errors.New("name is required")
	}
	if opts.Role == "" {
		opts.Role = "Staff"
	}
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.DepartmentID != "" {
		if _, err := e.Repo.GetDepartment(ctx, opts.DepartmentID); err != nil {
			return domain.User{}, fmt.Errorf("department %s: %w", opts.DepartmentID, err)
		}
	}
	u := domain.User{
		ID:           opts.ID,
		Name:         opts.Name,
		Role:         opts.Role,
		DepartmentID: optionalString(opts.DepartmentID),
		CreatedAt:    e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertUser(ctx, tx, u); err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "user.created", "user", u.ID, opts.ActorID, events.EventPayload{"name": u.Name, "role": u.Role}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// ProjectCreateOptions are parameters for creating a project.
type ProjectCreateOptions struct {
	ID            string
	Name          string
	DepartmentIDs []string
	Deadline      string
	TeamMembers   []string
	ActorID       string
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Name == "" {
		return domain.Project{}, errors.New("name is required")
	}
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	p := domain.Project{
		ID:          opts.ID,
		Name:        opts.Name,
		Deadline:    optionalString(opts.Deadline),
		CreatedAt:   e.nowString(),
		CreatedBy:   opts.ActorID,
		TeamMembers: opts.TeamMembers,
	}
	for _, id := range opts.DepartmentIDs {
		d, err := e.Repo.GetDepartment(ctx, id)
		if err != nil {
			return domain.Project{}, fmt.Errorf("department %s: %w", id, err)
		}
		p.Departments = append(p.Departments, domain.DepartmentRef{ID: d.ID, Name: d.Name})
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("upsert project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "project.created", "project", p.ID, opts.ActorID, events.EventPayload{"name": p.Name}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID        string
	ProjectID string
	Title     string
	Status    string
	Deadline  string
	Assignees []string
	Subtasks  []domain.Subtask
	ActorID   string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, errors.New("title is required")
	}
	if opts.ProjectID == "" {
		return domain.Task{}, errors.New("project is required")
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Task{}, err
	}
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	now := e.nowString()
	t := domain.Task{
		ID:          opts.ID,
		ProjectID:   p.ID,
		ProjectName: p.Name,
		Title:       opts.Title,
		Status:      snapshot.CanonicalStatus(opts.Status),
		Deadline:    optionalString(opts.Deadline),
		CreatedAt:   now,
		CreatedBy:   opts.ActorID,
		Subtasks:    opts.Subtasks,
	}
	if t.Status == domain.StatusDone {
		t.CompletedAt = &now
	}
	for _, id := range opts.Assignees {
		u, err := e.Repo.GetUser(ctx, id)
		if err != nil {
			return domain.Task{}, fmt.Errorf("assignee %s: %w", id, err)
		}
		t.Assignees = append(t.Assignees, domain.Member{ID: u.ID, Name: u.Name, Role: u.Role})
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("upsert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", "task", t.ID, opts.ActorID, events.EventPayload{"title": t.Title, "status": t.Status}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, t.ID)
}

// SetTaskStatus changes a task's stored status, stamping completed_at on
// Done and clearing it otherwise.
func (e Engine) SetTaskStatus(ctx context.Context, taskID, status, actorID string) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return t, err
	}
	next := snapshot.CanonicalStatus(status)
	var completedAt *string
	if next == domain.StatusDone {
		now := e.nowString()
		completedAt = &now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskStatus(ctx, tx, taskID, next, completedAt); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.status", "task", taskID, actorID, events.EventPayload{
		"from_status": t.Status,
		"to_status":   next,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return e.Repo.GetTask(ctx, taskID)
}

// ImportCounts summarizes one snapshot import.
type ImportCounts struct {
	Departments int `json:"departments"`
	Users       int `json:"users"`
	Projects    int `json:"projects"`
	Tasks       int `json:"tasks"`
}

// ImportSnapshot ingests a loosely-shaped snapshot document, normalizing
// it and upserting every entity in one transaction.
func (e Engine) ImportSnapshot(ctx context.Context, data []byte, actorID string) (ImportCounts, error) {
	snap, err := snapshot.Parse(data)
	if err != nil {
		return ImportCounts{}, err
	}
	now := e.nowString()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ImportCounts{}, err
	}
	defer tx.Rollback()
	for _, d := range snap.Departments {
		if d.CreatedAt == "" {
			d.CreatedAt = now
		}
		if err := e.Repo.UpsertDepartment(ctx, tx, d); err != nil {
			return ImportCounts{}, fmt.Errorf("import department %s: %w", d.ID, err)
		}
	}
	for _, u := range snap.Users {
		if u.CreatedAt == "" {
			u.CreatedAt = now
		}
		if err := e.Repo.UpsertUser(ctx, tx, u); err != nil {
			return ImportCounts{}, fmt.Errorf("import user %s: %w", u.ID, err)
		}
	}
	for _, p := range snap.Projects {
		if p.CreatedAt == "" {
			p.CreatedAt = now
		}
		if err := e.Repo.UpsertProject(ctx, tx, p); err != nil {
			return ImportCounts{}, fmt.Errorf("import project %s: %w", p.ID, err)
		}
	}
	for _, t := range snap.Tasks {
		if t.CreatedAt == "" {
			t.CreatedAt = now
		}
		if err := e.Repo.UpsertTask(ctx, tx, t); err != nil {
			return ImportCounts{}, fmt.Errorf("import task %s: %w", t.ID, err)
		}
	}
	counts := ImportCounts{
		Departments: len(snap.Departments),
		Users:       len(snap.Users),
		Projects:    len(snap.Projects),
		Tasks:       len(snap.Tasks),
	}
	if err := e.Events.Append(ctx, tx, "snapshot.imported", "snapshot", "", actorID, events.EventPayload{
		"departments": counts.Departments,
		"users":       counts.Users,
		"projects":    counts.Projects,
		"tasks":       counts.Tasks,
	}); err != nil {
		return ImportCounts{}, err
	}
	if err := tx.Commit(); err != nil {
		return ImportCounts{}, err
	}
	return counts, nil
}

// CreateAPIKey issues a new key and returns its plaintext exactly once.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (string, domain.APIKey, error) {
	if actorID == "" {
		return "", domain.APIKey{}, errors.New("actor id is required")
	}
	plaintext := uuid.New().String() + uuid.New().String()
	key := domain.APIKey{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: e.nowString(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", domain.APIKey{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return "", domain.APIKey{}, err
	}
	if err := e.Events.Append(ctx, tx, "apikey.created", "apikey", key.ID, actorID, events.EventPayload{"name": name}); err != nil {
		return "", domain.APIKey{}, err
	}
	if err := tx.Commit(); err != nil {
		return "", domain.APIKey{}, err
	}
	return plaintext, key, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

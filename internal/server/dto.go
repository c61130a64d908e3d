package server

import (
	"teampulse/internal/domain"
	"teampulse/internal/engine"
)

type CreateDepartmentRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name" minLength:"1"`
}

type DepartmentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type CreateUserRequest struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name" minLength:"1"`
	Role         string `json:"role,omitempty" enum:"Director,Manager,Staff,"`
	DepartmentID string `json:"department_id,omitempty"`
}

type UserResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Role         string  `json:"role"`
	DepartmentID *string `json:"department_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type CreateProjectRequest struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name" minLength:"1"`
	DepartmentIDs []string `json:"department_ids,omitempty"`
	Deadline      *string  `json:"deadline,omitempty" format:"date-time"`
	TeamMembers   []string `json:"team_members,omitempty"`
}

type ProjectResponse struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Departments []domain.DepartmentRef `json:"departments"`
	Deadline    *string                `json:"deadline,omitempty" format:"date-time"`
	CreatedAt   string                 `json:"created_at" format:"date-time"`
	CreatedBy   string                 `json:"created_by"`
	TeamMembers []string               `json:"team_members,omitempty"`
}

type SubtaskRequest struct {
	Title    string  `json:"title" minLength:"1"`
	Status   string  `json:"status,omitempty"`
	Deadline *string `json:"deadline,omitempty" format:"date-time"`
}

type CreateTaskRequest struct {
	ID        string           `json:"id,omitempty"`
	ProjectID string           `json:"project_id" minLength:"1"`
	Title     string           `json:"title" minLength:"1"`
	Status    string           `json:"status,omitempty"`
	Deadline  *string          `json:"deadline,omitempty" format:"date-time"`
	Assignees []string         `json:"assignees,omitempty"`
	Subtasks  []SubtaskRequest `json:"subtasks,omitempty"`
}

type UpdateTaskRequest struct {
	Status string `json:"status" minLength:"1"`
}

type TaskResponse struct {
	ID          string           `json:"id"`
	ProjectID   string           `json:"project_id"`
	ProjectName string           `json:"project_name,omitempty"`
	Title       string           `json:"title"`
	Status      string           `json:"status"`
	Deadline    *string          `json:"deadline,omitempty" format:"date-time"`
	CreatedAt   string           `json:"created_at" format:"date-time"`
	CompletedAt *string          `json:"completed_at,omitempty" format:"date-time"`
	CreatedBy   string           `json:"created_by"`
	Assignees   []domain.Member  `json:"assignees,omitempty"`
	Subtasks    []domain.Subtask `json:"subtasks,omitempty"`
}

type ImportResponse struct {
	Imported engine.ImportCounts `json:"imported"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

// APIKeyResponse carries the plaintext key. It is shown once at creation
// and never stored.
type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

func departmentResponse(d domain.Department) DepartmentResponse {
	return DepartmentResponse{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt}
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Role:         u.Role,
		DepartmentID: u.DepartmentID,
		CreatedAt:    u.CreatedAt,
	}
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Departments: p.Departments,
		Deadline:    p.Deadline,
		CreatedAt:   p.CreatedAt,
		CreatedBy:   p.CreatedBy,
		TeamMembers: p.TeamMembers,
	}
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		ProjectName: t.ProjectName,
		Title:       t.Title,
		Status:      t.Status,
		Deadline:    t.Deadline,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
		CreatedBy:   t.CreatedBy,
		Assignees:   t.Assignees,
		Subtasks:    t.Subtasks,
	}
}

func eventResponse(ev domain.Event) EventResponse {
	return EventResponse{
		ID:         ev.ID,
		TS:         ev.TS,
		Type:       ev.Type,
		EntityKind: ev.EntityKind,
		EntityID:   ev.EntityID,
		ActorID:    ev.ActorID,
		Payload:    ev.Payload,
	}
}

func subtasksFromRequest(in []SubtaskRequest) []domain.Subtask {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Subtask, 0, len(in))
	for _, s := range in {
		out = append(out, domain.Subtask{Title: s.Title, Status: s.Status, Deadline: s.Deadline})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Package snapshot decodes loosely-shaped snapshot documents into domain
// values. Source trackers export entities as plain JSON objects where
// reference fields may be a bare id, an embedded object, or an array of
// either; all of that is normalized here so nothing downstream branches
// on shape.
package snapshot

import (
	"encoding/json"
	"fmt"
	"strings"

	"teampulse/internal/domain"
)

// UnassignedName is the display fallback for entities without a resolved
// department.
const UnassignedName = "Unassigned"

// Document is the wire form of a full snapshot.
type Document struct {
	Departments []DepartmentDoc `json:"departments"`
	Users       []UserDoc       `json:"users"`
	Projects    []ProjectDoc    `json:"projects"`
	Tasks       []TaskDoc       `json:"tasks"`
}

type DepartmentDoc struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

type UserDoc struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Department Ref    `json:"department"`
	CreatedAt  string `json:"createdAt"`
}

type ProjectDoc struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Department  RefList `json:"department"`
	Deadline    *string `json:"deadline"`
	CreatedAt   string  `json:"createdAt"`
	CreatedBy   Ref     `json:"createdBy"`
	TeamMembers RefList `json:"teamMembers"`
}

type SubtaskDoc struct {
	Title    string  `json:"title"`
	Status   string  `json:"status"`
	Deadline *string `json:"deadline"`
}

type TaskDoc struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	Status              string       `json:"status"`
	Deadline            *string      `json:"deadline"`
	CreatedAt           string       `json:"createdAt"`
	CompletedAt         *string      `json:"completedAt"`
	CreatedBy           Ref          `json:"createdBy"`
	AssignedProject     Ref          `json:"assignedProject"`
	AssignedTeamMembers RefList      `json:"assignedTeamMembers"`
	Subtasks            []SubtaskDoc `json:"subtasks"`
}

// Ref accepts a bare id string or an embedded object carrying id/_id and
// optionally name, role and department.
type Ref struct {
	ID         string
	Name       string
	Role       string
	Department *Ref
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*r = Ref{}
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*r = Ref{ID: id}
		return nil
	}
	var obj struct {
		ID         string `json:"id"`
		MongoID    string `json:"_id"`
		Name       string `json:"name"`
		Role       string `json:"role"`
		Department *Ref   `json:"department"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("reference must be an id or object: %w", err)
	}
	id = obj.ID
	if id == "" {
		id = obj.MongoID
	}
	*r = Ref{ID: id, Name: obj.Name, Role: obj.Role, Department: obj.Department}
	return nil
}

// RefList accepts null, a scalar reference, or an array of references.
// Legacy exports carry a single department where newer ones carry a list.
type RefList []Ref

func (l *RefList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*l = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var refs []Ref
		if err := json.Unmarshal(data, &refs); err != nil {
			return err
		}
		*l = refs
		return nil
	}
	var one Ref
	if err := one.UnmarshalJSON(data); err != nil {
		return err
	}
	if one.ID == "" {
		*l = nil
		return nil
	}
	*l = RefList{one}
	return nil
}

// Parse decodes and normalizes a snapshot document.
func Parse(data []byte) (domain.Snapshot, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return Normalize(doc), nil
}

// Normalize resolves references against the document's own department and
// user lists and coerces statuses to their canonical spelling. Unresolved
// references keep their id with an empty or fallback display name; they
// are data-quality anomalies, not errors.
func Normalize(doc Document) domain.Snapshot {
	depts := make(map[string]domain.Department, len(doc.Departments))
	var snap domain.Snapshot
	for _, d := range doc.Departments {
		dep := domain.Department{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt}
		depts[d.ID] = dep
		snap.Departments = append(snap.Departments, dep)
	}

	users := make(map[string]domain.User, len(doc.Users))
	for _, u := range doc.Users {
		user := domain.User{ID: u.ID, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
		if u.Department.ID != "" {
			id := u.Department.ID
			user.DepartmentID = &id
		}
		users[u.ID] = user
		snap.Users = append(snap.Users, user)
	}

	projects := make(map[string]domain.Project, len(doc.Projects))
	for _, p := range doc.Projects {
		proj := domain.Project{
			ID:        p.ID,
			Name:      p.Name,
			Deadline:  p.Deadline,
			CreatedAt: p.CreatedAt,
			CreatedBy: p.CreatedBy.ID,
		}
		for _, ref := range p.Department {
			proj.Departments = append(proj.Departments, departmentRef(ref, depts))
		}
		for _, m := range p.TeamMembers {
			proj.TeamMembers = append(proj.TeamMembers, m.ID)
		}
		projects[p.ID] = proj
		snap.Projects = append(snap.Projects, proj)
	}

	for _, t := range doc.Tasks {
		task := domain.Task{
			ID:          t.ID,
			ProjectID:   t.AssignedProject.ID,
			ProjectName: t.AssignedProject.Name,
			Title:       t.Title,
			Status:      CanonicalStatus(t.Status),
			Deadline:    t.Deadline,
			CreatedAt:   t.CreatedAt,
			CompletedAt: t.CompletedAt,
			CreatedBy:   t.CreatedBy.ID,
		}
		if task.ProjectName == "" {
			if p, ok := projects[task.ProjectID]; ok {
				task.ProjectName = p.Name
			}
		}
		for _, ref := range t.AssignedTeamMembers {
			task.Assignees = append(task.Assignees, memberRef(ref, users, depts))
		}
		for _, s := range t.Subtasks {
			task.Subtasks = append(task.Subtasks, domain.Subtask{
				Title:    s.Title,
				Status:   CanonicalStatus(s.Status),
				Deadline: s.Deadline,
			})
		}
		snap.Tasks = append(snap.Tasks, task)
	}
	return snap
}

func departmentRef(ref Ref, depts map[string]domain.Department) domain.DepartmentRef {
	name := ref.Name
	if d, ok := depts[ref.ID]; ok && name == "" {
		name = d.Name
	}
	if name == "" {
		name = UnassignedName
	}
	return domain.DepartmentRef{ID: ref.ID, Name: name}
}

func memberRef(ref Ref, users map[string]domain.User, depts map[string]domain.Department) domain.Member {
	m := domain.Member{ID: ref.ID, Name: ref.Name, Role: ref.Role}
	var deptID string
	if ref.Department != nil {
		deptID = ref.Department.ID
	}
	if u, ok := users[ref.ID]; ok {
		if m.Name == "" {
			m.Name = u.Name
		}
		if m.Role == "" {
			m.Role = u.Role
		}
		if deptID == "" && u.DepartmentID != nil {
			deptID = *u.DepartmentID
		}
	}
	if deptID != "" {
		dr := domain.DepartmentRef{ID: deptID}
		if ref.Department != nil && ref.Department.Name != "" {
			dr.Name = ref.Department.Name
		} else if d, ok := depts[deptID]; ok {
			dr.Name = d.Name
		}
		m.Department = &dr
	}
	return m
}

// CanonicalStatus maps loose status spellings onto the three stored
// statuses. Anything unrecognized reads as To Do.
func CanonicalStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "done", "completed", "complete":
		return domain.StatusDone
	case "in progress", "in_progress", "in-progress", "inprogress", "doing":
		return domain.StatusInProgress
	default:
		return domain.StatusToDo
	}
}

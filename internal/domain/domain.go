package domain

// Task statuses as stored. The reporting engine derives a fourth,
// "Overdue", which is never persisted.
const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
	StatusOverdue    = "Overdue"
)

type Department struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type User struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Role         string  `json:"role" enum:"Director,Manager,Staff"`
	DepartmentID *string `json:"department_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// DepartmentRef is a resolved reference carried on projects and members.
type DepartmentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Departments []DepartmentRef `json:"departments"`
	Deadline    *string         `json:"deadline,omitempty" format:"date-time"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
	CreatedBy   string          `json:"created_by"`
	TeamMembers []string        `json:"team_members,omitempty"`
}

// Member is a task assignee populated with the fields the reporting
// engine needs to attribute overdue responsibility.
type Member struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Role       string         `json:"role,omitempty"`
	Department *DepartmentRef `json:"department,omitempty"`
}

type Subtask struct {
	Title    string  `json:"title"`
	Status   string  `json:"status" enum:"To Do,In Progress,Done"`
	Deadline *string `json:"deadline,omitempty" format:"date-time"`
}

type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	ProjectName string    `json:"project_name,omitempty"`
	Title       string    `json:"title"`
	Status      string    `json:"status" enum:"To Do,In Progress,Done"`
	Deadline    *string   `json:"deadline,omitempty" format:"date-time"`
	CreatedAt   string    `json:"created_at" format:"date-time"`
	CompletedAt *string   `json:"completed_at,omitempty" format:"date-time"`
	CreatedBy   string    `json:"created_by"`
	Assignees   []Member  `json:"assignees,omitempty"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Snapshot is the materialized input the reporting engine computes over.
type Snapshot struct {
	Projects    []Project
	Tasks       []Task
	Users       []User
	Departments []Department
}

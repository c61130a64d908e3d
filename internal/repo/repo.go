package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"teampulse/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- departments ---

func (r Repo) UpsertDepartment(ctx context.Context, tx *sql.Tx, d domain.Department) error {
	_, err := execer(r.DB, tx).ExecContext(ctx, `INSERT INTO departments(id,name,created_at) VALUES (?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name`, d.ID, d.Name, d.CreatedAt)
	return err
}

func (r Repo) GetDepartment(ctx context.Context, id string) (domain.Department, error) {
	var d domain.Department
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,created_at FROM departments WHERE id=?`, id).
		Scan(&d.ID, &d.Name, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,created_at FROM departments ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Department
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

// --- users ---

func (r Repo) UpsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := execer(r.DB, tx).ExecContext(ctx, `INSERT INTO users(id,name,role,department_id,created_at) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, role=excluded.role, department_id=excluded.department_id`,
		u.ID, u.Name, u.Role, nullableStringPtr(u.DepartmentID), u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var dept sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,role,department_id,created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &u.Role, &dept, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if dept.Valid {
		u.DepartmentID = &dept.String
	}
	return u, err
}

// ListUsers returns users, restricted to one department when departmentID
// is non-empty.
func (r Repo) ListUsers(ctx context.Context, departmentID string) ([]domain.User, error) {
	query := `SELECT id,name,role,department_id,created_at FROM users`
	var args []any
	if departmentID != "" {
		query += ` WHERE department_id=?`
		args = append(args, departmentID)
	}
	query += ` ORDER BY name, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		var u domain.User
		var dept sql.NullString
		if err := rows.Scan(&u.ID, &u.Name, &u.Role, &dept, &u.CreatedAt); err != nil {
			return nil, err
		}
		if dept.Valid {
			u.DepartmentID = &dept.String
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// --- projects ---

func (r Repo) UpsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	ex := execer(r.DB, tx)
	if _, err := ex.ExecContext(ctx, `INSERT INTO projects(id,name,deadline,created_at,created_by) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, deadline=excluded.deadline, created_by=excluded.created_by`,
		p.ID, p.Name, nullableStringPtr(p.Deadline), p.CreatedAt, p.CreatedBy); err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM project_departments WHERE project_id=?`, p.ID); err != nil {
		return err
	}
	for _, d := range p.Departments {
		if d.ID == "" {
			continue
		}
		// Imported snapshots may reference departments that were never
		// exported; skip those instead of tripping the foreign key.
		if _, err := ex.ExecContext(ctx, `INSERT OR IGNORE INTO project_departments(project_id,department_id)
SELECT ?, id FROM departments WHERE id=?`, p.ID, d.ID); err != nil {
			return err
		}
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM project_members WHERE project_id=?`, p.ID); err != nil {
		return err
	}
	for _, m := range p.TeamMembers {
		if _, err := ex.ExecContext(ctx, `INSERT OR IGNORE INTO project_members(project_id,user_id)
SELECT ?, id FROM users WHERE id=?`, p.ID, m); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	var deadline sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,deadline,created_at,created_by FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Name, &deadline, &p.CreatedAt, &p.CreatedBy)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if deadline.Valid {
		p.Deadline = &deadline.String
	}
	p.Departments, err = r.projectDepartments(ctx, p.ID)
	if err != nil {
		return p, err
	}
	p.TeamMembers, err = r.projectMembers(ctx, p.ID)
	return p, err
}

// ListProjects returns projects, restricted to one owning department when
// departmentID is non-empty, with department refs and member ids populated.
func (r Repo) ListProjects(ctx context.Context, departmentID string) ([]domain.Project, error) {
	query := `SELECT id,name,deadline,created_at,created_by FROM projects`
	var args []any
	if departmentID != "" {
		query = `SELECT p.id,p.name,p.deadline,p.created_at,p.created_by FROM projects p
JOIN project_departments pd ON pd.project_id = p.id AND pd.department_id = ?`
		args = append(args, departmentID)
	}
	query += ` ORDER BY created_at, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var deadline sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &deadline, &p.CreatedAt, &p.CreatedBy); err != nil {
			return nil, err
		}
		if deadline.Valid {
			p.Deadline = &deadline.String
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].Departments, err = r.projectDepartments(ctx, res[i].ID); err != nil {
			return nil, err
		}
		if res[i].TeamMembers, err = r.projectMembers(ctx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) projectDepartments(ctx context.Context, projectID string) ([]domain.DepartmentRef, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT d.id, d.name FROM project_departments pd
JOIN departments d ON d.id = pd.department_id WHERE pd.project_id=? ORDER BY d.name, d.id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []domain.DepartmentRef
	for rows.Next() {
		var ref domain.DepartmentRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r Repo) projectMembers(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT user_id FROM project_members WHERE project_id=? ORDER BY user_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- tasks ---

func (r Repo) UpsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	ex := execer(r.DB, tx)
	subtasks, err := marshalSubtasks(t.Subtasks)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, `INSERT INTO tasks(id,project_id,title,status,deadline,created_at,completed_at,created_by,subtasks_json)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET project_id=excluded.project_id, title=excluded.title, status=excluded.status,
deadline=excluded.deadline, completed_at=excluded.completed_at, subtasks_json=excluded.subtasks_json`,
		t.ID, t.ProjectID, t.Title, t.Status, nullableStringPtr(t.Deadline), t.CreatedAt,
		nullableStringPtr(t.CompletedAt), t.CreatedBy, subtasks); err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id=?`, t.ID); err != nil {
		return err
	}
	for _, m := range t.Assignees {
		if m.ID == "" {
			continue
		}
		if _, err := ex.ExecContext(ctx, `INSERT OR IGNORE INTO task_assignees(task_id,user_id)
SELECT ?, id FROM users WHERE id=?`, t.ID, m.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	tasks, err := r.queryTasks(ctx, `WHERE t.id=?`, id)
	if err != nil {
		return domain.Task{}, err
	}
	if len(tasks) == 0 {
		return domain.Task{}, ErrNotFound
	}
	return tasks[0], nil
}

func (r Repo) UpdateTaskStatus(ctx context.Context, tx *sql.Tx, id, status string, completedAt *string) error {
	res, err := execer(r.DB, tx).ExecContext(ctx, `UPDATE tasks SET status=?, completed_at=? WHERE id=?`,
		status, nullableStringPtr(completedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTasks returns tasks with assignees populated, restricted to tasks of
// projects owned by departmentID when non-empty. Scope follows the owning
// project, not the assignees.
func (r Repo) ListTasks(ctx context.Context, departmentID string) ([]domain.Task, error) {
	if departmentID == "" {
		return r.queryTasks(ctx, ``)
	}
	return r.queryTasks(ctx, `WHERE t.project_id IN (SELECT project_id FROM project_departments WHERE department_id=?)`, departmentID)
}

func (r Repo) queryTasks(ctx context.Context, where string, args ...any) ([]domain.Task, error) {
	query := `SELECT t.id,t.project_id,COALESCE(p.name,''),t.title,t.status,t.deadline,t.created_at,t.completed_at,t.created_by,t.subtasks_json
FROM tasks t LEFT JOIN projects p ON p.id = t.project_id ` + where + ` ORDER BY t.created_at, t.id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		var t domain.Task
		var deadline, completedAt, subtasks sql.NullString
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.ProjectName, &t.Title, &t.Status, &deadline, &t.CreatedAt, &completedAt, &t.CreatedBy, &subtasks); err != nil {
			return nil, err
		}
		if deadline.Valid {
			t.Deadline = &deadline.String
		}
		if completedAt.Valid {
			t.CompletedAt = &completedAt.String
		}
		if subtasks.Valid && subtasks.String != "" {
			_ = json.Unmarshal([]byte(subtasks.String), &t.Subtasks)
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		if res[i].Assignees, err = r.taskAssignees(ctx, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) taskAssignees(ctx context.Context, taskID string) ([]domain.Member, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT u.id, u.name, u.role, d.id, d.name
FROM task_assignees ta
JOIN users u ON u.id = ta.user_id
LEFT JOIN departments d ON d.id = u.department_id
WHERE ta.task_id=? ORDER BY u.name, u.id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		var deptID, deptName sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &m.Role, &deptID, &deptName); err != nil {
			return nil, err
		}
		if deptID.Valid {
			m.Department = &domain.DepartmentRef{ID: deptID.String, Name: deptName.String}
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// LoadSnapshot materializes the reporting input for one scope: all
// departments, plus the users, projects and tasks the scope covers.
// Empty departmentID loads the whole organization.
func (r Repo) LoadSnapshot(ctx context.Context, departmentID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var err error
	if snap.Departments, err = r.ListDepartments(ctx); err != nil {
		return snap, fmt.Errorf("load departments: %w", err)
	}
	if snap.Users, err = r.ListUsers(ctx, departmentID); err != nil {
		return snap, fmt.Errorf("load users: %w", err)
	}
	if snap.Projects, err = r.ListProjects(ctx, departmentID); err != nil {
		return snap, fmt.Errorf("load projects: %w", err)
	}
	if snap.Tasks, err = r.ListTasks(ctx, departmentID); err != nil {
		return snap, fmt.Errorf("load tasks: %w", err)
	}
	return snap, nil
}

// --- events ---

func (r Repo) ListEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- helpers ---

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execer(db *sql.DB, tx *sql.Tx) sqlExecer {
	if tx != nil {
		return tx
	}
	return db
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func marshalSubtasks(subtasks []domain.Subtask) (any, error) {
	if len(subtasks) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(subtasks)
	if err != nil {
		return nil, fmt.Errorf("marshal subtasks: %w", err)
	}
	return string(b), nil
}

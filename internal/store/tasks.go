package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task statuses.
const (
	TaskCreated    = "created"
	TaskAssigned   = "assigned"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskBlocked    = "blocked"
	TaskErrored    = "error"
)

// Task is a persisted unit of work produced by the project manager.
type Task struct {
	ID            string
	ProjectID     string
	Title         string
	Description   string
	AssignedAgent string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TaskUpdate names the mutable task fields. Nil fields are unchanged.
type TaskUpdate struct {
	Title         *string
	Description   *string
	AssignedAgent *string
	Status        *string
}

// CreateTask inserts a new task and returns its id.
func (s *Store) CreateTask(projectID, title, description, assignedAgent string) (string, error) {
	id := uuid.NewString()
	now := encodeTime(time.Now())

	_, err := s.sql.Exec(`
		INSERT INTO tasks (id, project_id, title, description, assigned_agent, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'created', ?, ?)`,
		id, projectID, title, description, assignedAgent, now, now)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return id, nil
}

// Task returns a task by id, or ErrNotFound.
func (s *Store) Task(id string) (*Task, error) {
	row := s.sql.QueryRow(`
		SELECT id, project_id, title, description, assigned_agent, status, created_at, updated_at
		FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// TasksByProject returns all tasks for a project in creation order.
func (s *Store) TasksByProject(projectID string) ([]*Task, error) {
	rows, err := s.sql.Query(`
		SELECT id, project_id, title, description, assigned_agent, status, created_at, updated_at
		FROM tasks WHERE project_id = ? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies the non-nil fields of update.
func (s *Store) UpdateTask(id string, update TaskUpdate) error {
	set, args := buildSet(map[string]*string{
		"title":          update.Title,
		"description":    update.Description,
		"assigned_agent": update.AssignedAgent,
		"status":         update.Status,
	})
	if len(args) == 0 {
		return nil
	}

	set += ", updated_at = ?"
	args = append(args, encodeTime(time.Now()), id)

	res, err := s.sql.Exec(`UPDATE tasks SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return requireRow(res)
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var description, assigned sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &description, &assigned, &t.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Description = description.String
	t.AssignedAgent = assigned.String
	t.CreatedAt = decodeTime(createdAt)
	t.UpdatedAt = decodeTime(updatedAt)
	return &t, nil
}

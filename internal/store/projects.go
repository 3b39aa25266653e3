package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Project is a persisted software project.
type Project struct {
	ID          string
	Name        string
	Description string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectUpdate names the mutable project fields. Nil fields are unchanged.
type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *string
}

// CreateProject inserts a new project and returns its id.
func (s *Store) CreateProject(name, description string) (string, error) {
	id := uuid.NewString()
	now := encodeTime(time.Now())

	_, err := s.sql.Exec(`
		INSERT INTO projects (id, name, description, status, created_at, updated_at)
		VALUES (?, ?, ?, 'created', ?, ?)`,
		id, name, description, now, now)
	if err != nil {
		return "", fmt.Errorf("insert project: %w", err)
	}
	return id, nil
}

// Project returns a project by id, or ErrNotFound.
func (s *Store) Project(id string) (*Project, error) {
	row := s.sql.QueryRow(`
		SELECT id, name, description, status, created_at, updated_at
		FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// Projects returns all projects in creation order.
func (s *Store) Projects() ([]*Project, error) {
	rows, err := s.sql.Query(`
		SELECT id, name, description, status, created_at, updated_at
		FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ProjectByName returns the first project with the given name, or ErrNotFound.
func (s *Store) ProjectByName(name string) (*Project, error) {
	row := s.sql.QueryRow(`
		SELECT id, name, description, status, created_at, updated_at
		FROM projects WHERE name = ? ORDER BY created_at LIMIT 1`, name)
	return scanProject(row)
}

// UpdateProject applies the non-nil fields of update.
func (s *Store) UpdateProject(id string, update ProjectUpdate) error {
	set, args := buildSet(map[string]*string{
		"name":        update.Name,
		"description": update.Description,
		"status":      update.Status,
	})
	if len(args) == 0 {
		return nil
	}

	set += ", updated_at = ?"
	args = append(args, encodeTime(time.Now()), id)

	res, err := s.sql.Exec(`UPDATE projects SET `+set+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var description sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &description, &p.Status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.Description = description.String
	p.CreatedAt = decodeTime(createdAt)
	p.UpdatedAt = decodeTime(updatedAt)
	return &p, nil
}

// buildSet renders a SET clause from the non-nil columns, preserving a
// deterministic column order.
func buildSet(columns map[string]*string) (string, []any) {
	order := []string{"name", "title", "description", "assigned_agent", "status"}
	var set string
	var args []any
	for _, col := range order {
		val, ok := columns[col]
		if !ok || val == nil {
			continue
		}
		if set != "" {
			set += ", "
		}
		set += col + " = ?"
		args = append(args, *val)
	}
	return set, args
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

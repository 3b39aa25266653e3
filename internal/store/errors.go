package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Error record statuses.
const (
	ErrorOpen     = "open"
	ErrorResolved = "resolved"
)

// ErrorRecord is a persisted error raised somewhere in the pipeline.
type ErrorRecord struct {
	ID           string
	TaskID       string
	AgentID      string
	ErrorType    string
	ErrorMessage string
	StackTrace   string
	Status       string
	CreatedAt    time.Time
	ResolvedAt   time.Time
	Resolution   string
}

// StoreError persists a new open error record and returns its id.
func (s *Store) StoreError(taskID, agentID, errorType, errorMessage, stackTrace string) (string, error) {
	id := uuid.NewString()

	_, err := s.sql.Exec(`
		INSERT INTO errors (id, task_id, agent_id, error_type, error_message, stack_trace, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'open', ?)`,
		id, nullable(taskID), agentID, errorType, errorMessage, stackTrace, encodeTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("insert error: %w", err)
	}
	return id, nil
}

// Error returns an error record by id, or ErrNotFound.
func (s *Store) Error(id string) (*ErrorRecord, error) {
	row := s.sql.QueryRow(`
		SELECT id, task_id, agent_id, error_type, error_message, stack_trace, status, created_at, resolved_at, resolution
		FROM errors WHERE id = ?`, id)
	return scanError(row)
}

// ErrorsByTask returns errors for a task, newest first.
func (s *Store) ErrorsByTask(taskID string) ([]*ErrorRecord, error) {
	return s.queryErrors(`
		SELECT id, task_id, agent_id, error_type, error_message, stack_trace, status, created_at, resolved_at, resolution
		FROM errors WHERE task_id = ? ORDER BY created_at DESC`, taskID)
}

// AllErrors returns all errors, newest first. An empty status matches all.
func (s *Store) AllErrors(status string) ([]*ErrorRecord, error) {
	if status != "" {
		return s.queryErrors(`
			SELECT id, task_id, agent_id, error_type, error_message, stack_trace, status, created_at, resolved_at, resolution
			FROM errors WHERE status = ? ORDER BY created_at DESC`, status)
	}
	return s.queryErrors(`
		SELECT id, task_id, agent_id, error_type, error_message, stack_trace, status, created_at, resolved_at, resolution
		FROM errors ORDER BY created_at DESC`)
}

// UpdateErrorStatus transitions an error record. Resolution and resolvedAt are
// recorded only when the new status is resolved; a zero resolvedAt means now.
func (s *Store) UpdateErrorStatus(id, status, resolution string, resolvedAt time.Time) error {
	var res sql.Result
	var err error
	if status == ErrorResolved {
		if resolvedAt.IsZero() {
			resolvedAt = time.Now()
		}
		res, err = s.sql.Exec(`
			UPDATE errors SET status = ?, resolution = ?, resolved_at = ? WHERE id = ?`,
			status, resolution, encodeTime(resolvedAt), id)
	} else {
		res, err = s.sql.Exec(`UPDATE errors SET status = ? WHERE id = ?`, status, id)
	}
	if err != nil {
		return fmt.Errorf("update error status: %w", err)
	}
	return requireRow(res)
}

func (s *Store) queryErrors(query string, args ...any) ([]*ErrorRecord, error) {
	rows, err := s.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query errors: %w", err)
	}
	defer rows.Close()

	var records []*ErrorRecord
	for rows.Next() {
		rec, err := scanError(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanError(row rowScanner) (*ErrorRecord, error) {
	var rec ErrorRecord
	var taskID, agentID, stack, resolvedAt, resolution sql.NullString
	var createdAt string
	err := row.Scan(&rec.ID, &taskID, &agentID, &rec.ErrorType, &rec.ErrorMessage, &stack,
		&rec.Status, &createdAt, &resolvedAt, &resolution)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan error record: %w", err)
	}
	rec.TaskID = taskID.String
	rec.AgentID = agentID.String
	rec.StackTrace = stack.String
	rec.Resolution = resolution.String
	rec.CreatedAt = decodeTime(createdAt)
	rec.ResolvedAt = decodeTime(resolvedAt.String)
	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

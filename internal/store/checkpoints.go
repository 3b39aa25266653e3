package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a persisted workflow-state snapshot. Seq is a monotonic
// sequence number; "latest" selection uses it rather than wall-clock time so
// fast successive saves stay unambiguous.
type Checkpoint struct {
	Seq       int64
	ID        string
	CreatedAt time.Time
	Data      json.RawMessage
}

// StoreCheckpoint persists a workflow-state blob and returns the checkpoint id.
func (s *Store) StoreCheckpoint(data any) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint: %w", err)
	}

	id := uuid.NewString()
	_, err = s.sql.Exec(`
		INSERT INTO checkpoints (id, created_at, data) VALUES (?, ?, ?)`,
		id, encodeTime(time.Now()), string(encoded))
	if err != nil {
		return "", fmt.Errorf("insert checkpoint: %w", err)
	}
	return id, nil
}

// LatestCheckpoint returns the most recently stored checkpoint, or ErrNotFound
// when none exist yet.
func (s *Store) LatestCheckpoint() (*Checkpoint, error) {
	row := s.sql.QueryRow(`
		SELECT seq, id, created_at, data FROM checkpoints ORDER BY seq DESC LIMIT 1`)
	return scanCheckpoint(row)
}

// Checkpoint returns a checkpoint by id, or ErrNotFound.
func (s *Store) Checkpoint(id string) (*Checkpoint, error) {
	row := s.sql.QueryRow(`
		SELECT seq, id, created_at, data FROM checkpoints WHERE id = ?`, id)
	return scanCheckpoint(row)
}

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var cp Checkpoint
	var createdAt, data string
	err := row.Scan(&cp.Seq, &cp.ID, &createdAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan checkpoint: %w", err)
	}
	cp.CreatedAt = decodeTime(createdAt)
	cp.Data = json.RawMessage(data)
	return &cp, nil
}

package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentOutput is a persisted artifact produced by an agent for a task.
type AgentOutput struct {
	ID         string
	TaskID     string
	AgentID    string
	OutputType string
	Content    json.RawMessage
	CreatedAt  time.Time
}

// StoreAgentOutput persists an agent artifact. Content that cannot be
// marshaled is replaced by an error placeholder so the write never fails on
// serialization alone.
func (s *Store) StoreAgentOutput(taskID, agentID, outputType string, content any) (string, error) {
	id := uuid.NewString()

	encoded, err := json.Marshal(content)
	if err != nil {
		encoded, _ = json.Marshal(map[string]string{
			"error": fmt.Sprintf("could not serialize content: %v", err),
		})
	}

	_, err = s.sql.Exec(`
		INSERT INTO agent_outputs (id, task_id, agent_id, output_type, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, taskID, agentID, outputType, string(encoded), encodeTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("insert agent output: %w", err)
	}
	return id, nil
}

// AgentOutputs returns outputs for a task, newest first. An empty agentID
// matches all agents.
func (s *Store) AgentOutputs(taskID, agentID string) ([]*AgentOutput, error) {
	query := `
		SELECT id, task_id, agent_id, output_type, content, created_at
		FROM agent_outputs WHERE task_id = ?`
	args := []any{taskID}
	if agentID != "" {
		query += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agent outputs: %w", err)
	}
	defer rows.Close()

	var outputs []*AgentOutput
	for rows.Next() {
		var o AgentOutput
		var content, createdAt string
		if err := rows.Scan(&o.ID, &o.TaskID, &o.AgentID, &o.OutputType, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan agent output: %w", err)
		}
		o.Content = json.RawMessage(content)
		o.CreatedAt = decodeTime(createdAt)
		outputs = append(outputs, &o)
	}
	return outputs, rows.Err()
}

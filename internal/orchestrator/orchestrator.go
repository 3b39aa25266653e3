// Package orchestrator drives the multi-agent development workflow: it
// initializes projects, routes typed messages between the seven agent roles,
// sequences agent turns, and checkpoints workflow state after every step so
// an interrupted run resumes with at most one step's work lost.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcus/crewd/internal/agents"
	"github.com/marcus/crewd/internal/bus"
	"github.com/marcus/crewd/internal/logging"
	"github.com/marcus/crewd/internal/store"
)

// Store is the persistence contract the engine consumes. *store.Store
// satisfies it; tests substitute fakes.
type Store interface {
	CreateProject(name, description string) (string, error)
	Project(id string) (*store.Project, error)
	ProjectByName(name string) (*store.Project, error)
	UpdateProject(id string, update store.ProjectUpdate) error

	CreateTask(projectID, title, description, assignedAgent string) (string, error)
	TasksByProject(projectID string) ([]*store.Task, error)
	UpdateTask(id string, update store.TaskUpdate) error

	StoreAgentOutput(taskID, agentID, outputType string, content any) (string, error)

	StoreError(taskID, agentID, errorType, errorMessage, stackTrace string) (string, error)
	ErrorsByTask(taskID string) ([]*store.ErrorRecord, error)
	UpdateErrorStatus(id, status, resolution string, resolvedAt time.Time) error

	StoreCheckpoint(data any) (string, error)
	LatestCheckpoint() (*store.Checkpoint, error)
	Checkpoint(id string) (*store.Checkpoint, error)
}

// Config holds orchestrator configuration.
type Config struct {
	DefaultSteps int // steps per Run call when the caller passes <= 0
}

// DefaultConfig returns default orchestrator config.
func DefaultConfig() Config {
	return Config{DefaultSteps: 1}
}

// Orchestrator owns one project's live state and advances the workflow one
// agent turn at a time. It is explicitly constructed and explicitly owned;
// there is no ambient instance.
type Orchestrator struct {
	mu sync.Mutex

	store        Store
	roster       agents.Roster
	bus          *bus.Bus
	config       Config
	logger       *logging.Logger
	eventHandler EventHandler

	state        *SystemState
	requirements string

	pendingEvents []Event
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore sets the persistence store.
func WithStore(s Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithRoster sets the agent implementations, one per role.
func WithRoster(r agents.Roster) Option {
	return func(o *Orchestrator) { o.roster = r }
}

// WithConfig sets orchestrator configuration.
func WithConfig(c Config) Option {
	return func(o *Orchestrator) { o.config = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithEventHandler sets an optional callback for lifecycle events.
func WithEventHandler(h EventHandler) Option {
	return func(o *Orchestrator) { o.eventHandler = h }
}

// New creates an orchestrator with the given options.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config: DefaultConfig(),
		logger: logging.Component("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.bus = o.newBus()
	return o
}

func (o *Orchestrator) newBus() *bus.Bus {
	busOpts := []bus.Option{bus.WithLogger(o.logger.WithComponent("bus"))}
	if o.store != nil {
		busOpts = append(busOpts, bus.WithPersister(o.store))
	}
	return bus.New(busOpts...)
}

// Bus exposes the message bus, mainly for inspection by callers and tests.
func (o *Orchestrator) Bus() *bus.Bus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bus
}

// State exposes the live system state; nil until a project is initialized.
func (o *Orchestrator) State() *SystemState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// emit queues an event for the registered handler. Called with o.mu held;
// delivery happens in flushEvents after the lock is released, so handlers may
// call back into the orchestrator without deadlocking.
func (o *Orchestrator) emit(e Event) {
	if o.eventHandler == nil {
		return
	}
	e.Time = time.Now()
	if e.ProjectID == "" && o.state != nil {
		e.ProjectID = o.state.ProjectID
	}
	o.pendingEvents = append(o.pendingEvents, e)
}

// flushEvents delivers queued events in order with the orchestrator unlocked.
// Deferred after the unlock in the entry points that emit.
func (o *Orchestrator) flushEvents() {
	if o.eventHandler == nil {
		return
	}
	o.mu.Lock()
	events := o.pendingEvents
	o.pendingEvents = nil
	o.mu.Unlock()
	for _, e := range events {
		o.eventHandler(e)
	}
}

// InitializeProject creates or reuses the named project, replaces the live
// system state with fresh agents for all seven roles, enqueues the
// requirements message to the project manager, and persists the bootstrap
// checkpoint. Calling it again with the same name reuses the project and
// updates a changed description.
func (o *Orchestrator) InitializeProject(ctx context.Context, name, description, requirements string) (string, error) {
	o.mu.Lock()
	defer o.flushEvents()
	defer o.mu.Unlock()

	if o.store == nil {
		return "", errors.New("no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	projectID, err := o.ensureProject(name, description)
	if err != nil {
		return "", err
	}

	state := NewSystemState(projectID)
	for _, role := range Roles() {
		if _, err := state.RegisterAgent(role); err != nil {
			return "", fmt.Errorf("register %s: %w", role, err)
		}
	}
	o.state = state
	o.requirements = requirements
	o.bus = o.newBus()

	pm, _ := state.AgentByRole(RoleProjectManager)
	msg := bus.NewMessage(SenderSystem, pm.AgentID, requirements, bus.TypeRequirements,
		bus.WithProjectID(projectID))
	o.bus.Send(msg)
	state.AddMessage(MessageEntry{
		ID:         msg.ID,
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Type:       string(msg.Type),
		Timestamp:  msg.Timestamp,
	})

	checkpointID, err := o.store.StoreCheckpoint(NewWorkflowState())
	if err != nil {
		return "", fmt.Errorf("store initial checkpoint: %w", err)
	}
	state.SetCheckpoint(checkpointID)
	state.SetPhase("initialized")

	o.logger.InfoCtx("project initialized", map[string]any{
		"project_id": projectID,
		"name":       name,
	})
	o.emit(Event{Type: EventProjectInit, ProjectID: projectID, Message: "project initialized"})
	return projectID, nil
}

// ensureProject finds the project by name, creating it when absent and
// refreshing a changed description otherwise.
func (o *Orchestrator) ensureProject(name, description string) (string, error) {
	existing, err := o.store.ProjectByName(name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		id, err := o.store.CreateProject(name, description)
		if err != nil {
			return "", fmt.Errorf("create project: %w", err)
		}
		return id, nil
	case err != nil:
		return "", fmt.Errorf("look up project: %w", err)
	}

	if existing.Description != description {
		if err := o.store.UpdateProject(existing.ID, store.ProjectUpdate{Description: &description}); err != nil {
			return "", fmt.Errorf("update project description: %w", err)
		}
	}
	return existing.ID, nil
}

// Run advances the workflow by up to steps agent turns, checkpointing after
// each one. It fails fast when no project is initialized, stops between
// steps on context cancellation, and stops early on a run-loop error after
// recording it and setting the system status to error. The returned snapshot
// is always plain data; if even that cannot be serialized a minimal
// {project_id, status, error} fallback is returned.
func (o *Orchestrator) Run(ctx context.Context, steps int) (map[string]any, error) {
	o.mu.Lock()
	defer o.flushEvents()
	defer o.mu.Unlock()

	if o.state == nil {
		return nil, errors.New("no project initialized")
	}
	if steps <= 0 {
		steps = o.config.DefaultSteps
	}
	if steps <= 0 {
		steps = 1
	}

	wf, err := o.loadCheckpointLocked("")
	if err != nil {
		return o.runLoopFailure(fmt.Errorf("load checkpoint: %w", err))
	}
	o.state.SetStatus(SystemRunning)

	for step := 1; step <= steps; step++ {
		if err := ctx.Err(); err != nil {
			return o.snapshotResult(), err
		}

		role := wf.Next
		if role == "" {
			role = RoleProjectManager
		}
		o.state.SetPhase(string(role))
		o.emit(Event{Type: EventStepStart, Step: step, Role: role})
		o.logger.DebugCtx("running step", map[string]any{"step": step, "role": string(role)})

		wf.merge(o.runTurn(role, wf))

		checkpointID, err := o.store.StoreCheckpoint(wf)
		if err != nil {
			return o.runLoopFailure(fmt.Errorf("store checkpoint: %w", err))
		}
		o.state.SetCheckpoint(checkpointID)
		o.emit(Event{Type: EventStepEnd, Step: step, Role: role, CheckpointID: checkpointID})
	}

	return o.snapshotResult(), nil
}

// runLoopFailure records a run-level error, marks the system errored, and
// returns the snapshot alongside the error. The orchestrator stays queryable
// and the next Run call resumes from the last good checkpoint.
func (o *Orchestrator) runLoopFailure(err error) (map[string]any, error) {
	o.logger.ErrorCtx("run loop error", map[string]any{"error": err.Error()})
	o.state.AddError(ErrorEntry{
		Kind:    agents.KindPersistence,
		Message: err.Error(),
	})
	o.state.SetStatus(SystemError)
	o.emit(Event{Type: EventError, Error: err.Error()})
	return o.snapshotResult(), err
}

// snapshotResult serializes the live state, degrading to a minimal payload
// when the full snapshot cannot be marshaled.
func (o *Orchestrator) snapshotResult() map[string]any {
	snap := o.state.Snapshot()
	if _, err := json.Marshal(snap); err != nil {
		return map[string]any{
			"project_id": o.state.ProjectID,
			"status":     string(o.state.Status),
			"error":      err.Error(),
		}
	}
	return snap
}

// SaveCheckpoint persists a workflow state and returns the checkpoint id.
func (o *Orchestrator) SaveCheckpoint(wf *WorkflowState) (string, error) {
	if o.store == nil {
		return "", errors.New("no store configured")
	}
	wf.normalize()
	return o.store.StoreCheckpoint(wf)
}

// LoadCheckpoint loads a checkpoint by id; empty id or "latest" selects the
// most recent one. When no checkpoints exist the bootstrap state is returned:
// empty accumulators with the project manager scheduled next.
func (o *Orchestrator) LoadCheckpoint(id string) (*WorkflowState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loadCheckpointLocked(id)
}

func (o *Orchestrator) loadCheckpointLocked(id string) (*WorkflowState, error) {
	if o.store == nil {
		return nil, errors.New("no store configured")
	}

	var (
		cp  *store.Checkpoint
		err error
	)
	if id == "" || id == "latest" {
		cp, err = o.store.LatestCheckpoint()
		if errors.Is(err, store.ErrNotFound) {
			return NewWorkflowState(), nil
		}
	} else {
		cp, err = o.store.Checkpoint(id)
	}
	if err != nil {
		return nil, err
	}

	wf := &WorkflowState{}
	if err := json.Unmarshal(cp.Data, wf); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", cp.ID, err)
	}
	wf.normalize()
	return wf, nil
}

// Reset discards the live project state and mailboxes. Persisted data is
// untouched; a subsequent InitializeProject starts clean.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = nil
	o.requirements = ""
	o.bus = o.newBus()
	o.logger.Info("orchestrator reset")
}

// ProjectStatus recomputes completion and error metrics for a project from
// the store. Live agent status is reported only when the project matches the
// orchestrator's loaded project; otherwise agents report "unknown".
func (o *Orchestrator) ProjectStatus(ctx context.Context, projectID string) (map[string]any, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.store == nil {
		return nil, errors.New("no store configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	project, err := o.store.Project(projectID)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	tasks, err := o.store.TasksByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	byStatus := map[string]int{}
	completed := 0
	for _, task := range tasks {
		byStatus[task.Status]++
		if task.Status == store.TaskCompleted {
			completed++
		}
	}
	completion := 0.0
	if len(tasks) > 0 {
		completion = float64(completed) / float64(len(tasks)) * 100
	}

	openErrors, resolvedErrors := 0, 0
	for _, task := range tasks {
		records, err := o.store.ErrorsByTask(task.ID)
		if err != nil {
			return nil, fmt.Errorf("load errors: %w", err)
		}
		for _, record := range records {
			if record.Status == store.ErrorResolved {
				resolvedErrors++
			} else {
				openErrors++
			}
		}
	}

	agentViews := map[string]any{}
	if o.state != nil && o.state.ProjectID == projectID {
		for _, role := range Roles() {
			if agent, ok := o.state.AgentByRole(role); ok {
				agentViews[string(role)] = string(agent.Status)
			}
		}
	} else {
		for _, role := range Roles() {
			agentViews[string(role)] = "unknown"
		}
	}

	status := map[string]any{
		"project_id":  projectID,
		"name":        project.Name,
		"status":      project.Status,
		"description": project.Description,
		"tasks": map[string]any{
			"total":                 len(tasks),
			"by_status":             byStatus,
			"completion_percentage": completion,
		},
		"errors": map[string]any{
			"total":    openErrors + resolvedErrors,
			"open":     openErrors,
			"resolved": resolvedErrors,
		},
		"agents": agentViews,
	}
	if o.state != nil && o.state.ProjectID == projectID {
		status["workflow_status"] = string(o.state.Status)
		status["current_phase"] = o.state.CurrentPhase
	}
	return status, nil
}

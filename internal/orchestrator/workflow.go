package orchestrator

import "github.com/marcus/crewd/internal/agents"

// WorkflowState is the checkpointed accumulator state: seven append-only
// lists plus the scheduler pointer naming the role that runs next. The JSON
// keys are the checkpoint wire format and must stay stable across versions.
type WorkflowState struct {
	Tasks                []agents.TaskSpec `json:"tasks"`
	Implementations      []agents.Payload  `json:"implementations"`
	UIImplementations    []agents.Payload  `json:"ui_implementations"`
	IntegratedSystems    []agents.Payload  `json:"integrated_systems"`
	TestReports          []agents.Payload  `json:"test_reports"`
	Documentation        []agents.Payload  `json:"documentation"`
	ErrorHandlingResults []agents.Payload  `json:"error_handling_results"`
	Next                 Role              `json:"next"`
}

// NewWorkflowState returns the bootstrap state: empty accumulators with the
// project manager scheduled first.
func NewWorkflowState() *WorkflowState {
	w := &WorkflowState{Next: RoleProjectManager}
	w.normalize()
	return w
}

// normalize replaces nil accumulator lists with empty ones so a load/save
// round-trip reproduces the same wire bytes.
func (w *WorkflowState) normalize() {
	if w.Tasks == nil {
		w.Tasks = []agents.TaskSpec{}
	}
	if w.Implementations == nil {
		w.Implementations = []agents.Payload{}
	}
	if w.UIImplementations == nil {
		w.UIImplementations = []agents.Payload{}
	}
	if w.IntegratedSystems == nil {
		w.IntegratedSystems = []agents.Payload{}
	}
	if w.TestReports == nil {
		w.TestReports = []agents.Payload{}
	}
	if w.Documentation == nil {
		w.Documentation = []agents.Payload{}
	}
	if w.ErrorHandlingResults == nil {
		w.ErrorHandlingResults = []agents.Payload{}
	}
	if w.Next == "" {
		w.Next = RoleProjectManager
	}
}

// turnResult carries the partial state produced by one agent turn, merged
// into the workflow accumulators by the run loop.
type turnResult struct {
	tasks                []agents.TaskSpec
	implementations      []agents.Payload
	uiImplementations    []agents.Payload
	integratedSystems    []agents.Payload
	testReports          []agents.Payload
	documentation        []agents.Payload
	errorHandlingResults []agents.Payload
	next                 Role
}

// merge appends the turn's partial state and advances the scheduler pointer
// when the turn named a successor.
func (w *WorkflowState) merge(r *turnResult) {
	if r == nil {
		return
	}
	w.Tasks = append(w.Tasks, r.tasks...)
	w.Implementations = append(w.Implementations, r.implementations...)
	w.UIImplementations = append(w.UIImplementations, r.uiImplementations...)
	w.IntegratedSystems = append(w.IntegratedSystems, r.integratedSystems...)
	w.TestReports = append(w.TestReports, r.testReports...)
	w.Documentation = append(w.Documentation, r.documentation...)
	w.ErrorHandlingResults = append(w.ErrorHandlingResults, r.errorHandlingResults...)
	if r.next != "" {
		w.Next = r.next
	}
}

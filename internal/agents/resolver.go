package agents

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrorKind classifies pipeline errors. The set is closed: producers pick a
// kind at the point the error is raised, and the resolver switches on it
// rather than inspecting message text.
type ErrorKind string

const (
	KindTestFailure   ErrorKind = "test_failure"
	KindSerialization ErrorKind = "serialization"
	KindPersistence   ErrorKind = "persistence"
	KindAgentFailure  ErrorKind = "agent_failure"
	KindUnknown       ErrorKind = "unknown"
)

// Severity returns the operational severity for the kind.
func (k ErrorKind) Severity() string {
	switch k {
	case KindSerialization, KindPersistence, KindAgentFailure:
		return "high"
	default:
		return "medium"
	}
}

// ErrorUpdater marks stored errors resolved. Satisfied by the store.
type ErrorUpdater interface {
	UpdateErrorStatus(id, status, resolution string, resolvedAt time.Time) error
}

// StubResolver walks an error through analysis, root cause identification,
// fix generation and recovery. Errors may be nil, in which case stored error
// records are not updated.
type StubResolver struct {
	Outputs Outputs
	Errors  ErrorUpdater
}

func (r *StubResolver) AnalyzeError(report ErrorReport) (Payload, error) {
	errorID := report.ID
	if errorID == "" {
		errorID = "error-" + uuid.NewString()
	}

	analysis := Payload{
		"error_id":            errorID,
		"kind":                report.Kind,
		"error_message":       report.ErrorMessage,
		"agent_id":            report.AgentID,
		"task_id":             report.TaskID,
		"severity":            report.Kind.Severity(),
		"likely_root_causes":  []Payload{},
		"affected_components": []string{},
		"analysis_time":       time.Now().UTC(),
	}

	switch report.Kind {
	case KindTestFailure:
		analysis["likely_root_causes"] = []Payload{
			{"description": "Implementation does not satisfy its test expectations", "confidence": "medium"},
		}
		analysis["affected_components"] = []string{"Implementation under test"}
	case KindSerialization:
		analysis["likely_root_causes"] = []Payload{
			{"description": "Payload contains values that cannot be serialized", "confidence": "high"},
		}
		analysis["affected_components"] = []string{"Message serialization"}
	case KindPersistence:
		analysis["likely_root_causes"] = []Payload{
			{"description": "Storage operation rejected or unavailable", "confidence": "high"},
		}
		analysis["affected_components"] = []string{"Persistence layer"}
	case KindAgentFailure:
		analysis["likely_root_causes"] = []Payload{
			{"description": "Agent operation returned an error mid-turn", "confidence": "medium"},
		}
		analysis["affected_components"] = []string{"Agent execution"}
	}

	return analysis, nil
}

func (r *StubResolver) IdentifyRootCause(analysis Payload, context Payload) (Payload, error) {
	rootCause := Payload{
		"error_id": analysis["error_id"],
		"primary_cause": Payload{
			"description": "Primary root cause not identified",
			"confidence":  "low",
			"evidence":    []string{},
		},
		"contributing_factors": []Payload{},
		"environment_factors":  []Payload{},
		"code_location": Payload{
			"file":        "unknown",
			"line_number": -1,
			"function":    "unknown",
		},
	}

	if causes := payloadSlice(analysis["likely_root_causes"]); len(causes) > 0 {
		rootCause["primary_cause"] = Payload{
			"description": causes[0]["description"],
			"confidence":  causes[0]["confidence"],
			"evidence":    []string{"Derived from error classification"},
		}
	}

	if agentState, ok := context["agent_state"].(Payload); ok {
		if initialized, ok := agentState["initialization_complete"].(bool); ok && !initialized {
			rootCause["contributing_factors"] = []Payload{
				{"description": "Agent not fully initialized", "confidence": "medium"},
			}
		}
	}

	return rootCause, nil
}

func (r *StubResolver) GenerateFix(rootCause Payload, context Payload) (Payload, error) {
	kind, _ := context["kind"].(ErrorKind)

	fix := Payload{
		"error_id":           rootCause["error_id"],
		"fix_type":           "code_change",
		"description":        fmt.Sprintf("Fix for %s error", kind),
		"changes":            []Payload{},
		"fix_confidence":     "medium",
		"verification_steps": []string{},
		"expected_outcome":   "Error should be resolved",
	}

	location := Payload{"file": "unknown"}
	if loc, ok := rootCause["code_location"].(Payload); ok {
		location = loc
	}

	switch kind {
	case KindTestFailure:
		fix["description"] = "Fix implementation to satisfy failing tests"
		fix["changes"] = []Payload{
			{"type": "code_update", "file": location["file"], "explanation": "Adjusted implementation to match test expectations"},
		}
		fix["verification_steps"] = []string{"Re-run failing tests"}
	case KindSerialization:
		fix["description"] = "Fix payload serialization"
		fix["changes"] = []Payload{
			{"type": "code_update", "file": location["file"], "explanation": "Replaced unserializable values with plain data"},
		}
		fix["verification_steps"] = []string{"Verify payload round-trips through JSON"}
	case KindPersistence:
		fix["description"] = "Fix storage configuration"
		fix["fix_type"] = "configuration_update"
		fix["changes"] = []Payload{
			{"type": "configuration_fix", "setting": "database.path", "explanation": "Point storage at a writable database"},
		}
		fix["verification_steps"] = []string{"Verify storage operations succeed"}
	case KindAgentFailure:
		fix["description"] = "Fix failing agent operation"
		fix["changes"] = []Payload{
			{"type": "code_update", "file": location["file"], "explanation": "Guarded agent operation against the failing input"},
		}
		fix["verification_steps"] = []string{"Re-run the agent turn"}
	default:
		fix["fix_confidence"] = "low"
		fix["changes"] = []Payload{
			{"type": "code_update", "file": location["file"], "explanation": "Generic fix based on error classification"},
		}
	}

	return fix, nil
}

// HandleError composes the full analysis, root cause, fix, recovery sequence
// and returns the combined result. The stored error record, when one exists,
// is marked resolved.
func (r *StubResolver) HandleError(report ErrorReport, context Payload) (Payload, error) {
	if context == nil {
		context = Payload{}
	}
	context["kind"] = report.Kind

	analysis, err := r.AnalyzeError(report)
	if err != nil {
		return nil, err
	}
	rootCause, err := r.IdentifyRootCause(analysis, context)
	if err != nil {
		return nil, err
	}
	fix, err := r.GenerateFix(rootCause, context)
	if err != nil {
		return nil, err
	}
	recovery, err := r.implementRecovery(report, fix)
	if err != nil {
		return nil, err
	}

	return Payload{
		"error_id":              analysis["error_id"],
		"analysis":              analysis,
		"root_cause":            rootCause,
		"fix":                   fix,
		"recovery":              recovery,
		"status":                "handled",
		"handling_completed_at": time.Now().UTC(),
	}, nil
}

func (r *StubResolver) implementRecovery(report ErrorReport, fix Payload) (Payload, error) {
	recovery := Payload{
		"error_id":      fix["error_id"],
		"strategy_type": "fix_and_retry",
		"description":   "Implement fix and retry the failed operation",
		"status":        "completed",
		"recovery_time": time.Now().UTC(),
	}

	retry := Payload{
		"step_type":   "retry_operation",
		"description": "Retry the failed operation",
		"details":     Payload{"agent_id": report.AgentID, "task_id": report.TaskID},
		"status":      "completed",
	}
	switch fix["fix_type"] {
	case "code_change":
		recovery["steps"] = []Payload{
			{"step_type": "update_code", "description": "Apply code changes to fix the error", "status": "completed"},
			retry,
		}
	case "configuration_update":
		recovery["steps"] = []Payload{
			{"step_type": "update_configuration", "description": "Apply configuration changes", "status": "completed"},
			retry,
		}
	default:
		recovery["strategy_type"] = "fallback"
		recovery["description"] = "Apply generic fallback strategy"
		recovery["steps"] = []Payload{
			{"step_type": "reset_agent_state", "description": "Reset the agent to a known good state", "status": "completed"},
			retry,
		}
	}

	if r.Outputs != nil {
		if _, err := r.Outputs.StoreAgentOutput(report.TaskID, "error_handling", "recovery_strategy", recovery); err != nil {
			return nil, err
		}
	}
	if r.Errors != nil && report.ID != "" {
		resolution := str(fix["description"])
		if resolution == "" {
			resolution = "Error fixed"
		}
		if err := r.Errors.UpdateErrorStatus(report.ID, "resolved", resolution, time.Now().UTC()); err != nil {
			return nil, err
		}
	}
	return recovery, nil
}

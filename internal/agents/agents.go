// Package agents defines the external collaborator contracts for each
// pipeline role, plus stub implementations returning fixed example payloads.
// Production implementations (LLM-backed or rule-based) are injected into the
// orchestrator; nothing here is orchestration logic.
package agents

// Payload is a JSON-serializable tree (maps, lists, scalars) exchanged
// between agents.
type Payload = map[string]any

// TaskSpec is the plain-data task shape produced by the project manager and
// routed to downstream agents.
type TaskSpec struct {
	ID              string `json:"id,omitempty"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	AssignedAgent   string `json:"assigned_agent,omitempty"`
	Status          string `json:"status,omitempty"`
	Component       string `json:"component,omitempty"`
	Feature         string `json:"feature,omitempty"`
	Aspect          string `json:"aspect,omitempty"`
	EstimatedEffort string `json:"estimated_effort,omitempty"`
}

// ErrorReport is the plain-data error shape routed to the error-handling role.
type ErrorReport struct {
	ID           string    `json:"id,omitempty"`
	TaskID       string    `json:"task_id,omitempty"`
	AgentID      string    `json:"agent_id,omitempty"`
	Kind         ErrorKind `json:"kind"`
	ErrorMessage string    `json:"error_message"`
	StackTrace   string    `json:"stack_trace,omitempty"`
}

// TestSummary aggregates a test run.
type TestSummary struct {
	TotalTests     int     `json:"total_tests"`
	PassedTests    int     `json:"passed_tests"`
	FailedTests    int     `json:"failed_tests"`
	PassPercentage float64 `json:"pass_percentage"`
}

// TestRun holds the outcome of executing generated tests.
type TestRun struct {
	TaskID  string      `json:"task_id,omitempty"`
	Results []TestCase  `json:"results"`
	Summary TestSummary `json:"summary"`
}

// TestCase is a single executed test.
type TestCase struct {
	TestID        string `json:"test_id"`
	Kind          string `json:"kind"` // unit, integration, e2e
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Failed reports whether any test in the run failed.
func (r *TestRun) Failed() bool {
	return r.Summary.FailedTests > 0
}

// Outputs is the persistence hook agents use to record artifacts. Each
// output-producing operation persists its result at most once per invocation.
// A nil Outputs disables persistence.
type Outputs interface {
	StoreAgentOutput(taskID, agentID, outputType string, content any) (string, error)
}

// Planner breaks requirements into assigned tasks.
type Planner interface {
	ParseRequirements(requirements string) (Payload, error)
	CreateTaskBreakdown(parsed Payload) ([]TaskSpec, error)
	AssignTasks(tasks []TaskSpec) ([]TaskSpec, error)
}

// Developer turns a task into an implementation artifact.
type Developer interface {
	AnalyzeTask(task TaskSpec) (Payload, error)
	GenerateImplementation(task TaskSpec, analysis Payload) (Payload, error)
	DocumentCode(implementation Payload) (Payload, error)
}

// Designer produces UI implementations.
type Designer interface {
	DesignComponents(task TaskSpec) (Payload, error)
	ImplementResponsiveDesign(design Payload) (Payload, error)
	EnsureAccessibility(implementation Payload) (Payload, error)
}

// Integrator combines backend and frontend components.
type Integrator interface {
	AnalyzeInterfaces(components []Payload) (Payload, error)
	ImplementDataFlow(analysis Payload, task TaskSpec) (Payload, error)
	CreateAPIConnectors(analysis Payload, task TaskSpec) (Payload, error)
}

// Tester generates and executes tests against an implementation.
type Tester interface {
	GenerateTestCases(implementation, requirements Payload) (Payload, error)
	ExecuteTests(testCases Payload) (*TestRun, error)
	GenerateReport(run *TestRun) (Payload, error)
}

// Documenter produces technical documentation and user guides.
type Documenter interface {
	AnalyzeCodebase(files []Payload) (Payload, error)
	GenerateTechnicalDocs(analysis, task Payload) (Payload, error)
	CreateUserGuides(task, technicalDocs Payload) (Payload, error)
}

// Resolver diagnoses and resolves pipeline errors.
type Resolver interface {
	AnalyzeError(report ErrorReport) (Payload, error)
	IdentifyRootCause(analysis Payload, context Payload) (Payload, error)
	GenerateFix(rootCause Payload, context Payload) (Payload, error)
	HandleError(report ErrorReport, context Payload) (Payload, error)
}

// Roster bundles one collaborator per pipeline role.
type Roster struct {
	Planner    Planner
	Developer  Developer
	Designer   Designer
	Integrator Integrator
	Tester     Tester
	Documenter Documenter
	Resolver   Resolver
}

// StubRoster returns a roster of stub agents. Outputs may be nil. When
// outputs also satisfies ErrorUpdater, the resolver marks stored errors
// resolved after handling them.
func StubRoster(outputs Outputs) Roster {
	resolver := &StubResolver{Outputs: outputs}
	if updater, ok := outputs.(ErrorUpdater); ok {
		resolver.Errors = updater
	}
	return Roster{
		Planner:    &StubPlanner{Outputs: outputs},
		Developer:  &StubDeveloper{Outputs: outputs},
		Designer:   &StubDesigner{Outputs: outputs},
		Integrator: &StubIntegrator{Outputs: outputs},
		Tester:     &StubTester{Outputs: outputs, FailEveryNth: 3},
		Documenter: &StubDocumenter{Outputs: outputs},
		Resolver:   resolver,
	}
}

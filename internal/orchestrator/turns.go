package orchestrator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcus/crewd/internal/agents"
	"github.com/marcus/crewd/internal/bus"
	"github.com/marcus/crewd/internal/store"
)

// accepted message types per role. Each role reacts only to the types
// relevant to its position in the pipeline; everything else is drained from
// the mailbox without side effects.
var acceptedTypes = map[Role][]bus.MessageType{
	RoleProjectManager: {bus.TypeRequirements, bus.TypeDocumentation, bus.TypeErrorResolution},
	RoleDeveloper:      {bus.TypeTask, bus.TypeErrorResolution},
	RoleUIUX:           {bus.TypeTask, bus.TypeErrorResolution},
	RoleIntegration:    {bus.TypeUIImplementation, bus.TypeImplementation, bus.TypeErrorResolution},
	RoleTesting:        {bus.TypeImplementation, bus.TypeIntegratedSystem, bus.TypeErrorResolution},
	RoleDocumentation:  {bus.TypeTestedImplementation, bus.TypeErrorResolution},
	RoleErrorHandling:  {bus.TypeError},
}

func roleAccepts(role Role, msgType bus.MessageType) bool {
	for _, t := range acceptedTypes[role] {
		if t == msgType {
			return true
		}
	}
	return false
}

// runTurn processes one agent's unread messages. Errors raised by agent
// implementations never escape: they become error records, the agent is
// marked errored, and the scheduler is pointed at error_handling.
func (o *Orchestrator) runTurn(role Role, wf *WorkflowState) *turnResult {
	res := &turnResult{}

	agentState, ok := o.state.AgentByRole(role)
	if !ok {
		o.captureTurnError(res, nil, "", fmt.Errorf("no agent registered for role %s", role))
		return res
	}

	o.state.UpdateAgentStatus(agentState.AgentID, AgentWorking)
	o.emit(Event{Type: EventTurnStart, Role: role, AgentID: agentState.AgentID})

	messages := o.bus.UnreadMessages(agentState.AgentID, true)
	if len(messages) == 0 {
		o.state.UpdateAgentStatus(agentState.AgentID, AgentIdle)
		o.emit(Event{Type: EventTurnEnd, Role: role, AgentID: agentState.AgentID, Message: "no unread messages"})
		return res
	}

	var turnErr error
	var failedTaskID string
	for _, m := range messages {
		if roleAccepts(role, m.Type) {
			if err := o.dispatch(role, agentState, m, wf, res); err != nil {
				turnErr = err
				failedTaskID = m.TaskID
				o.bus.MarkProcessed(m.ID)
				break
			}
		}
		o.bus.MarkProcessed(m.ID)
		o.state.AddMessage(MessageEntry{
			ID:         m.ID,
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Type:       string(m.Type),
			Timestamp:  m.Timestamp,
		})
	}

	if turnErr != nil {
		o.captureTurnError(res, agentState, failedTaskID, turnErr)
		return res
	}

	o.state.UpdateAgentStatus(agentState.AgentID, AgentIdle)
	o.emit(Event{Type: EventTurnEnd, Role: role, AgentID: agentState.AgentID})
	return res
}

// captureTurnError converts an agent-turn failure into data: persisted error
// record, in-memory log entry, errored agent, and an error message routed to
// error_handling so the next turn can resolve it.
func (o *Orchestrator) captureTurnError(res *turnResult, agentState *AgentState, taskID string, err error) {
	agentID := ""
	if agentState != nil {
		agentID = agentState.AgentID
	}
	o.logger.ErrorCtx("agent turn failed", map[string]any{
		"agent_id": agentID,
		"error":    err.Error(),
	})

	errorID := ""
	if o.store != nil {
		id, storeErr := o.store.StoreError(taskID, agentID, string(agents.KindAgentFailure), err.Error(), "")
		if storeErr != nil {
			o.logger.WarnCtx("could not persist turn error", map[string]any{"error": storeErr.Error()})
		} else {
			errorID = id
		}
	}

	o.state.AddError(ErrorEntry{
		ID:      errorID,
		TaskID:  taskID,
		AgentID: agentID,
		Kind:    agents.KindAgentFailure,
		Message: err.Error(),
	})
	if agentState != nil {
		o.state.UpdateAgentStatus(agentState.AgentID, AgentError)
	}
	o.emit(Event{Type: EventError, AgentID: agentID, Error: err.Error()})

	if handler, ok := o.state.AgentByRole(RoleErrorHandling); ok && agentState != nil {
		report := agents.ErrorReport{
			ID:           errorID,
			TaskID:       taskID,
			AgentID:      agentID,
			Kind:         agents.KindAgentFailure,
			ErrorMessage: err.Error(),
		}
		o.sendMessage(agentState.AgentID, handler.AgentID, report, bus.TypeError, taskID)
	}
	res.next = RoleErrorHandling
}

// sendMessage routes a message through the bus and records it in the system
// state's message log.
func (o *Orchestrator) sendMessage(senderID, receiverID string, content any, msgType bus.MessageType, taskID string) string {
	opts := []bus.MessageOption{bus.WithProjectID(o.state.ProjectID)}
	if taskID != "" {
		opts = append(opts, bus.WithTaskID(taskID))
	}
	m := bus.NewMessage(senderID, receiverID, content, msgType, opts...)
	o.bus.Send(m)
	o.state.AddMessage(MessageEntry{
		ID:         m.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Type:       string(msgType),
		Timestamp:  m.Timestamp,
	})
	o.emit(Event{Type: EventMessageSent, AgentID: senderID, MessageID: m.ID, Message: string(msgType)})
	return m.ID
}

func (o *Orchestrator) dispatch(role Role, agentState *AgentState, m *bus.Message, wf *WorkflowState, res *turnResult) error {
	switch role {
	case RoleProjectManager:
		return o.turnProjectManager(agentState, m, res)
	case RoleDeveloper:
		return o.turnDeveloper(agentState, m, res)
	case RoleUIUX:
		return o.turnDesigner(agentState, m, res)
	case RoleIntegration:
		return o.turnIntegration(agentState, m, res)
	case RoleTesting:
		return o.turnTesting(agentState, m, res)
	case RoleDocumentation:
		return o.turnDocumentation(agentState, m, res)
	case RoleErrorHandling:
		return o.turnErrorHandling(agentState, m, wf, res)
	}
	return fmt.Errorf("no dispatch for role %s", role)
}

// turnProjectManager reacts to requirements by planning, persisting and
// assigning tasks, and to documentation by marking the workflow complete.
func (o *Orchestrator) turnProjectManager(agentState *AgentState, m *bus.Message, res *turnResult) error {
	switch m.Type {
	case bus.TypeDocumentation:
		o.state.SetStatus(SystemCompleted)
		o.state.SetPhase("completed")
		res.next = RoleProjectManager
		return nil
	case bus.TypeErrorResolution:
		return nil
	}

	requirements := requirementsText(m.Content)
	parsed, err := o.roster.Planner.ParseRequirements(requirements)
	if err != nil {
		return fmt.Errorf("parse requirements: %w", err)
	}
	breakdown, err := o.roster.Planner.CreateTaskBreakdown(parsed)
	if err != nil {
		return fmt.Errorf("create task breakdown: %w", err)
	}
	assigned, err := o.roster.Planner.AssignTasks(breakdown)
	if err != nil {
		return fmt.Errorf("assign tasks: %w", err)
	}

	statusAssigned := store.TaskAssigned
	for i, task := range assigned {
		taskID, err := o.store.CreateTask(o.state.ProjectID, task.Title, task.Description, task.AssignedAgent)
		if err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		if err := o.store.UpdateTask(taskID, store.TaskUpdate{Status: &statusAssigned}); err != nil {
			return fmt.Errorf("mark task assigned: %w", err)
		}
		task.ID = taskID
		task.Status = store.TaskAssigned
		assigned[i] = task

		o.state.AddTask(&TaskRecord{
			ID:            taskID,
			ProjectID:     o.state.ProjectID,
			Title:         task.Title,
			AssignedAgent: task.AssignedAgent,
			Status:        task.Status,
			CreatedAt:     time.Now().UTC(),
		})

		role, err := ParseRole(task.AssignedAgent)
		if err != nil {
			continue
		}
		target, ok := o.state.AgentByRole(role)
		if !ok {
			continue
		}
		o.state.AssignTask(target.AgentID, taskID)
		o.sendMessage(agentState.AgentID, target.AgentID, task, bus.TypeTask, taskID)
	}
	res.tasks = append(res.tasks, assigned...)

	res.next = RoleDeveloper
	for _, task := range assigned {
		if role, err := ParseRole(task.AssignedAgent); err == nil {
			res.next = role
			break
		}
	}
	return nil
}

// turnDeveloper runs analyze, generate, document for each task message and
// forwards the implementation to testing.
func (o *Orchestrator) turnDeveloper(agentState *AgentState, m *bus.Message, res *turnResult) error {
	if m.Type == bus.TypeErrorResolution {
		return nil
	}
	task := taskSpecOf(m.Content)

	analysis, err := o.roster.Developer.AnalyzeTask(task)
	if err != nil {
		return fmt.Errorf("analyze task: %w", err)
	}
	implementation, err := o.roster.Developer.GenerateImplementation(task, analysis)
	if err != nil {
		return fmt.Errorf("generate implementation: %w", err)
	}
	implementation, err = o.roster.Developer.DocumentCode(implementation)
	if err != nil {
		return fmt.Errorf("document code: %w", err)
	}
	res.implementations = append(res.implementations, implementation)

	o.completeTask(task.ID)
	if tester, ok := o.state.AgentByRole(RoleTesting); ok {
		o.sendMessage(agentState.AgentID, tester.AgentID, implementation, bus.TypeImplementation, task.ID)
	}
	res.next = RoleTesting
	return nil
}

// turnDesigner runs design, responsive implementation and the accessibility
// pass, then forwards the UI implementation to integration.
func (o *Orchestrator) turnDesigner(agentState *AgentState, m *bus.Message, res *turnResult) error {
	if m.Type == bus.TypeErrorResolution {
		return nil
	}
	task := taskSpecOf(m.Content)

	design, err := o.roster.Designer.DesignComponents(task)
	if err != nil {
		return fmt.Errorf("design components: %w", err)
	}
	implementation, err := o.roster.Designer.ImplementResponsiveDesign(design)
	if err != nil {
		return fmt.Errorf("implement responsive design: %w", err)
	}
	verified, err := o.roster.Designer.EnsureAccessibility(implementation)
	if err != nil {
		return fmt.Errorf("ensure accessibility: %w", err)
	}
	res.uiImplementations = append(res.uiImplementations, verified)

	o.completeTask(task.ID)
	if integrator, ok := o.state.AgentByRole(RoleIntegration); ok {
		o.sendMessage(agentState.AgentID, integrator.AgentID, verified, bus.TypeUIImplementation, task.ID)
	}
	res.next = RoleIntegration
	return nil
}

// turnIntegration combines the received implementation with its counterpart
// side of the system and forwards the integrated result to testing.
func (o *Orchestrator) turnIntegration(agentState *AgentState, m *bus.Message, res *turnResult) error {
	if m.Type == bus.TypeErrorResolution {
		return nil
	}
	payload := payloadOf(m.Content)
	task := agents.TaskSpec{ID: m.TaskID}

	components := []agents.Payload{
		{"name": "Frontend", "type": "frontend"},
		{"name": "Backend", "type": "backend"},
	}
	analysis, err := o.roster.Integrator.AnalyzeInterfaces(components)
	if err != nil {
		return fmt.Errorf("analyze interfaces: %w", err)
	}
	dataFlow, err := o.roster.Integrator.ImplementDataFlow(analysis, task)
	if err != nil {
		return fmt.Errorf("implement data flow: %w", err)
	}
	connectors, err := o.roster.Integrator.CreateAPIConnectors(analysis, task)
	if err != nil {
		return fmt.Errorf("create api connectors: %w", err)
	}

	integrated := agents.Payload{
		"task_id":        m.TaskID,
		"source":         payload,
		"analysis":       analysis,
		"data_flow":      dataFlow,
		"api_connectors": connectors,
	}
	res.integratedSystems = append(res.integratedSystems, integrated)

	o.completeTask(m.TaskID)
	if tester, ok := o.state.AgentByRole(RoleTesting); ok {
		o.sendMessage(agentState.AgentID, tester.AgentID, integrated, bus.TypeIntegratedSystem, m.TaskID)
	}
	res.next = RoleTesting
	return nil
}

// turnTesting generates and executes tests against the received
// implementation. A fully-passing run proceeds to documentation; any failure
// is persisted as a TestFailure error and routed to error_handling.
func (o *Orchestrator) turnTesting(agentState *AgentState, m *bus.Message, res *turnResult) error {
	if m.Type == bus.TypeErrorResolution {
		return nil
	}
	implementation := payloadOf(m.Content)
	if _, ok := implementation["task_id"]; !ok {
		implementation["task_id"] = m.TaskID
	}

	testCases, err := o.roster.Tester.GenerateTestCases(implementation, agents.Payload{
		"requirements": o.requirements,
	})
	if err != nil {
		return fmt.Errorf("generate test cases: %w", err)
	}
	run, err := o.roster.Tester.ExecuteTests(testCases)
	if err != nil {
		return fmt.Errorf("execute tests: %w", err)
	}
	report, err := o.roster.Tester.GenerateReport(run)
	if err != nil {
		return fmt.Errorf("generate test report: %w", err)
	}
	res.testReports = append(res.testReports, report)

	if run.Failed() {
		message := fmt.Sprintf("%d of %d tests failed", run.Summary.FailedTests, run.Summary.TotalTests)
		errorID := ""
		if id, storeErr := o.store.StoreError(m.TaskID, agentState.AgentID, string(agents.KindTestFailure), message, ""); storeErr != nil {
			o.logger.WarnCtx("could not persist test failure", map[string]any{"error": storeErr.Error()})
		} else {
			errorID = id
		}
		o.state.AddError(ErrorEntry{
			ID:      errorID,
			TaskID:  m.TaskID,
			AgentID: agentState.AgentID,
			Kind:    agents.KindTestFailure,
			Message: message,
		})

		if handler, ok := o.state.AgentByRole(RoleErrorHandling); ok {
			report := agents.ErrorReport{
				ID:           errorID,
				TaskID:       m.TaskID,
				AgentID:      agentState.AgentID,
				Kind:         agents.KindTestFailure,
				ErrorMessage: message,
			}
			o.sendMessage(agentState.AgentID, handler.AgentID, report, bus.TypeError, m.TaskID)
		}
		res.next = RoleErrorHandling
		return nil
	}

	if documenter, ok := o.state.AgentByRole(RoleDocumentation); ok {
		o.sendMessage(agentState.AgentID, documenter.AgentID, agents.Payload{
			"task_id":        m.TaskID,
			"implementation": implementation,
			"test_report":    report,
		}, bus.TypeTestedImplementation, m.TaskID)
	}
	res.next = RoleDocumentation
	return nil
}

// turnDocumentation produces technical docs and user guides, then reports
// back to the project manager.
func (o *Orchestrator) turnDocumentation(agentState *AgentState, m *bus.Message, res *turnResult) error {
	if m.Type == bus.TypeErrorResolution {
		return nil
	}
	payload := payloadOf(m.Content)

	files := filesOf(payload)
	analysis, err := o.roster.Documenter.AnalyzeCodebase(files)
	if err != nil {
		return fmt.Errorf("analyze codebase: %w", err)
	}
	task := agents.Payload{"id": m.TaskID}
	technicalDocs, err := o.roster.Documenter.GenerateTechnicalDocs(analysis, task)
	if err != nil {
		return fmt.Errorf("generate technical docs: %w", err)
	}
	guides, err := o.roster.Documenter.CreateUserGuides(task, technicalDocs)
	if err != nil {
		return fmt.Errorf("create user guides: %w", err)
	}

	docs := agents.Payload{
		"task_id":                 m.TaskID,
		"technical_documentation": technicalDocs,
		"user_guides":             guides,
	}
	res.documentation = append(res.documentation, docs)

	o.completeTask(m.TaskID)
	if pm, ok := o.state.AgentByRole(RoleProjectManager); ok {
		o.sendMessage(agentState.AgentID, pm.AgentID, docs, bus.TypeDocumentation, m.TaskID)
	}
	res.next = RoleProjectManager
	return nil
}

// turnErrorHandling resolves the reported error, replies to the original
// sender and the project manager, and returns control to the role that
// raised the error.
func (o *Orchestrator) turnErrorHandling(agentState *AgentState, m *bus.Message, wf *WorkflowState, res *turnResult) error {
	report := errorReportOf(m.Content)
	if report.TaskID == "" {
		report.TaskID = m.TaskID
	}

	result, err := o.roster.Resolver.HandleError(report, agents.Payload{
		"project_id": o.state.ProjectID,
	})
	if err != nil {
		return fmt.Errorf("handle error: %w", err)
	}
	res.errorHandlingResults = append(res.errorHandlingResults, result)

	if report.ID != "" {
		resolution := "Error fixed"
		if fix, ok := result["fix"].(agents.Payload); ok {
			if desc, ok := fix["description"].(string); ok && desc != "" {
				resolution = desc
			}
		}
		if err := o.store.UpdateErrorStatus(report.ID, store.ErrorResolved, resolution, time.Now().UTC()); err != nil {
			o.logger.WarnCtx("could not resolve stored error", map[string]any{
				"error_id": report.ID,
				"error":    err.Error(),
			})
		}
	}

	resolution := agents.Payload{
		"error_id": report.ID,
		"status":   "resolved",
		"result":   result,
	}
	o.sendMessage(agentState.AgentID, m.SenderID, resolution, bus.TypeErrorResolution, report.TaskID)
	if pm, ok := o.state.AgentByRole(RoleProjectManager); ok && pm.AgentID != m.SenderID {
		o.sendMessage(agentState.AgentID, pm.AgentID, resolution, bus.TypeErrorResolution, report.TaskID)
	}

	if origin, ok := RoleOfAgentID(report.AgentID); ok {
		res.next = origin
	} else {
		res.next = RoleProjectManager
	}
	return nil
}

// completeTask marks a persisted task completed; bookkeeping only, failures
// are logged and ignored.
func (o *Orchestrator) completeTask(taskID string) {
	if taskID == "" || o.store == nil {
		return
	}
	status := store.TaskCompleted
	if err := o.store.UpdateTask(taskID, store.TaskUpdate{Status: &status}); err != nil {
		o.logger.WarnCtx("could not complete task", map[string]any{
			"task_id": taskID,
			"error":   err.Error(),
		})
	}
}

// requirementsText extracts the requirements string from a message payload.
func requirementsText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case agents.Payload:
		if s, ok := v["requirements"].(string); ok {
			return s
		}
	}
	return fmt.Sprint(content)
}

// taskSpecOf coerces a message payload into a TaskSpec.
func taskSpecOf(content any) agents.TaskSpec {
	switch v := content.(type) {
	case agents.TaskSpec:
		return v
	case *agents.TaskSpec:
		return *v
	default:
		var task agents.TaskSpec
		if raw, err := json.Marshal(content); err == nil {
			_ = json.Unmarshal(raw, &task)
		}
		return task
	}
}

// payloadOf coerces a message payload into a plain map.
func payloadOf(content any) agents.Payload {
	switch v := content.(type) {
	case agents.Payload:
		return v
	default:
		out := agents.Payload{}
		if raw, err := json.Marshal(content); err == nil {
			_ = json.Unmarshal(raw, &out)
		}
		if len(out) == 0 {
			out["content"] = fmt.Sprint(content)
		}
		return out
	}
}

// errorReportOf coerces a message payload into an ErrorReport.
func errorReportOf(content any) agents.ErrorReport {
	switch v := content.(type) {
	case agents.ErrorReport:
		return v
	case *agents.ErrorReport:
		return *v
	default:
		var report agents.ErrorReport
		if raw, err := json.Marshal(content); err == nil {
			_ = json.Unmarshal(raw, &report)
		}
		return report
	}
}

// filesOf extracts a file list from an implementation payload for codebase
// analysis, defaulting to a single placeholder entry.
func filesOf(payload agents.Payload) []agents.Payload {
	implementation, _ := payload["implementation"].(agents.Payload)
	if implementation == nil {
		implementation = payload
	}
	var files []agents.Payload
	switch v := implementation["files"].(type) {
	case []agents.Payload:
		files = v
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		files = []agents.Payload{{"path": "example.go", "content": "func ExampleFunction() {}"}}
	}
	return files
}

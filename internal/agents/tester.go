package agents

import "time"

// StubTester generates a fixed suite of unit, integration and end-to-end
// tests and simulates their execution. FailEveryNth controls the simulated
// failures: every nth integration test (counting from the first) fails with
// "Expected value not received", and every nth+1 end-to-end test fails with
// "Timeout occurred". Zero disables simulated failures.
type StubTester struct {
	Outputs      Outputs
	FailEveryNth int
}

func (t *StubTester) GenerateTestCases(implementation, requirements Payload) (Payload, error) {
	taskID, _ := implementation["task_id"].(string)
	testCases := Payload{
		"task_id": taskID,
		"unit_tests": []Payload{
			{
				"id":              "test-1",
				"name":            "Test example function returns expected string",
				"type":            "unit",
				"expected_result": "pass",
			},
		},
		"integration_tests": []Payload{
			{
				"id":              "integration-test-1",
				"name":            "Test component interaction",
				"type":            "integration",
				"expected_result": "pass",
			},
		},
		"end_to_end_tests": []Payload{
			{
				"id":              "e2e-test-1",
				"name":            "Test complete user flow",
				"type":            "e2e",
				"expected_result": "pass",
			},
		},
		"created_at": time.Now().UTC(),
	}
	if t.Outputs != nil {
		if _, err := t.Outputs.StoreAgentOutput(taskID, "testing", "test_cases", testCases); err != nil {
			return nil, err
		}
	}
	return testCases, nil
}

func (t *StubTester) ExecuteTests(testCases Payload) (*TestRun, error) {
	taskID, _ := testCases["task_id"].(string)
	run := &TestRun{TaskID: taskID}

	for _, tc := range payloadSlice(testCases["unit_tests"]) {
		run.Results = append(run.Results, TestCase{
			TestID: str(tc["id"]),
			Kind:   "unit",
			Status: "pass",
		})
	}
	for i, tc := range payloadSlice(testCases["integration_tests"]) {
		result := TestCase{TestID: str(tc["id"]), Kind: "integration", Status: "pass"}
		if t.FailEveryNth > 0 && i%t.FailEveryNth == 0 {
			result.Status = "fail"
			result.FailureReason = "Expected value not received"
		}
		run.Results = append(run.Results, result)
	}
	for i, tc := range payloadSlice(testCases["end_to_end_tests"]) {
		result := TestCase{TestID: str(tc["id"]), Kind: "e2e", Status: "pass"}
		if t.FailEveryNth > 0 && i%(t.FailEveryNth+1) == 0 {
			result.Status = "fail"
			result.FailureReason = "Timeout occurred"
		}
		run.Results = append(run.Results, result)
	}

	run.Summary.TotalTests = len(run.Results)
	for _, result := range run.Results {
		if result.Status == "pass" {
			run.Summary.PassedTests++
		}
	}
	run.Summary.FailedTests = run.Summary.TotalTests - run.Summary.PassedTests
	if run.Summary.TotalTests > 0 {
		run.Summary.PassPercentage = float64(run.Summary.PassedTests) / float64(run.Summary.TotalTests) * 100
	}
	return run, nil
}

func (t *StubTester) GenerateReport(run *TestRun) (Payload, error) {
	var failed []Payload
	for _, result := range run.Results {
		if result.Status == "fail" {
			failed = append(failed, Payload{
				"test_id":        result.TestID,
				"type":           result.Kind,
				"failure_reason": result.FailureReason,
			})
		}
	}

	recommendations := []string{"No issues detected"}
	if len(failed) > 0 {
		recommendations = []string{
			"Fix integration issue in component X",
			"Improve error handling in module Y",
		}
	}

	report := Payload{
		"task_id":          run.TaskID,
		"generated_at":     time.Now().UTC(),
		"summary":          run.Summary,
		"detailed_results": run.Results,
		"failed_tests":     failed,
		"recommendations":  recommendations,
		"code_quality_assessment": Payload{
			"performance_metrics":   "Good",
			"maintainability_score": "High",
		},
	}
	if t.Outputs != nil {
		if _, err := t.Outputs.StoreAgentOutput(run.TaskID, "testing", "test_report", report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func payloadSlice(v any) []Payload {
	switch vv := v.(type) {
	case []Payload:
		return vv
	case []any:
		out := make([]Payload, 0, len(vv))
		for _, item := range vv {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

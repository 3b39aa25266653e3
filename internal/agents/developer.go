package agents

import "time"

// StubDeveloper returns fixed example implementations. A real collaborator
// would generate code from the task text.
type StubDeveloper struct {
	Outputs Outputs
}

func (d *StubDeveloper) AnalyzeTask(task TaskSpec) (Payload, error) {
	return Payload{
		"task_id":                 task.ID,
		"components_needed":       []string{},
		"language_frameworks":     []string{},
		"implementation_approach": "",
		"estimated_complexity":    "medium",
	}, nil
}

func (d *StubDeveloper) GenerateImplementation(task TaskSpec, analysis Payload) (Payload, error) {
	const code = "// Example implementation\nfunc ExampleFunction() string {\n\treturn \"Hello, world!\"\n}"
	implementation := Payload{
		"task_id":  task.ID,
		"code":     code,
		"language": "go",
		"files": []Payload{
			{"path": "example.go", "content": code, "language": "go"},
		},
		"created_at": time.Now().UTC(),
	}
	if d.Outputs != nil {
		if _, err := d.Outputs.StoreAgentOutput(task.ID, "developer", "implementation_code", implementation); err != nil {
			return nil, err
		}
	}
	return implementation, nil
}

func (d *StubDeveloper) DocumentCode(implementation Payload) (Payload, error) {
	if files, ok := implementation["files"].([]Payload); ok {
		for _, file := range files {
			if content, ok := file["content"].(string); ok {
				file["content"] = "// Package example implements the task deliverable.\n\n" + content
			}
		}
	}
	implementation["documentation_added"] = true
	return implementation, nil
}

package agents

import (
	"fmt"
	"strings"
)

// StubPlanner is a keyword-driven project manager. It categorizes
// requirements text, expands the categories into tasks, and assigns each
// task to a downstream role.
type StubPlanner struct {
	Outputs Outputs
}

var (
	componentKeywords = []string{"database", "frontend", "backend", "ui", "api", "authentication", "storage"}
	featureKeywords   = []string{"login", "signup", "search", "dashboard", "analytics", "profile", "settings"}
	techKeywords      = []string{"python", "javascript", "react", "node", "sql", "nosql", "rest", "graphql", "go"}
)

// ParseRequirements extracts components, features and technologies from raw
// requirements text. Empty categories fall back to sensible defaults so a
// breakdown is always possible.
func (p *StubPlanner) ParseRequirements(requirements string) (Payload, error) {
	lower := strings.ToLower(requirements)

	match := func(keywords []string) []string {
		var found []string
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				found = append(found, kw)
			}
		}
		return found
	}

	components := match(componentKeywords)
	features := match(featureKeywords)
	technologies := match(techKeywords)

	if len(components) == 0 {
		components = []string{"frontend", "backend", "database"}
	}
	if len(features) == 0 {
		features = []string{"core functionality"}
	}
	if len(technologies) == 0 {
		technologies = []string{"go"}
	}

	name := "New Project"
	if len(requirements) > 10 {
		end := strings.Index(requirements, ".")
		if end < 0 || end > 40 {
			end = min(len(requirements), 40)
		}
		name = strings.TrimSpace(requirements[:end])
	}

	description := requirements
	if len(description) > 200 {
		description = description[:200]
	}

	return Payload{
		"project_name":        name,
		"project_description": description,
		"components":          components,
		"features":            features,
		"technologies":        technologies,
		"constraints":         []string{},
	}, nil
}

// CreateTaskBreakdown expands parsed requirements into tasks: one per
// component, one per feature, plus a testing and a documentation task.
func (p *StubPlanner) CreateTaskBreakdown(parsed Payload) ([]TaskSpec, error) {
	components := stringSlice(parsed["components"])
	features := stringSlice(parsed["features"])
	description, _ := parsed["project_description"].(string)

	var tasks []TaskSpec

	for i, component := range components {
		task := TaskSpec{
			ID:              fmt.Sprintf("component-%d", i+1),
			Component:       component,
			EstimatedEffort: "medium",
		}
		switch strings.ToLower(component) {
		case "frontend", "ui":
			task.Title = fmt.Sprintf("Design and implement %s interface", component)
			task.Description = fmt.Sprintf("Create the user interface for the %s component based on the requirements. Ensure it is responsive and user-friendly.", component)
		case "backend", "api":
			task.Title = fmt.Sprintf("Develop %s services", component)
			task.Description = fmt.Sprintf("Implement the %s services including business logic and API endpoints as specified in requirements.", component)
			task.EstimatedEffort = "high"
		case "database":
			task.Title = fmt.Sprintf("Design and implement %s schema", component)
			task.Description = "Design the database schema and implement data models. Create necessary tables, indexes, and relationships."
		default:
			task.Title = fmt.Sprintf("Implement %s component", component)
			task.Description = fmt.Sprintf("Develop the %s component according to the project requirements.", component)
		}
		tasks = append(tasks, task)
	}

	for i, feature := range features {
		tasks = append(tasks, TaskSpec{
			ID:              fmt.Sprintf("feature-%d", i+1),
			Title:           fmt.Sprintf("Implement %s feature", feature),
			Description:     fmt.Sprintf("Develop the %s feature including UI, backend logic, and database integration as needed.", feature),
			Feature:         feature,
			EstimatedEffort: "medium",
		})
	}

	tasks = append(tasks,
		TaskSpec{
			ID:              "testing-1",
			Title:           "Create test plan and test cases",
			Description:     "Develop a comprehensive test plan and test cases covering all components and features.",
			Aspect:          "testing",
			EstimatedEffort: "medium",
		},
		TaskSpec{
			ID:              "documentation-1",
			Title:           "Create project documentation",
			Description:     "Create comprehensive documentation for the project including setup instructions, user guide, and API documentation.",
			Aspect:          "documentation",
			EstimatedEffort: "medium",
		},
	)

	if len(tasks) == 2 && len(components) == 0 && len(features) == 0 {
		tasks = defaultTasks(description)
	}

	return tasks, nil
}

func defaultTasks(description string) []TaskSpec {
	return []TaskSpec{
		{ID: "default-1", Title: "Implement core functionality", Description: "Develop the main functionality of the project: " + description, EstimatedEffort: "high"},
		{ID: "default-2", Title: "Create user interface", Description: "Design and implement the user interface for the application.", EstimatedEffort: "medium"},
		{ID: "default-3", Title: "Test application", Description: "Create and execute test cases for the application.", EstimatedEffort: "medium"},
		{ID: "default-4", Title: "Create documentation", Description: "Create user and developer documentation for the application.", EstimatedEffort: "low"},
	}
}

// AssignTasks picks a handling role for each task. Aspect takes precedence
// over component; tasks with neither are routed by title/description keywords.
func (p *StubPlanner) AssignTasks(tasks []TaskSpec) ([]TaskSpec, error) {
	assigned := make([]TaskSpec, 0, len(tasks))
	for _, task := range tasks {
		switch {
		case task.Aspect != "":
			switch strings.ToLower(task.Aspect) {
			case "testing":
				task.AssignedAgent = "testing"
			case "documentation":
				task.AssignedAgent = "documentation"
			default:
				task.AssignedAgent = "developer"
			}
		case task.Component != "":
			switch strings.ToLower(task.Component) {
			case "frontend", "ui", "interface":
				task.AssignedAgent = "ui_ux"
			case "integration", "api", "connection":
				task.AssignedAgent = "integration"
			default:
				task.AssignedAgent = "developer"
			}
		default:
			task.AssignedAgent = routeByKeywords(task)
		}
		task.Status = "assigned"
		assigned = append(assigned, task)
	}
	return assigned, nil
}

func routeByKeywords(task TaskSpec) string {
	text := strings.ToLower(task.Title + " " + task.Description)
	contains := func(terms ...string) bool {
		for _, term := range terms {
			if strings.Contains(text, term) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("ui", "interface", "design", "layout", "front", "user experience"):
		return "ui_ux"
	case contains("test", "verify", "validate", "quality"):
		return "testing"
	case contains("document", "manual", "guide", "help", "tutorial"):
		return "documentation"
	case contains("connect", "integrate", "api", "service", "microservice"):
		return "integration"
	default:
		return "developer"
	}
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

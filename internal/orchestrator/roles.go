package orchestrator

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role names one of the seven fixed agent types in the pipeline.
type Role string

const (
	RoleProjectManager Role = "project_manager"
	RoleDeveloper      Role = "developer"
	RoleUIUX           Role = "ui_ux"
	RoleIntegration    Role = "integration"
	RoleTesting        Role = "testing"
	RoleDocumentation  Role = "documentation"
	RoleErrorHandling  Role = "error_handling"
)

// SenderSystem is the synthetic sender id used for orchestrator-originated
// messages such as the initial requirements.
const SenderSystem = "system"

// Roles returns all pipeline roles in their canonical order.
func Roles() []Role {
	return []Role{
		RoleProjectManager,
		RoleDeveloper,
		RoleUIUX,
		RoleIntegration,
		RoleTesting,
		RoleDocumentation,
		RoleErrorHandling,
	}
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	switch role {
	case RoleProjectManager, RoleDeveloper, RoleUIUX, RoleIntegration,
		RoleTesting, RoleDocumentation, RoleErrorHandling:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// NewAgentID generates an agent id of the form {role}_{8-hex}.
func NewAgentID(role Role) string {
	return string(role) + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// RoleOfAgentID extracts the role prefix from a {role}_{hex} agent id.
func RoleOfAgentID(agentID string) (Role, bool) {
	idx := strings.LastIndex(agentID, "_")
	if idx <= 0 {
		return "", false
	}
	role, err := ParseRole(agentID[:idx])
	if err != nil {
		return "", false
	}
	return role, true
}

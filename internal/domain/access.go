package domain

// AccessInput is the document handed to the policy engine for each API
// request.
type AccessInput struct {
	TenantID string            `json:"tenant_id"`
	ActorID  string            `json:"actor_id"`
	Roles    []string          `json:"roles"`
	Action   string            `json:"action"`
	Resource map[string]string `json:"resource,omitempty"`
}

// AccessDecision is the policy verdict. Deny reasons are ordered
// deterministically so identical inputs produce identical decisions.
type AccessDecision struct {
	Allow bool         `json:"allow"`
	Deny  []AccessDeny `json:"deny"`
}

type AccessDeny struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

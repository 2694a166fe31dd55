package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

// requireAccess gates the request through the policy engine. With no
// engine configured every request passes; with one configured a policy
// error denies the request rather than letting it through.
func (s *Server) requireAccess(c *gin.Context, action, tenantID string) bool {
	if s.policyInitErr != nil {
		writeErrorCode(c, http.StatusInternalServerError, "POLICY_CONFIG_ERROR", "policy configuration error")
		return false
	}
	if s.policy == nil {
		return true
	}

	input := domain.AccessInput{
		TenantID: tenantID,
		ActorID:  strings.TrimSpace(c.GetHeader("X-Actor-ID")),
		Roles:    splitRoles(c.GetHeader("X-Roles")),
		Action:   action,
	}
	decision, err := s.policy.Evaluate(c.Request.Context(), input)
	if err != nil {
		s.log.Error("policy evaluation failed", "action", action, "err", err)
		writeErrorCode(c, http.StatusInternalServerError, "POLICY_ERROR", "policy evaluation failed")
		return false
	}
	if !decision.Allow {
		code := "FORBIDDEN"
		if len(decision.Deny) > 0 {
			code = decision.Deny[0].Code
		}
		writeErrorCode(c, http.StatusForbidden, code, "forbidden")
		return false
	}
	return true
}

func splitRoles(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		if role := strings.TrimSpace(part); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

package policyopa

import "github.com/open-policy-agent/opa/ast"

// allowedBuiltins is the closed set available to access bundles. Access
// decisions are pure functions over the request input: comparisons, set
// and string operations, and message formatting. Anything that reads the
// outside world (time, http, rand, net, opa.runtime) stays out so the
// same input always yields the same decision.
var allowedBuiltins = map[string]struct{}{
	"concat":       {},
	"contains":     {},
	"count":        {},
	"endswith":     {},
	"eq":           {},
	"equal":        {},
	"lower":        {},
	"max":          {},
	"min":          {},
	"neq":          {},
	"object.get":   {},
	"object.union": {},
	"replace":      {},
	"sort":         {},
	"split":        {},
	"sprintf":      {},
	"startswith":   {},
	"substring":    {},
	"sum":          {},
	"trim":         {},
	"upper":        {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(builtins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}

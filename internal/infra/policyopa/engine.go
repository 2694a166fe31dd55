// Package policyopa evaluates API access policies with OPA. Policies are
// loaded from a bundle directory at startup and run against a restricted
// builtin set, so a bundle cannot reach the network, the clock, or any
// other source of nondeterminism.
package policyopa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

const defaultQuery = "data.timeline.access.result"

type Engine struct {
	query    rego.PreparedEvalQuery
	bundleID string
}

func NewEngineFromBundlePath(ctx context.Context, bundlePath, bundleID string) (*Engine, error) {
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)
	compiler := ast.NewCompiler().WithCapabilities(capabilities)

	r := rego.New(
		rego.Query(defaultQuery),
		rego.Compiler(compiler),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{bundlePath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	if err := assertNoForbiddenBuiltins(compiler); err != nil {
		return nil, err
	}

	return &Engine{query: prepared, bundleID: bundleID}, nil
}

func (e *Engine) BundleID() string {
	return e.bundleID
}

// Evaluate runs the access query. A nil engine fails closed.
func (e *Engine) Evaluate(ctx context.Context, input domain.AccessInput) (domain.AccessDecision, error) {
	if e == nil {
		return domain.AccessDecision{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.AccessDecision{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.AccessDecision{}, errors.New("empty policy result")
	}
	decision, err := decodeDecision(results[0].Expressions[0].Value)
	if err != nil {
		return domain.AccessDecision{}, err
	}
	normalizeDecision(&decision)
	return decision, nil
}

func decodeDecision(value any) (domain.AccessDecision, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return domain.AccessDecision{}, err
	}
	var decision domain.AccessDecision
	if err := json.Unmarshal(payload, &decision); err != nil {
		return domain.AccessDecision{}, err
	}
	return decision, nil
}

func normalizeDecision(decision *domain.AccessDecision) {
	if decision == nil {
		return
	}
	sort.Slice(decision.Deny, func(i, j int) bool {
		if decision.Deny[i].Code == decision.Deny[j].Code {
			return decision.Deny[i].Message < decision.Deny[j].Message
		}
		return decision.Deny[i].Code < decision.Deny[j].Code
	})
}

func assertNoForbiddenBuiltins(compiler *ast.Compiler) error {
	if compiler == nil {
		return errors.New("policy compiler is nil")
	}
	forbidden := make(map[string]struct{})
	for _, module := range compiler.Modules {
		ast.WalkTerms(module, func(term *ast.Term) bool {
			call, ok := term.Value.(ast.Call)
			if !ok || len(call) == 0 || call[0] == nil {
				return false
			}
			name := call[0].Value.String()
			if _, ok := ast.BuiltinMap[name]; !ok {
				return false
			}
			if _, ok := allowedBuiltins[name]; ok {
				return false
			}
			forbidden[name] = struct{}{}
			return false
		})
	}
	if len(forbidden) == 0 {
		return nil
	}
	names := make([]string, 0, len(forbidden))
	for name := range forbidden {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Errorf("forbidden builtins: %s", strings.Join(names, ", "))
}

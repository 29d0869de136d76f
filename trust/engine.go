// Package trust evaluates operator-supplied Rego policies that whitelist
// or silence access points before verdicts reach the alert sink.
package trust

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/apwatch/apwatch/history"
	"github.com/apwatch/apwatch/types"
)

// Input is the document policies evaluate against.
type Input struct {
	Verdict types.Verdict   `json:"verdict"`
	Record  *history.Record `json:"record,omitempty"`
}

// Decision is the aggregate policy outcome for one verdict.
type Decision struct {
	// Trusted downgrades the verdict to benign/info before delivery.
	Trusted bool `json:"trusted"`
	// Ignore drops the verdict entirely.
	Ignore bool `json:"ignore"`
	// Policies lists which loaded policies matched.
	Policies []string `json:"policies,omitempty"`
}

// Engine holds compiled Rego queries. Policies live under the
// data.apwatch namespace and may define boolean rules `trusted` and
// `ignore`.
type Engine struct {
	queries map[string]rego.PreparedEvalQuery
	logger  zerolog.Logger
}

// NewEngine creates an empty policy engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		queries: make(map[string]rego.PreparedEvalQuery),
		logger:  logger,
	}
}

// LoadPolicy compiles and registers one Rego module.
func (e *Engine) LoadPolicy(ctx context.Context, name, regoCode string) error {
	query := rego.New(
		rego.Query("data.apwatch"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile policy %s: %w", name, err)
	}

	e.queries[name] = prepared
	e.logger.Info().Str("policy", name).Msg("trust policy loaded")
	return nil
}

// LoadDir loads every *.rego file in dir. A missing directory is not an
// error; running without policies is the normal case.
func (e *Engine) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read policy directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".rego") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		code, err := os.ReadFile(path) // #nosec G304 -- operator-chosen policy dir
		if err != nil {
			return fmt.Errorf("failed to read policy %s: %w", path, err)
		}
		if err := e.LoadPolicy(ctx, entry.Name(), string(code)); err != nil {
			return err
		}
	}
	return nil
}

// Empty reports whether no policies are loaded.
func (e *Engine) Empty() bool {
	return len(e.queries) == 0
}

// Evaluate runs every loaded policy over the input and merges results.
// Policy evaluation errors fail open: the verdict passes through
// unmodified rather than being silently trusted.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	var decision Decision

	for name, query := range e.queries {
		results, err := query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			return Decision{}, fmt.Errorf("policy %s evaluation failed: %w", name, err)
		}

		matched := false
		for _, result := range results {
			for _, expr := range result.Expressions {
				doc, ok := expr.Value.(map[string]interface{})
				if !ok {
					continue
				}
				if boolField(doc, "trusted") {
					decision.Trusted = true
					matched = true
				}
				if boolField(doc, "ignore") {
					decision.Ignore = true
					matched = true
				}
			}
		}
		if matched {
			decision.Policies = append(decision.Policies, name)
		}
	}

	return decision, nil
}

// boolField reads a boolean rule result out of the OPA document.
func boolField(doc map[string]interface{}, key string) bool {
	v, ok := doc[key].(bool)
	return ok && v
}

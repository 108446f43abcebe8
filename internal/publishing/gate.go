package publishing

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/open-policy-agent/opa/rego"

	"github.com/zxlitianshu/Kekari-agent/internal/catalog"
)

// Policy decisions.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// DefaultPolicy blocks entities that cannot be listed meaningfully.
const DefaultPolicy = `
package publish_policy

import rego.v1

default decision := "allow"

reasons contains "entity has no images" if {
	count(input.images) == 0
}

reasons contains "entity has no title" if {
	trim_space(input.title) == ""
}

decision := "block" if {
	count(reasons) > 0
}
`

// Verdict is the policy outcome for one entity.
type Verdict struct {
	Decision string   `json:"decision"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Allowed reports whether the entity may be published.
func (v Verdict) Allowed() bool {
	return v.Decision == DecisionAllow
}

// Gate evaluates the publish policy.
type Gate struct {
	query rego.PreparedEvalQuery
}

// NewGate compiles policy. An empty policy uses DefaultPolicy.
func NewGate(ctx context.Context, policy string) (*Gate, error) {
	if policy == "" {
		policy = DefaultPolicy
	}

	r := rego.New(
		rego.Query("data.publish_policy"),
		rego.Module("publish_policy.rego", policy),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare publish policy: %w", err)
	}

	return &Gate{query: query}, nil
}

// LoadGate compiles the policy at path, or DefaultPolicy when path is empty.
func LoadGate(ctx context.Context, path string) (*Gate, error) {
	if path == "" {
		return NewGate(ctx, "")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publish policy: %w", err)
	}
	return NewGate(ctx, string(data))
}

// Evaluate checks e, a record's effective entity, against the policy.
func (g *Gate) Evaluate(ctx context.Context, e catalog.Entity, rec *catalog.ReadyEntityRecord) (Verdict, error) {
	results, err := g.query.Eval(ctx, rego.EvalInput(policyInput(e, rec)))
	if err != nil {
		return Verdict{}, fmt.Errorf("evaluate publish policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Verdict{Decision: DecisionAllow}, nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Verdict{}, fmt.Errorf("evaluate publish policy: unexpected result %T", results[0].Expressions[0].Value)
	}

	v := Verdict{Decision: DecisionAllow}
	if d, ok := doc["decision"].(string); ok {
		v.Decision = d
	}
	if reasons, ok := doc["reasons"].([]any); ok {
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				v.Reasons = append(v.Reasons, s)
			}
		}
		slices.Sort(v.Reasons)
	}
	return v, nil
}

func policyInput(e catalog.Entity, rec *catalog.ReadyEntityRecord) map[string]any {
	images := e.Images
	if images == nil {
		images = []string{}
	}
	in := map[string]any{
		"sku":      e.SKU,
		"title":    e.Title,
		"category": e.Category,
		"images":   images,
	}
	if rec != nil {
		in["modifications"] = len(rec.Modifications)
		in["published"] = rec.Published != nil
	}
	return in
}

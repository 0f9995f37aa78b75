// Package moderation implements the content gate applied to user input
// before a turn reaches the model.
package moderation

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/rego"
)

// FallbackDenial is used when the policy flags content without providing a
// denial message of its own.
const FallbackDenial = "Your message violates our guidelines. I can't answer that."

// Result is the gate's verdict on a piece of text.
type Result struct {
	Flagged       bool
	DenialMessage string
}

// Gate evaluates user input against a rego moderation policy.
type Gate struct {
	query rego.PreparedEvalQuery
}

// NewGate compiles the given policy content into a prepared query.
func NewGate(ctx context.Context, policyContent string) (*Gate, error) {
	r := rego.New(
		rego.Query("data.moderation.result"),
		rego.Module("moderation.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Gate{query: query}, nil
}

// Check evaluates the text against the policy. It never fails a turn:
// evaluation errors are logged and degrade to not-flagged.
func (g *Gate) Check(ctx context.Context, text string) Result {
	results, err := g.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"text": text,
	}))
	if err != nil {
		log.Printf("ERROR: moderation policy evaluation failed: %v", err)
		return Result{}
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Result{}
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		log.Printf("WARN: moderation policy returned unexpected type %T", results[0].Expressions[0].Value)
		return Result{}
	}

	res := Result{}
	if flagged, ok := obj["flagged"].(bool); ok {
		res.Flagged = flagged
	}
	if denial, ok := obj["denial"].(string); ok {
		res.DenialMessage = denial
	}
	if res.Flagged && res.DenialMessage == "" {
		res.DenialMessage = FallbackDenial
	}
	return res
}

// DefaultPolicy is the built-in moderation policy. It flags requests for
// clearly harmful content and greenwashing fabrication.
const DefaultPolicy = `
package moderation

import rego.v1

default result := {"flagged": false}

banned_terms := [
	"build a bomb",
	"make a weapon",
	"synthesize drugs",
	"launder money",
	"hack into",
	"steal credentials",
]

fabrication_terms := [
	"fake sustainability report",
	"falsify emissions",
	"fake carbon credits",
	"forge certification",
]

result := {"flagged": true, "denial": "I can't help with harmful or illegal activities."} if {
	some term in banned_terms
	contains(lower(input.text), term)
}

result := {"flagged": true, "denial": "I can't help fabricate sustainability claims. I can help you build real, verifiable ones instead."} if {
	some term in fabrication_terms
	contains(lower(input.text), term)
	not harmful
}

harmful if {
	some term in banned_terms
	contains(lower(input.text), term)
}
`

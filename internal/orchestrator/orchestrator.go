// Package orchestrator drives the bounded model/tool loop and serializes it
// into the ordered stream event vocabulary.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/naavyaberiwal-glitch/myAI3/internal/adapter/model"
	"github.com/naavyaberiwal-glitch/myAI3/internal/domain"
	"github.com/naavyaberiwal-glitch/myAI3/internal/moderation"
	"github.com/naavyaberiwal-glitch/myAI3/internal/tools"
)

// SystemPrompt frames the assistant for the model backend.
const SystemPrompt = "You are Greanly, a sustainability assistant for small businesses. " +
	"Give practical, measurable advice the business can act on today. " +
	"You may use the available lookup tools, calling at most one tool at a time, " +
	"and you may take multiple reasoning steps before answering."

// DefaultMaxSteps bounds model replies plus tool invocations per turn.
const DefaultMaxSteps = 10

// EmitFunc receives each stream event in chronological order. Returning an
// error cancels the turn.
type EmitFunc func(domain.StreamEvent) error

// Orchestrator runs one streaming turn at a time. It holds no conversation
// state across requests; each request carries the full history it needs.
type Orchestrator struct {
	model    model.Client
	registry *tools.Registry
	gate     *moderation.Gate
	maxSteps int

	tracer      trace.Tracer
	turns       metric.Int64Counter
	toolLatency metric.Float64Histogram
}

// New creates an orchestrator. tracer and meter may be nil.
func New(m model.Client, registry *tools.Registry, gate *moderation.Gate, maxSteps int, tracer trace.Tracer, meter metric.Meter) *Orchestrator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("orchestrator")
	}
	o := &Orchestrator{
		model:    m,
		registry: registry,
		gate:     gate,
		maxSteps: maxSteps,
		tracer:   tracer,
	}
	if meter != nil {
		var err error
		o.turns, err = meter.Int64Counter("greanly.turns",
			metric.WithDescription("Completed streaming turns"))
		if err != nil {
			log.Printf("WARN: failed to create turn counter: %v", err)
		}
		o.toolLatency, err = meter.Float64Histogram("greanly.tool.latency_ms",
			metric.WithDescription("Tool execution latency in milliseconds"))
		if err != nil {
			log.Printf("WARN: failed to create tool latency histogram: %v", err)
		}
	}
	return o
}

// Run executes one turn over the given history, emitting the event stream.
// Exactly one finish event is emitted on the success path.
func (o *Orchestrator) Run(ctx context.Context, history []domain.Message, emit EmitFunc) error {
	ctx, span := o.tracer.Start(ctx, "chat.turn")
	defer span.End()

	if res, gated := o.checkModeration(ctx, history); gated {
		span.SetAttributes(attribute.Bool("moderation.flagged", true))
		o.countTurn(ctx, "denied")
		return emitDenial(emit, res.DenialMessage)
	}

	messages := buildModelMessages(history)

	if err := emit(domain.StartEvent()); err != nil {
		return err
	}

	steps := 0
	for {
		steps++ // model reply

		req := &model.StepRequest{Messages: messages}
		// Leave headroom for the tool invocation a step may request; the
		// last allowed step runs without tools so the model must answer.
		if steps < o.maxSteps-1 {
			req.Tools = toolDefinitions(o.registry)
		}

		segID := ""
		onDelta := func(delta string) error {
			if delta == "" {
				return nil
			}
			if segID == "" {
				segID = "txt_" + uuid.New().String()[:8]
				if err := emit(domain.TextStartEvent(segID)); err != nil {
					return err
				}
			}
			return emit(domain.TextDeltaEvent(segID, delta))
		}

		result, err := o.model.StreamStep(ctx, req, onDelta)
		if err != nil {
			return fmt.Errorf("model step failed: %w", err)
		}
		if segID != "" {
			if err := emit(domain.TextEndEvent(segID)); err != nil {
				return err
			}
		}

		messages = append(messages, model.ChatMessage{
			Role:      "assistant",
			Content:   result.Content,
			ToolCalls: toolCallSlice(result.ToolCall),
		})

		if result.ToolCall == nil || steps >= o.maxSteps {
			break
		}

		steps++ // tool invocation
		toolMsg, err := o.invokeTool(ctx, result.ToolCall, emit)
		if err != nil {
			return err
		}
		messages = append(messages, toolMsg)
	}

	o.countTurn(ctx, "completed")
	return emit(domain.FinishEvent())
}

// checkModeration gates the newest user message. The gate is skipped when
// the newest role is not user or its text is empty. Only the latest message
// is inspected; earlier messages of the conversation are not re-checked.
func (o *Orchestrator) checkModeration(ctx context.Context, history []domain.Message) (moderation.Result, bool) {
	if o.gate == nil || len(history) == 0 {
		return moderation.Result{}, false
	}
	last := history[len(history)-1]
	if last.Role != domain.RoleUser {
		return moderation.Result{}, false
	}
	text := last.Text()
	if text == "" {
		return moderation.Result{}, false
	}
	res := o.gate.Check(ctx, text)
	return res, res.Flagged
}

// invokeTool runs one tool call with full failure isolation and emits the
// invocation/result pair around it.
func (o *Orchestrator) invokeTool(ctx context.Context, call *model.ToolCall, emit EmitFunc) (model.ChatMessage, error) {
	name := call.Function.Name
	rawInput := json.RawMessage(call.Function.Arguments)

	if err := emit(domain.ToolInvocationEvent(name, rawInput)); err != nil {
		return model.ChatMessage{}, err
	}

	ctx, span := o.tracer.Start(ctx, "chat.tool",
		trace.WithAttributes(attribute.String("tool.name", name)))
	start := time.Now()
	result := o.registry.Execute(ctx, name, rawInput)
	elapsed := time.Since(start)
	span.End()

	if o.toolLatency != nil {
		o.toolLatency.Record(ctx, float64(elapsed.Milliseconds()),
			metric.WithAttributes(attribute.String("tool.name", name)))
	}
	if result.Error != "" {
		log.Printf("WARN: tool %s returned error payload: %s", name, result.Error)
	}

	output, err := json.Marshal(result)
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	if err := emit(domain.ToolResultEvent(name, output)); err != nil {
		return model.ChatMessage{}, err
	}

	return model.ChatMessage{
		Role:       "tool",
		Content:    string(output),
		ToolCallID: call.ID,
	}, nil
}

func (o *Orchestrator) countTurn(ctx context.Context, outcome string) {
	if o.turns != nil {
		o.turns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// emitDenial synthesizes a stream indistinguishable in shape from a normal
// single-message turn, so the client needs one code path for both.
func emitDenial(emit EmitFunc, denial string) error {
	if denial == "" {
		denial = moderation.FallbackDenial
	}
	const textID = "moderation-denial-text"
	for _, ev := range []domain.StreamEvent{
		domain.StartEvent(),
		domain.TextStartEvent(textID),
		domain.TextDeltaEvent(textID, denial),
		domain.TextEndEvent(textID),
		domain.FinishEvent(),
	} {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}

// buildModelMessages maps the conversation onto the model-facing history.
func buildModelMessages(history []domain.Message) []model.ChatMessage {
	messages := make([]model.ChatMessage, 0, len(history)+1)
	messages = append(messages, model.ChatMessage{Role: "system", Content: SystemPrompt})
	for _, m := range history {
		text := m.Text()
		if text == "" {
			continue
		}
		messages = append(messages, model.ChatMessage{Role: string(m.Role), Content: text})
	}
	return messages
}

func toolCallSlice(call *model.ToolCall) []model.ToolCall {
	if call == nil {
		return nil
	}
	return []model.ToolCall{*call}
}

// toolDefinitions announces every registered tool with the shared
// single-query parameter schema.
func toolDefinitions(registry *tools.Registry) []model.Tool {
	if registry == nil {
		return nil
	}
	names := registry.Names()
	defs := make([]model.Tool, 0, len(names))
	for _, name := range names {
		defs = append(defs, model.Tool{
			Type: "function",
			Function: model.ToolFunction{
				Name:        name,
				Description: toolDescriptions[name],
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{"type": "string"},
					},
					"required": []string{"query"},
				},
			},
		})
	}
	return defs
}

var toolDescriptions = map[string]string{
	tools.ToolWebSearch:      "Search the web for current information.",
	tools.ToolVectorSearch:   "Search the indexed sustainability knowledge base.",
	tools.ToolSupplierSearch: "Search the supplier directory by material or location.",
}

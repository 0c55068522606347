package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
	"github.com/tmc/langchaingo/llms"
)

// DefaultAgentIterations bounds an agent's tool rounds.
const DefaultAgentIterations = 10

// Tool is something an agent can call. Tools from
// github.com/tmc/langchaingo/tools satisfy it.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// AgentConfig configures an Agent node.
type AgentConfig struct {
	// Name labels the nested graph in logs and errors. Default "agent".
	Name string
	// Model must support tool calling.
	Model llms.Model
	// Tools the model may call.
	Tools []Tool
	// System is sent before the task.
	System string
	// InputKey holds the task; OutputKey receives the final answer.
	InputKey  string
	OutputKey string
	// MaxIterations bounds the number of tool rounds. Default
	// DefaultAgentIterations.
	MaxIterations int
	// Options apply to every model call.
	Options []llm.Option
}

const (
	agentMessages = "messages"
	agentAnswer   = "answer"
	agentThink    = "think"
	agentAct      = "act"
)

// Agent runs a think/act loop: the model either answers or asks for tool
// calls, the tools run, their results are fed back, and the model is asked
// again. The loop is a nested compiled graph capped at one model call per
// tool round plus the final answer.
type Agent struct {
	cfg   AgentConfig
	tools map[string]Tool
	defs  []llms.Tool
	graph *stategraph.CompiledGraph
}

// NewAgent validates cfg, builds the loop graph and returns the node.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	switch {
	case cfg.Model == nil:
		return nil, fmt.Errorf("agent: %w", ErrNoCollaborator)
	case cfg.InputKey == "":
		return nil, fmt.Errorf("agent input: %w", ErrMissingKey)
	case cfg.OutputKey == "":
		return nil, fmt.Errorf("agent output: %w", ErrMissingKey)
	}
	if cfg.Name == "" {
		cfg.Name = "agent"
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultAgentIterations
	}

	a := &Agent{cfg: cfg, tools: make(map[string]Tool, len(cfg.Tools))}
	for _, t := range cfg.Tools {
		if _, dup := a.tools[t.Name()]; dup {
			return nil, fmt.Errorf("agent %s: %w: %s", cfg.Name, ErrDuplicateTool, t.Name())
		}
		a.tools[t.Name()] = t
		a.defs = append(a.defs, toolDefinition(t))
	}

	g, err := a.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.Name, err)
	}
	a.graph = g
	return a, nil
}

func (a *Agent) buildGraph() (*stategraph.CompiledGraph, error) {
	keys := stategraph.KeyStrategies{
		agentMessages: stategraph.Append(),
		agentAnswer:   stategraph.Replace(),
	}
	g := stategraph.NewGraph(keys,
		stategraph.WithName(a.cfg.Name),
		stategraph.WithDefaultMaxIterations(2*a.cfg.MaxIterations+1),
	)
	if err := g.AddNode(agentThink, stategraph.NodeFunc(a.think)); err != nil {
		return nil, err
	}
	if err := g.AddNode(agentAct, stategraph.NodeFunc(a.act)); err != nil {
		return nil, err
	}
	if err := g.AddEdge(stategraph.START, agentThink); err != nil {
		return nil, err
	}
	if err := g.AddConditionalEdges(agentThink, wantsTools, map[string]string{
		agentAct: agentAct,
		"answer": stategraph.END,
	}); err != nil {
		return nil, err
	}
	if err := g.AddEdge(agentAct, agentThink); err != nil {
		return nil, err
	}
	return g.Compile()
}

// Graph returns the nested loop graph, for rendering.
func (a *Agent) Graph() *stategraph.CompiledGraph {
	return a.graph
}

// InputKeys implements stategraph.KeyDeclarer.
func (a *Agent) InputKeys() []string { return []string{a.cfg.InputKey} }

// OutputKeys implements stategraph.KeyDeclarer.
func (a *Agent) OutputKeys() []string { return []string{a.cfg.OutputKey} }

// Execute implements stategraph.Node.
func (a *Agent) Execute(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	var seed []any
	if a.cfg.System != "" {
		seed = append(seed, llms.TextParts(llms.ChatMessageTypeSystem, a.cfg.System))
	}
	seed = append(seed, llms.TextParts(llms.ChatMessageTypeHuman, s.String(a.cfg.InputKey)))

	final, err := a.graph.Invoke(ctx, stategraph.State{agentMessages: seed},
		stategraph.WithRunID(ctx.RunID()+"/"+ctx.NodeID()),
		stategraph.WithLogger(ctx.Logger().With(slog.String("agent", a.cfg.Name))),
		stategraph.WithMetrics(ctx.Metrics()),
	)
	if errors.Is(err, stategraph.ErrMaxIterations) {
		return nil, fmt.Errorf("agent %s: %w after %d tool rounds: %w", a.cfg.Name, ErrAgentIncomplete, a.cfg.MaxIterations, err)
	}
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.cfg.Name, err)
	}
	return stategraph.Update{a.cfg.OutputKey: final.String(agentAnswer)}, nil
}

func (a *Agent) think(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	opts := llm.CallOptions(llm.Apply(a.cfg.Options...))
	if len(a.defs) > 0 {
		opts = append(opts, llms.WithTools(a.defs))
	}

	resp, err := a.cfg.Model.GenerateContent(ctx, messages(s), opts...)
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, llm.ErrEmptyResponse
	}
	choice := resp.Choices[0]

	if len(choice.ToolCalls) == 0 {
		return stategraph.Update{
			agentMessages: llms.TextParts(llms.ChatMessageTypeAI, choice.Content),
			agentAnswer:   choice.Content,
		}, nil
	}

	parts := make([]llms.ContentPart, 0, len(choice.ToolCalls)+1)
	if choice.Content != "" {
		parts = append(parts, llms.TextContent{Text: choice.Content})
	}
	for _, tc := range choice.ToolCalls {
		parts = append(parts, tc)
	}
	return stategraph.Update{
		agentMessages: llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts},
	}, nil
}

func (a *Agent) act(ctx stategraph.Context, s stategraph.State) (stategraph.Update, error) {
	msgs := messages(s)
	calls := pendingCalls(msgs)

	replies := make([]any, 0, len(calls))
	for _, tc := range calls {
		name := ""
		args := ""
		if tc.FunctionCall != nil {
			name, args = tc.FunctionCall.Name, tc.FunctionCall.Arguments
		}
		tool, ok := a.tools[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
		}

		out, err := tool.Call(ctx, toolInput(args))
		if err != nil {
			ctx.Logger().Warn("tool failed", slog.String("tool", name), slog.String("error", err.Error()))
			out = "error: " + err.Error()
		} else {
			ctx.Logger().Debug("tool called", slog.String("tool", name))
		}

		replies = append(replies, llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: tc.ID,
				Name:       name,
				Content:    out,
			}},
		})
	}
	return stategraph.Update{agentMessages: replies}, nil
}

// wantsTools routes to act while the last model turn asked for tools.
func wantsTools(_ stategraph.Context, s stategraph.State) string {
	if len(pendingCalls(messages(s))) > 0 {
		return agentAct
	}
	return "answer"
}

func messages(s stategraph.State) []llms.MessageContent {
	seq, _ := s[agentMessages].([]any)
	out := make([]llms.MessageContent, 0, len(seq))
	for _, v := range seq {
		if m, ok := v.(llms.MessageContent); ok {
			out = append(out, m)
		}
	}
	return out
}

// pendingCalls returns the tool calls of the last message when it is a
// model turn.
func pendingCalls(msgs []llms.MessageContent) []llms.ToolCall {
	if len(msgs) == 0 {
		return nil
	}
	last := msgs[len(msgs)-1]
	if last.Role != llms.ChatMessageTypeAI {
		return nil
	}
	var calls []llms.ToolCall
	for _, p := range last.Parts {
		if tc, ok := p.(llms.ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

func toolDefinition(t Tool) llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"input": map[string]any{
						"type":        "string",
						"description": "Input for the tool.",
					},
				},
				"required": []string{"input"},
			},
		},
	}
}

// toolInput extracts the "input" argument, falling back to the raw
// arguments when they are not the expected JSON object.
func toolInput(args string) string {
	var v struct {
		Input *string `json:"input"`
	}
	if err := json.Unmarshal([]byte(args), &v); err == nil && v.Input != nil {
		return *v.Input
	}
	return strings.TrimSpace(args)
}

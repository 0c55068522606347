package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/llm"
)

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

func TestNewAgent_Validation(t *testing.T) {
	model := llm.NewMockModel()

	_, err := NewAgent(AgentConfig{InputKey: "in", OutputKey: "out"})
	assert.ErrorIs(t, err, ErrNoCollaborator)

	_, err = NewAgent(AgentConfig{Model: model, OutputKey: "out"})
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = NewAgent(AgentConfig{
		Model: model, InputKey: "in", OutputKey: "out",
		Tools: []Tool{&staticTool{name: "t"}, &staticTool{name: "t"}},
	})
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestAgent_AnswersDirectly(t *testing.T) {
	model := llm.NewMockModel("42")
	a, err := NewAgent(AgentConfig{Model: model, InputKey: "input", OutputKey: "plan", System: "be terse"})
	require.NoError(t, err)

	upd, err := a.Execute(nodeCtx(t), stategraph.State{"input": "meaning of life?"})

	require.NoError(t, err)
	assert.Equal(t, stategraph.Update{"plan": "42"}, upd)

	calls := model.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, calls[0].Messages[0].Role)
	assert.Equal(t, llms.TextContent{Text: "meaning of life?"}, calls[0].Messages[1].Parts[0])
	assert.Empty(t, calls[0].Options.Tools)
}

func TestAgent_CallsToolsThenAnswers(t *testing.T) {
	search := &staticTool{name: "search", reply: "Paris is the capital"}
	model := llm.NewMockModel().WithContent(
		llm.ToolCallResponse(toolCall("c1", "search", `{"input":"capital of France"}`)),
		llm.TextResponse("Paris"),
	)
	a, err := NewAgent(AgentConfig{Model: model, Tools: []Tool{search}, InputKey: "input", OutputKey: "answer"})
	require.NoError(t, err)

	upd, err := a.Execute(nodeCtx(t), stategraph.State{"input": "capital of France?"})

	require.NoError(t, err)
	assert.Equal(t, "Paris", upd["answer"])
	assert.Equal(t, []string{"capital of France"}, search.inputs)

	calls := model.Calls()
	require.Len(t, calls, 2)
	require.Len(t, calls[0].Options.Tools, 1)
	assert.Equal(t, "search", calls[0].Options.Tools[0].Function.Name)

	second := calls[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, llms.ChatMessageTypeAI, second[1].Role)
	assert.Equal(t, llms.ChatMessageTypeTool, second[2].Role)
	assert.Equal(t, llms.ToolCallResponse{ToolCallID: "c1", Name: "search", Content: "Paris is the capital"}, second[2].Parts[0])
}

func TestAgent_ToolErrorIsFedBack(t *testing.T) {
	broken := &staticTool{name: "lookup", err: errors.New("index offline")}
	model := llm.NewMockModel().WithContent(
		llm.ToolCallResponse(toolCall("c1", "lookup", "raw input")),
		llm.TextResponse("could not look it up"),
	)
	a, err := NewAgent(AgentConfig{Model: model, Tools: []Tool{broken}, InputKey: "in", OutputKey: "out"})
	require.NoError(t, err)

	upd, err := a.Execute(nodeCtx(t), stategraph.State{"in": "q"})

	require.NoError(t, err)
	assert.Equal(t, "could not look it up", upd["out"])
	assert.Equal(t, []string{"raw input"}, broken.inputs)

	reply := model.Calls()[1].Messages[2].Parts[0].(llms.ToolCallResponse)
	assert.Equal(t, "error: index offline", reply.Content)
}

func TestAgent_UnknownTool(t *testing.T) {
	model := llm.NewMockModel().WithContent(llm.ToolCallResponse(toolCall("c1", "nope", "{}")))
	a, err := NewAgent(AgentConfig{Model: model, InputKey: "in", OutputKey: "out"})
	require.NoError(t, err)

	_, err = a.Execute(nodeCtx(t), stategraph.State{"in": "q"})

	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestAgent_IterationBound(t *testing.T) {
	loop := &staticTool{name: "loop", reply: "again"}
	model := llm.NewMockModel().WithContent(llm.ToolCallResponse(toolCall("c", "loop", "{}")))
	a, err := NewAgent(AgentConfig{Model: model, Tools: []Tool{loop}, InputKey: "in", OutputKey: "out", MaxIterations: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, a.Graph().MaxIterations())

	_, err = a.Execute(nodeCtx(t), stategraph.State{"in": "q"})

	assert.ErrorIs(t, err, ErrAgentIncomplete)
	assert.ErrorIs(t, err, stategraph.ErrMaxIterations)
	assert.Len(t, loop.inputs, 2)
	assert.Len(t, model.Calls(), 3)
}

func TestAgent_AsGraphNode(t *testing.T) {
	model := llm.NewMockModel("1. research 2. write")
	planner, err := NewAgent(AgentConfig{Name: "planner", Model: model, InputKey: "input", OutputKey: "plan"})
	require.NoError(t, err)

	g := stategraph.NewGraph(stategraph.ReplaceKeys("input", "plan"))
	require.NoError(t, g.AddNode("plan", planner))
	require.NoError(t, g.AddEdge(stategraph.START, "plan"))
	require.NoError(t, g.AddEdge("plan", stategraph.END))
	cg, err := g.Compile()
	require.NoError(t, err)

	final, err := cg.Invoke(context.Background(), stategraph.State{"input": "write a report"}, stategraph.WithLogger(quietLogger()))

	require.NoError(t, err)
	assert.Equal(t, "1. research 2. write", final["plan"])
}

func TestToolInput(t *testing.T) {
	assert.Equal(t, "x", toolInput(`{"input":"x"}`))
	assert.Equal(t, `{"other":1}`, toolInput(`{"other":1}`))
	assert.Equal(t, "plain", toolInput(" plain "))
}

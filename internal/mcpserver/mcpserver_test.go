package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/internal/research"
	"github.com/hupe1980/assistants/tool"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	require.NotEmpty(t, res.Content)

	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])

	return tc.Text
}

var greetTool = tool.NewFunctionTool("greet", "Greets someone",
	tool.Object(map[string]any{"name": tool.StringParam("Who to greet")}, "name"),
	func(_ *core.ToolContext, args map[string]any) (any, error) {
		return "Hello, " + tool.String(args, "name", "") + "!", nil
	},
)

func TestConvert(t *testing.T) {
	mt, err := Convert(greetTool)
	require.NoError(t, err)

	assert.Equal(t, "greet", mt.Name)
	assert.Equal(t, "Greets someone", mt.Description)
	assert.JSONEq(t,
		`{"type":"object","properties":{"name":{"type":"string","description":"Who to greet"}},"required":["name"]}`,
		string(mt.RawInputSchema))
}

func TestHandler(t *testing.T) {
	s, err := New([]tool.Tool{greetTool})
	require.NoError(t, err)
	require.Len(t, s.Tools(), 1)

	h := s.Handler(greetTool)

	res, err := h(context.Background(), callRequest("greet", map[string]any{"name": "Ada"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Hello, Ada!", resultText(t, res))

	res, err = h(context.Background(), callRequest("greet", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "parameter validation failed")
}

func TestHandler_NonStringResult(t *testing.T) {
	sum := tool.NewFunctionTool("sum", "Adds two numbers",
		tool.Object(map[string]any{"a": tool.NumberParam("a"), "b": tool.NumberParam("b")}, "a", "b"),
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return map[string]float64{"sum": tool.Float(args, "a", 0) + tool.Float(args, "b", 0)}, nil
		},
	)

	s, err := New([]tool.Tool{sum})
	require.NoError(t, err)

	res, err := s.Handler(sum)(context.Background(), callRequest("sum", map[string]any{"a": 1.5, "b": 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":3.5}`, resultText(t, res))
}

func TestHandler_SharedSession(t *testing.T) {
	tk, err := research.NewToolkit(func(o *research.ToolkitOptions) { o.ReportsDir = t.TempDir() })
	require.NoError(t, err)

	tools := tk.Tools()

	s, err := New(tools, func(o *Options) { o.AgentName = research.AgentName })
	require.NoError(t, err)
	assert.Equal(t, tool.Names(tools), []string{
		s.Tools()[0].Name, s.Tools()[1].Name, s.Tools()[2].Name, s.Tools()[3].Name, s.Tools()[4].Name,
	})

	var saveFinding tool.Tool

	for _, tl := range tools {
		if tl.Name() == "save_finding" {
			saveFinding = tl
		}
	}

	require.NotNil(t, saveFinding)

	h := s.Handler(saveFinding)

	res, err := h(context.Background(), callRequest("save_finding", map[string]any{"finding": "Solar capacity doubled."}))
	require.NoError(t, err)
	assert.Equal(t, "Finding saved successfully. Total findings: 1", resultText(t, res))

	res, err = h(context.Background(), callRequest("save_finding", map[string]any{"finding": "Wind grew 12%."}))
	require.NoError(t, err)
	assert.Equal(t, "Finding saved successfully. Total findings: 2", resultText(t, res))

	count, ok := s.Session().GetState(research.StateFindingCount)
	require.True(t, ok)
	assert.Equal(t, 2, count)
}

func TestHandler_ConcurrentCallsKeepState(t *testing.T) {
	tk, err := research.NewToolkit(func(o *research.ToolkitOptions) { o.ReportsDir = t.TempDir() })
	require.NoError(t, err)

	var saveFinding tool.Tool

	for _, tl := range tk.Tools() {
		if tl.Name() == "save_finding" {
			saveFinding = tl
		}
	}

	require.NotNil(t, saveFinding)

	s, err := New([]tool.Tool{saveFinding})
	require.NoError(t, err)

	h := s.Handler(saveFinding)

	const calls = 20

	var wg sync.WaitGroup

	for i := range calls {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := h(context.Background(), callRequest("save_finding", map[string]any{
				"finding": fmt.Sprintf("Finding number %d.", i),
			}))
			assert.NoError(t, err)
			assert.False(t, res.IsError)
		}()
	}

	wg.Wait()

	count, ok := s.Session().GetState(research.StateFindingCount)
	require.True(t, ok)
	assert.Equal(t, calls, count)
}

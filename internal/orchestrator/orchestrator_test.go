package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/internal/research"
	"github.com/hupe1980/assistants/internal/testutil"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/tool"
)

type stubSearcher struct {
	results []research.Result
	err     error
}

func (s stubSearcher) Name() string { return "stub" }

func (s stubSearcher) Search(context.Context, string, int) ([]research.Result, error) {
	return s.results, s.err
}

func TestWebSearch(t *testing.T) {
	tk := NewToolkit(func(o *ToolkitOptions) {
		o.Searcher = stubSearcher{results: []research.Result{
			{Title: "AI Index 2024", Link: "https://example.org/ai", Snippet: "Annual report."},
			{Title: "No snippet", Link: "https://example.org/b"},
		}}
	})

	assert.Equal(t,
		"Research results for: ai trends\n- AI Index 2024 (https://example.org/ai)\n  Annual report.\n- No snippet (https://example.org/b)",
		tk.WebSearch(context.Background(), " ai trends "))

	assert.Equal(t, "Error: query is required", tk.WebSearch(context.Background(), ""))

	failing := NewToolkit(func(o *ToolkitOptions) { o.Searcher = stubSearcher{err: errors.New("offline")} })
	assert.Equal(t, "Search error: offline", failing.WebSearch(context.Background(), "x"))

	empty := NewToolkit(func(o *ToolkitOptions) { o.Searcher = stubSearcher{} })
	assert.Equal(t, "No research results found for: x", empty.WebSearch(context.Background(), "x"))

	assert.Contains(t, NewToolkit().WebSearch(context.Background(), "go"), "Article 1: go")
}

func TestExtractNumbers(t *testing.T) {
	assert.Equal(t, []float64{1200, 10, 20, 30, -4.5}, ExtractNumbers("a 1,200 b 10,20,30 c -4.5"))
	assert.Empty(t, ExtractNumbers("no digits"))

	tests := []struct {
		in   string
		want []float64
	}{
		{"Revenue 2021-2023: 100, 120, 150", []float64{2021, 2023, 100, 120, 150}},
		{"2024-01-15: 42", []float64{2024, 1, 15, 42}},
		{"100,120,150", []float64{100, 120, 150}},
		{"1,000,000 and 250,000", []float64{1000000, 250000}},
		{"COVID-19 cases fell by -3.5", []float64{19, -3.5}},
		{"(-7) and -2,5", []float64{-7, -2, 5}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractNumbers(tt.in), tt.in)
	}
}

func TestAnalyzeData(t *testing.T) {
	tk := NewToolkit()

	assert.Equal(t, strings.Join([]string{
		"Analysis of data (statistical):",
		"- Count: 4",
		"- Sum: 100.00",
		"- Mean: 25.00",
		"- Median: 25.00",
		"- Min: 10.00",
		"- Max: 40.00",
		"- Std Dev: 11.18",
	}, "\n"), tk.AnalyzeData("Sales: 10, 20, 30, 40", "Statistical"))

	assert.Equal(t, strings.Join([]string{
		"Analysis of data (trend):",
		"- Data points: 4",
		"- First: 100.00",
		"- Last: 150.00",
		"- Change: +50.00 (+50.00%)",
		"- Average change per step: +16.50",
		"- Direction: upward",
	}, "\n"), tk.AnalyzeData("Revenue: 100, 110, 125, 150", "trend"))

	assert.Equal(t, strings.Join([]string{
		"Analysis of data (general):",
		"- Words: 6",
		"- Sentences: 2",
		"- Numeric values: 0",
		"- Key terms: test, another, here, quick",
	}, "\n"), tk.AnalyzeData("The quick test. Another test here!", ""))

	ranged := tk.AnalyzeData("Revenue 2021-2023: 100, 120, 150", "statistical")
	assert.Contains(t, ranged, "- Count: 5")
	assert.Contains(t, ranged, "- Min: 100.00")

	dated := tk.AnalyzeData("Measured 2024-01-15: 42", "statistical")
	assert.Contains(t, dated, "- Min: 1.00")
	assert.NotContains(t, dated, "-15")

	assert.Equal(t, "Error: no numeric values found for statistical analysis", tk.AnalyzeData("none", "statistical"))
	assert.Equal(t, "Error: trend analysis needs at least two numeric values", tk.AnalyzeData("just 1", "trend"))
	assert.Contains(t, tk.AnalyzeData("1 2", "forecast"), `unknown analysis_type "forecast"`)
	assert.Equal(t, "Error: data is required", tk.AnalyzeData(" ", "general"))
}

func TestGenerateCode(t *testing.T) {
	tk := NewToolkit()

	assert.Equal(t,
		"Code for: Write a function to parse log files\nLanguage: python\n\n```python\ndef parse_log_files():\n    \"\"\"Write a function to parse log files.\"\"\"\n    raise NotImplementedError\n```",
		tk.GenerateCode("Write a function to parse log files", ""))

	out := tk.GenerateCode("parse log files", "Go")
	assert.Contains(t, out, "Language: go\n\n```go\n")
	assert.Contains(t, out, "func ParseLogFiles() error {")

	assert.Contains(t, tk.GenerateCode("sum numbers", "typescript"), "function sumNumbers() {")
	assert.Contains(t, tk.GenerateCode("sort", "rust"), "rust: sort")
	assert.Equal(t, "Error: task is required", tk.GenerateCode("", "go"))
}

func TestFormatReport(t *testing.T) {
	tk := NewToolkit()
	content := "Intro <b>line</b>\n\n## Findings\n- one\n- **two**"

	assert.Equal(t,
		"# Q3\n\n"+content+"\n\n---\nFormatted and structured for presentation",
		tk.FormatReport(content, "", "Q3"))

	out := tk.FormatReport(content, "HTML", "Q3")
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html><html><head><title>Q3</title></head><body><h1>Q3</h1>"), out)
	assert.Contains(t, out, "<p>Intro &lt;b&gt;line&lt;/b&gt;</p><h2>Findings</h2><ul><li>one</li><li>**two**</li></ul></body></html>")

	assert.Equal(t,
		"REPORT\n======\n\nIntro <b>line</b>\n\nFINDINGS\n- one\n- two",
		tk.FormatReport(content, "text", ""))

	assert.Contains(t, tk.FormatReport("x", "pdf", ""), `unknown format_type "pdf"`)
	assert.Equal(t, "Error: content is required", tk.FormatReport("", "text", ""))
}

func TestNewAgent_Hierarchy(t *testing.T) {
	m := model.NewScriptedModel()

	coordinator, err := NewAgent(m, NewToolkit())
	require.NoError(t, err)

	var names []string
	for _, sub := range coordinator.SubAgents() {
		names = append(names, sub.Name())
	}

	assert.Equal(t, []string{ResearchAgentName, AnalysisAgentName, CodeAgentName, ReportAgentName}, names)
	assert.Empty(t, coordinator.Tools())

	second, err := NewAgent(m, NewToolkit())
	require.NoError(t, err)
	assert.Len(t, second.SubAgents(), 4)

	researcher, ok := coordinator.FindAgent(ResearchAgentName).(interface{ Tools() []tool.Tool })
	require.True(t, ok)
	assert.Equal(t, []string{"web_search"}, tool.Names(researcher.Tools()))

	assert.Equal(t, []string{"web_search", "analyze_data", "generate_code", "format_report"}, tool.Names(NewToolkit().Tools()))
}

func TestCoordinator_DelegatesToSpecialist(t *testing.T) {
	m := model.NewScriptedModel(
		model.Call(tool.TransferToAgentName, map[string]any{"agent": AnalysisAgentName}),
		model.Call("analyze_data", map[string]any{"data": "10, 20, 30, 40", "analysis_type": "statistical"}),
		model.Say("The mean is 25."),
	)

	coordinator, err := NewAgent(m, NewToolkit())
	require.NoError(t, err)

	res := testutil.RunAgent(t, coordinator, "Analyze these sales figures: 10, 20, 30, 40")

	responses := res.FunctionResponses()["analyze_data"]
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Text(), "- Mean: 25.00")

	last := res.Events[len(res.Events)-1]
	assert.Equal(t, AnalysisAgentName, last.Author)
	assert.Equal(t, "The mean is 25.", res.Text)
}

func TestCoordinator_DelegationDepth(t *testing.T) {
	chain := []string{ResearchAgentName, AnalysisAgentName, CodeAgentName, ReportAgentName, ResearchAgentName}

	var (
		mu   sync.Mutex
		next int
	)

	m := model.NewScriptedModel().WithFallback(func(model.Request) model.Turn {
		mu.Lock()
		defer mu.Unlock()

		target := chain[next%len(chain)]
		next++

		return model.Call(tool.TransferToAgentName, map[string]any{"agent": target})
	})

	coordinator, err := NewAgent(m, NewToolkit())
	require.NoError(t, err)

	asst, err := assistant.New(coordinator, Identity, AssistantOptions)
	require.NoError(t, err)

	_, err = asst.Ask(context.Background(), "loop forever")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransferDepthExceeded)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, MaxDelegationDepth+1, next)
}

func TestFanout_AggregatesSpecialists(t *testing.T) {
	m := model.NewScriptedModel().WithFallback(func(req model.Request) model.Turn {
		switch {
		case strings.Contains(req.Instructions, "research specialist"):
			return model.Say("Sources gathered.")
		case strings.Contains(req.Instructions, "data analysis specialist"):
			return model.Say("Trend is upward.")
		case strings.Contains(req.Instructions, "software development specialist"):
			return model.Say("Script drafted.")
		default:
			return model.Say("Report ready.")
		}
	})

	fanout, err := NewFanoutAgent(m, NewToolkit())
	require.NoError(t, err)

	res := testutil.RunAgent(t, fanout, "Study AI adoption")

	assert.Equal(t, FanoutName, res.Events[len(res.Events)-1].Author)
	assert.Equal(t,
		"## research_agent\n\nSources gathered.\n\n## analysis_agent\n\nTrend is upward.\n\n## code_agent\n\nScript drafted.\n\n## report_agent\n\nReport ready.",
		res.Text)
}

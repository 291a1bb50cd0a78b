package research

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/hupe1980/assistants/internal/testutil"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/tool"
)

const ddgPage = `<html><body>
<div class="results">
  <div class="result results_links web-result">
    <h2><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">The Go  Programming <b>Language</b></a></h2>
    <a class="result__snippet" href="#">Documentation for the Go language.</a>
  </div>
  <div class="result">
    <h2><a class="result__a" href="https://pkg.go.dev/">Go Packages</a></h2>
  </div>
  <div class="result"><span>no link here</span></div>
</div>
</body></html>`

func TestDuckDuckGoSearcher(t *testing.T) {
	var gotQuery, gotUA string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	s := &DuckDuckGoSearcher{Endpoint: srv.URL, Client: srv.Client()}

	results, err := s.Search(context.Background(), "golang docs", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "golang docs", gotQuery)
	assert.Equal(t, UserAgent, gotUA)
	assert.Equal(t, Result{
		Title:   "The Go Programming Language",
		Link:    "https://go.dev/doc/",
		Snippet: "Documentation for the Go language.",
		Source:  "go.dev",
	}, results[0])
	assert.Equal(t, "pkg.go.dev", results[1].Source)

	limited, err := s.Search(context.Background(), "golang docs", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGoogleSearcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "key-1", q.Get("key"))
		assert.Equal(t, "cx-1", q.Get("cx"))
		assert.Equal(t, "10", q.Get("num"))
		_, _ = w.Write([]byte(`{"items":[{"title":"Go","link":"https://go.dev/","snippet":"Build simple systems."}]}`))
	}))
	defer srv.Close()

	g := &GoogleSearcher{APIKey: "key-1", EngineID: "cx-1", Endpoint: srv.URL, Client: srv.Client()}

	results, err := g.Search(context.Background(), "go", 25)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "go.dev", results[0].Source)

	_, err = (&GoogleSearcher{}).Search(context.Background(), "go", 3)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

type failingSearcher struct{ err error }

func (f failingSearcher) Name() string { return "failing" }

func (f failingSearcher) Search(context.Context, string, int) ([]Result, error) { return nil, f.err }

func TestFallbackSearcher(t *testing.T) {
	s := &FallbackSearcher{Searchers: []Searcher{
		&GoogleSearcher{},
		failingSearcher{err: errors.New("blocked")},
		SimulatedSearcher{},
	}}

	results, err := s.Search(context.Background(), "solar power", 8)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "Article 1: solar power", results[0].Title)
	assert.Equal(t, "https://example.com/article-1-solar-power", results[0].Link)

	_, err = (&FallbackSearcher{Searchers: []Searcher{failingSearcher{err: errors.New("down")}}}).Search(context.Background(), "x", 1)
	assert.EqualError(t, err, "down")
}

const articlePage = `<html><head><title>Solar Power Explained</title>
<meta name="description" content="How photovoltaic cells work."></head>
<body>
<header>Site header</header>
<nav>Home | About</nav>
<div class="sidebar">Unrelated sidebar text</div>
<article>
  <h1>Solar Power</h1>
  <p>Photovoltaic cells convert sunlight directly into electricity using semiconducting materials.</p>
  <script>var tracking = true;</script>
  <p>Efficiency of commercial panels has risen steadily over the last decade.</p>
</article>
<footer>Copyright</footer>
</body></html>`

func TestParseArticle(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(articlePage))
	require.NoError(t, err)

	a := ParseArticle(doc)

	assert.Equal(t, "Solar Power Explained", a.Title)
	assert.Equal(t, "How photovoltaic cells work.", a.Description)
	assert.True(t, strings.HasPrefix(a.Content, "Solar Power\nPhotovoltaic cells"), a.Content)
	assert.NotContains(t, a.Content, "tracking")
	assert.NotContains(t, a.Content, "sidebar")
	assert.NotContains(t, a.Content, "Copyright")
}

func TestParseArticle_ContentDivAndTruncation(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	doc, err := html.Parse(strings.NewReader(`<html><body><h1>Heading</h1><div class="post-body">` + long + `</div></body></html>`))
	require.NoError(t, err)

	a := ParseArticle(doc)

	assert.Equal(t, "Heading", a.Title)
	assert.Equal(t, MaxContentLength, a.Length())
	assert.True(t, strings.HasPrefix(a.Content, "word word"))
}

func TestExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			_, _ = w.Write([]byte(articlePage))
		case "/short":
			_, _ = w.Write([]byte(`<html><body><p>Too short.</p></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := NewExtractor(srv.Client(), time.Second, 0)

	a, err := e.Extract(context.Background(), srv.URL+"/article")
	require.NoError(t, err)
	assert.Equal(t, "Solar Power Explained", a.Title)
	assert.Equal(t, strings.TrimPrefix(srv.URL, "http://"), a.Source)

	_, err = e.Extract(context.Background(), srv.URL+"/short")
	assert.ErrorIs(t, err, ErrInsufficientContent)

	_, err = e.Extract(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "unexpected status 404")

	_, err = e.Extract(context.Background(), "not a url")
	assert.ErrorContains(t, err, "invalid URL")
}

func TestGenerateReport_Layouts(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	in := ReportInput{
		Topic:    "Solar Power",
		Summary:  "Solar keeps getting cheaper.",
		Findings: []Finding{{Text: "Panel prices fell 90% since 2010"}, {Text: "Storage is the bottleneck"}},
		Sources:  []Result{{Title: "IEA", Link: "https://iea.org/solar", Source: "iea.org"}},
		Now:      now,
	}

	structured := GenerateReport(in)
	assert.True(t, strings.HasPrefix(structured, "# Research Report: Solar Power"))
	assert.Contains(t, structured, "**Generated:** 2024-03-05 14:30:00")
	assert.Contains(t, structured, "2. Storage is the bottleneck")
	assert.Contains(t, structured, "1. [IEA](https://iea.org/solar)\n   Source: iea.org")

	in.Layout, in.Citation = ReportSummary, CitationAPA
	summary := GenerateReport(in)
	assert.Contains(t, summary, "- Panel prices fell 90% since 2010")
	assert.Contains(t, summary, "- IEA: https://iea.org/solar")

	in.Layout, in.Citation = ReportDetailed, CitationMLA
	in.Sections = [][2]string{{"Outlook", "Bright."}}
	detailed := GenerateReport(in)
	assert.Contains(t, detailed, "SOLAR POWER\nResearch Report\nGenerated: March 05, 2024")
	assert.Contains(t, detailed, "3. OUTLOOK")
	assert.Contains(t, detailed, "4. REFERENCES")
	assert.Contains(t, detailed, `1. "IEA." Web. 05 March 2024. <https://iea.org/solar>`)

	assert.Equal(t, []string{"1. IEA. (2024, March 05). Retrieved from https://iea.org/solar"}, Citations(in.Sources, CitationAPA, now))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "research-quantum-computing.md", SanitizeFilename("research-quantum computing!"))
	assert.Equal(t, "notes.md", SanitizeFilename("notes.md"))
	assert.Equal(t, "etcpasswd.md", SanitizeFilename("../etc/passwd"))
	assert.Equal(t, "report.md", SanitizeFilename("???"))
}

func newToolkit(t *testing.T) *Toolkit {
	t.Helper()

	tk, err := NewToolkit(func(o *ToolkitOptions) {
		o.ReportsDir = filepath.Join(t.TempDir(), "reports")
		o.Now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	})
	require.NoError(t, err)

	return tk
}

func TestToolkit_FindingsAndReport(t *testing.T) {
	tk := newToolkit(t)
	tc := testutil.ToolContext(t)

	out := tk.SearchWeb(tc, "wind energy", 2)
	assert.True(t, strings.HasPrefix(out, "Found 2 results:"), out)

	// Duplicate links are recorded once.
	tk.SearchWeb(tc, "wind energy", 3)
	assert.Len(t, Sources(tc), 3)

	assert.Equal(t, "Finding saved successfully. Total findings: 1", tk.SaveFinding(tc, "Offshore wind is growing", "https://example.com/a"))
	assert.Equal(t, "Finding saved successfully. Total findings: 2", tk.SaveFinding(tc, "Turbines last 25 years", ""))
	assert.True(t, strings.HasPrefix(tk.SaveFinding(tc, "  ", ""), "Error saving finding"))

	report := tk.GenerateReport(tc, "Wind Energy", "", ReportStructured, CitationMarkdown)
	assert.Contains(t, report, "1. Offshore wind is growing")
	assert.Contains(t, report, "**Sources:** 3")

	msg := tk.SaveReport(tc, "wind energy", "")
	path := filepath.Join(tk.ReportsDir(), "wind-energy.md")
	assert.Equal(t, "Report saved to: "+path, msg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, report, string(data))
}

func TestToolkit_ErrorStrings(t *testing.T) {
	tk := newToolkit(t)
	tc := testutil.ToolContext(t)

	assert.Equal(t, "Search error: query must not be empty", tk.SearchWeb(tc, "", 5))
	assert.True(t, strings.HasPrefix(tk.ExtractArticle(context.Background(), "ftp://x"), "Extraction error"))
	assert.True(t, strings.HasPrefix(tk.GenerateReport(tc, "", "", "", ""), "Error generating report"))
	assert.True(t, strings.HasPrefix(tk.SaveReport(tc, "empty", ""), "Error saving report"))
}

func TestNewAgent_Idempotent(t *testing.T) {
	tk := newToolkit(t)
	m := model.NewScriptedModel()

	first, second := NewAgent(m, tk), NewAgent(m, tk)

	assert.Equal(t, tool.Names(first.Tools()), tool.Names(second.Tools()))
	assert.Equal(t, []string{"search_web", "extract_article_content", "save_finding", "generate_report", "save_report"}, tool.Names(first.Tools()))
	assert.Equal(t, MaxHistory, first.MaxHistoryMessages())
}

func TestAgent_ResearchFlow(t *testing.T) {
	tk := newToolkit(t)

	m := model.NewScriptedModel(
		model.Call("search_web", map[string]any{"query": "tidal power", "num_results": 2}),
		model.Call("save_finding", map[string]any{"finding": "Tidal power is predictable", "source_url": "https://example.com/article-1-tidal-power"}),
		model.Call("generate_report", map[string]any{"topic": "Tidal Power", "report_type": "summary"}),
		model.Call("save_report", map[string]any{"filename": "research-tidal power"}),
		model.Say("Report written."),
	)

	res := testutil.RunAgent(t, NewAgent(m, tk), ReportPrompt("tidal power", 2, "research-tidal-power.md"))

	assert.Equal(t, "Report written.", res.Text)

	count, ok := res.Session.GetState(StateFindingCount)
	require.True(t, ok)
	assert.Equal(t, 1, count)

	data, err := os.ReadFile(filepath.Join(tk.ReportsDir(), "research-tidal-power.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "- Tidal power is predictable")
	assert.Contains(t, string(data), fmt.Sprintf("- %s: %s", "Article 1: tidal power", "https://example.com/article-1-tidal-power"))
}

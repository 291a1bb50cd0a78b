package research

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/hupe1980/assistants/artifact"
	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/internal/config"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/tool"
)

// Session state keys.
const (
	StateSources      = "research:sources"
	StateFindingCount = "research:finding_count"
	StateLastReport   = "research:last_report"
	StateTopic        = "research:topic"
)

const findingKind = "finding"

// Toolkit holds the research tools' collaborators.
type Toolkit struct {
	searcher  Searcher
	extractor *Extractor
	reports   *artifact.FileStore
	now       func() time.Time
	logger    logging.Logger
}

// ToolkitOptions configures a Toolkit.
type ToolkitOptions struct {
	Searcher   Searcher
	Extractor  *Extractor
	ReportsDir string
	Now        func() time.Time
	Logger     logging.Logger
}

// NewToolkit creates a Toolkit. The reports directory is created if needed.
func NewToolkit(optFns ...func(o *ToolkitOptions)) (*Toolkit, error) {
	opts := ToolkitOptions{
		Searcher:   SimulatedSearcher{},
		Extractor:  NewExtractor(nil, 15*time.Second, 0),
		ReportsDir: "reports",
		Now:        time.Now,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	reports, err := artifact.NewFileStore(opts.ReportsDir, func(o *artifact.FileStoreOptions) { o.Shared = true })
	if err != nil {
		return nil, err
	}

	return &Toolkit{
		searcher:  opts.Searcher,
		extractor: opts.Extractor,
		reports:   reports,
		now:       opts.Now,
		logger:    opts.Logger,
	}, nil
}

// NewSearcherFromConfig chains Google Custom Search (when configured),
// DuckDuckGo and simulated results.
func NewSearcherFromConfig(cfg *config.Config, client *http.Client, logger logging.Logger) Searcher {
	return &FallbackSearcher{
		Searchers: []Searcher{
			&GoogleSearcher{APIKey: cfg.Search.GoogleAPIKey, EngineID: cfg.Search.GoogleCX, Client: client},
			&DuckDuckGoSearcher{Client: client},
			SimulatedSearcher{},
		},
		Logger: logger,
	}
}

// NewToolkitFromConfig builds a Toolkit on the configured search chain.
func NewToolkitFromConfig(cfg *config.Config, logger logging.Logger) (*Toolkit, error) {
	client := &http.Client{Timeout: cfg.HTTP.Timeout}

	return NewToolkit(func(o *ToolkitOptions) {
		o.Searcher = NewSearcherFromConfig(cfg, client, logger)
		o.Extractor = NewExtractor(client, cfg.HTTP.Timeout, cfg.HTTP.RequestsPerSecond)
		o.ReportsDir = cfg.ReportsDir()
		o.Logger = logger
	})
}

// ReportsDir returns where save_report writes.
func (tk *Toolkit) ReportsDir() string { return tk.reports.Root() }

// Tools returns the research tools.
func (tk *Toolkit) Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"search_web",
			"Search the web for information. Returns a list of search results with titles, URLs, and snippets.",
			tool.Object(map[string]any{
				"query":       tool.StringParam("The search query to look up"),
				"num_results": tool.IntParam("Number of search results to return (default: 5)"),
			}, "query"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.SearchWeb(tc, tool.String(args, "query", ""), tool.Int(args, "num_results", 5)), nil
			},
		),
		tool.NewFunctionTool(
			"extract_article_content",
			"Extract and read the full content from a web page URL. Returns the article title and content.",
			tool.Object(map[string]any{
				"url": tool.StringParam("The URL of the web page to extract content from"),
			}, "url"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.ExtractArticle(tc.Context(), tool.String(args, "url", "")), nil
			},
		),
		tool.NewFunctionTool(
			"save_finding",
			"Save an important finding or key insight from your research. Helps organize research for the final report.",
			tool.Object(map[string]any{
				"finding":    tool.StringParam("The finding or insight to save"),
				"source_url": tool.StringParam("The URL where this finding was discovered (optional)"),
			}, "finding"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.SaveFinding(tc, tool.String(args, "finding", ""), tool.String(args, "source_url", "")), nil
			},
		),
		tool.NewFunctionTool(
			"generate_report",
			"Generate a research report from the findings and sources collected in this conversation.",
			tool.Object(map[string]any{
				"topic":          tool.StringParam("The research topic"),
				"summary":        tool.StringParam("Executive summary of the research (optional)"),
				"report_type":    tool.EnumParam("Report layout", ReportStructured, ReportSummary, ReportDetailed),
				"citation_style": tool.EnumParam("Citation format", CitationMarkdown, CitationAPA, CitationMLA),
			}, "topic"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.GenerateReport(tc, tool.String(args, "topic", ""), tool.String(args, "summary", ""),
					tool.String(args, "report_type", ReportStructured), tool.String(args, "citation_style", CitationMarkdown)), nil
			},
		),
		tool.NewFunctionTool(
			"save_report",
			"Save a report as a Markdown file in the reports directory. Without content the last generated report is saved.",
			tool.Object(map[string]any{
				"filename": tool.StringParam("Output file name; .md is appended"),
				"content":  tool.StringParam("Report content (optional)"),
			}, "filename"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.SaveReport(tc, tool.String(args, "filename", ""), tool.String(args, "content", "")), nil
			},
		),
	}
}

// SearchWeb searches and records every hit as a source of the session.
func (tk *Toolkit) SearchWeb(tc *core.ToolContext, query string, n int) string {
	if strings.TrimSpace(query) == "" {
		return "Search error: query must not be empty"
	}

	n = min(max(n, 1), MaxSearchResults)

	tk.logger.Info("research.search", "query", query, "num_results", n)

	results, err := tk.searcher.Search(tc.Context(), query, n)
	if err != nil {
		return fmt.Sprintf("Search error: %v", err)
	}

	if len(results) == 0 {
		return "No search results found."
	}

	tc.UpdateState(StateSources, func(cur any, _ bool) any {
		sources, _ := cur.([]Result)
		sources = slices.Clone(sources)

		for _, r := range results {
			if !slices.ContainsFunc(sources, func(s Result) bool { return s.Link == r.Link }) {
				sources = append(sources, r)
			}
		}

		return sources
	})

	var sb strings.Builder

	fmt.Fprintf(&sb, "Found %d results:\n\n", len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   URL: %s\n   Summary: %s\n\n", i+1, r.Title, r.Link, r.Snippet)
	}

	return strings.TrimRight(sb.String(), "\n")
}

// ExtractArticle returns the readable text of a page, capped at 3000
// characters.
func (tk *Toolkit) ExtractArticle(ctx context.Context, rawURL string) string {
	tk.logger.Info("research.extract", "url", rawURL)

	a, err := tk.extractor.Extract(ctx, rawURL)
	if err != nil {
		return fmt.Sprintf("Extraction error: %v", err)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Article: %s\n", a.Title)
	if a.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", a.Description)
	}
	fmt.Fprintf(&sb, "Source: %s\n", a.Source)
	fmt.Fprintf(&sb, "Content length: %d characters\n\n", a.Length())
	fmt.Fprintf(&sb, "Content:\n%s", truncate(a.Content, 3000))

	return sb.String()
}

// SaveFinding stores a finding in the session memory.
func (tk *Toolkit) SaveFinding(tc *core.ToolContext, finding, sourceURL string) string {
	finding = strings.TrimSpace(finding)
	if finding == "" {
		return "Error saving finding: finding must not be empty"
	}

	if err := tc.StoreMemory(finding, map[string]any{"kind": findingKind, "source": sourceURL}); err != nil {
		return fmt.Sprintf("Error saving finding: %v", err)
	}

	total := tc.UpdateState(StateFindingCount, func(cur any, _ bool) any {
		n, _ := cur.(int)
		return n + 1
	})

	tk.logger.Debug("research.finding.saved", "session_id", tc.SessionID(), "total", total)

	return fmt.Sprintf("Finding saved successfully. Total findings: %d", total)
}

// Findings returns the findings saved in the session, oldest first.
func Findings(tc *core.ToolContext) ([]Finding, error) {
	items, err := tc.ListMemory()
	if err != nil {
		return nil, err
	}

	var out []Finding

	for _, it := range items {
		if kind, _ := it.Metadata["kind"].(string); kind != findingKind {
			continue
		}

		src, _ := it.Metadata["source"].(string)
		out = append(out, Finding{Text: it.Content, Source: src})
	}

	return out, nil
}

// Sources returns the search results recorded in the session.
func Sources(tc *core.ToolContext) []Result {
	v, _ := tc.GetState(StateSources)
	sources, _ := v.([]Result)

	return sources
}

// GenerateReport renders the collected research and remembers the report so
// save_report can persist it.
func (tk *Toolkit) GenerateReport(tc *core.ToolContext, topic, summary, layout, citation string) string {
	if strings.TrimSpace(topic) == "" {
		return "Error generating report: topic must not be empty"
	}

	findings, err := Findings(tc)
	if err != nil {
		return fmt.Sprintf("Error generating report: %v", err)
	}

	report := GenerateReport(ReportInput{
		Topic:    topic,
		Summary:  summary,
		Findings: findings,
		Sources:  Sources(tc),
		Layout:   layout,
		Citation: citation,
		Now:      tk.now(),
	})

	tc.SetState(StateLastReport, report)
	tc.SetState(StateTopic, topic)

	return report
}

// SaveReport writes content (or the last generated report) to the reports
// directory.
func (tk *Toolkit) SaveReport(tc *core.ToolContext, filename, content string) string {
	if strings.TrimSpace(content) == "" {
		v, _ := tc.GetState(StateLastReport)
		content, _ = v.(string)
	}

	if strings.TrimSpace(content) == "" {
		return "Error saving report: no content provided and no report generated yet"
	}

	name := SanitizeFilename(filename)

	if err := tk.reports.Save("", name, []byte(content)); err != nil {
		return fmt.Sprintf("Error saving report: %v", err)
	}

	path, _ := tk.reports.Path("", name)

	tk.logger.Info("research.report.saved", "path", path, "bytes", len(content))

	return fmt.Sprintf("Report saved to: %s", path)
}

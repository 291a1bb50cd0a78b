package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/internal/knowledge"
	"github.com/hupe1980/assistants/internal/research"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/tool"
)

// Analysis types accepted by analyze_data.
const (
	AnalysisGeneral     = "general"
	AnalysisStatistical = "statistical"
	AnalysisTrend       = "trend"
)

// Report formats accepted by format_report.
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatText     = "text"
)

// searchResults is the number of hits web_search asks for.
const searchResults = 5

var (
	numberRe      = regexp.MustCompile(`-?\d+(?:,\d+)*(?:\.\d+)?`)
	sentenceEndRe = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)
)

// ToolkitOptions configures a Toolkit.
type ToolkitOptions struct {
	// Searcher backs web_search. Defaults to simulated results.
	Searcher research.Searcher
	Logger   logging.Logger
}

// Toolkit holds the tools of the four specialists.
type Toolkit struct {
	searcher research.Searcher
	logger   logging.Logger
}

// NewToolkit creates a Toolkit.
func NewToolkit(optFns ...func(o *ToolkitOptions)) *Toolkit {
	opts := ToolkitOptions{Searcher: research.SimulatedSearcher{}, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Toolkit{searcher: opts.Searcher, logger: opts.Logger}
}

// Tools returns the specialist tools in specialist order.
func (tk *Toolkit) Tools() []tool.Tool {
	return []tool.Tool{tk.WebSearchTool(), tk.AnalyzeDataTool(), tk.GenerateCodeTool(), tk.FormatReportTool()}
}

// WebSearchTool gathers sources for the research specialist.
func (tk *Toolkit) WebSearchTool() tool.Tool {
	return tool.NewFunctionTool(
		"web_search",
		"Search the web for information.",
		tool.Object(map[string]any{
			"query": tool.StringParam("Search query"),
		}, "query"),
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return tk.WebSearch(tc.Context(), tool.String(args, "query", "")), nil
		},
	)
}

// AnalyzeDataTool computes descriptive figures for the analysis specialist.
func (tk *Toolkit) AnalyzeDataTool() tool.Tool {
	return tool.NewFunctionTool(
		"analyze_data",
		"Analyze data and provide insights. Numbers found in the data are used for statistical and trend analysis.",
		tool.Object(map[string]any{
			"data":          tool.StringParam("Data to analyze"),
			"analysis_type": tool.StringParam("Type of analysis: general (default), statistical or trend"),
		}, "data"),
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return tk.AnalyzeData(tool.String(args, "data", ""), tool.String(args, "analysis_type", AnalysisGeneral)), nil
		},
	)
}

// GenerateCodeTool produces a starting skeleton for the code specialist.
func (tk *Toolkit) GenerateCodeTool() tool.Tool {
	return tool.NewFunctionTool(
		"generate_code",
		"Generate a code skeleton for a given task that you then complete.",
		tool.Object(map[string]any{
			"task":     tool.StringParam("Description of what the code should do"),
			"language": tool.StringParam("Programming language (default python)"),
		}, "task"),
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return tk.GenerateCode(tool.String(args, "task", ""), tool.String(args, "language", "python")), nil
		},
	)
}

// FormatReportTool lays content out for the report specialist.
func (tk *Toolkit) FormatReportTool() tool.Tool {
	return tool.NewFunctionTool(
		"format_report",
		"Format content into a structured report.",
		tool.Object(map[string]any{
			"content":     tool.StringParam("Content to format into a report"),
			"format_type": tool.StringParam("Report format: markdown (default), html or text"),
			"title":       tool.StringParam("Optional report title"),
		}, "content"),
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return tk.FormatReport(
				tool.String(args, "content", ""),
				tool.String(args, "format_type", FormatMarkdown),
				tool.String(args, "title", ""),
			), nil
		},
	)
}

// WebSearch lists the top hits for query.
func (tk *Toolkit) WebSearch(ctx context.Context, query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Error: query is required"
	}

	results, err := tk.searcher.Search(ctx, query, searchResults)
	if err != nil {
		tk.logger.Warn("orchestrator.search.failed", "query", query, "error", err.Error())
		return fmt.Sprintf("Search error: %v", err)
	}

	if len(results) == 0 {
		return fmt.Sprintf("No research results found for: %s", query)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Research results for: %s\n", query)

	for _, r := range results {
		fmt.Fprintf(&sb, "- %s (%s)\n", r.Title, r.Link)

		if r.Snippet != "" {
			fmt.Fprintf(&sb, "  %s\n", r.Snippet)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// AnalyzeData describes data according to analysisType.
func (tk *Toolkit) AnalyzeData(data, analysisType string) string {
	if strings.TrimSpace(data) == "" {
		return "Error: data is required"
	}

	analysisType = strings.ToLower(strings.TrimSpace(analysisType))
	if analysisType == "" {
		analysisType = AnalysisGeneral
	}

	values := ExtractNumbers(data)

	var body []string

	switch analysisType {
	case AnalysisGeneral:
		body = generalAnalysis(data, values)
	case AnalysisStatistical:
		if len(values) == 0 {
			return "Error: no numeric values found for statistical analysis"
		}

		body = statisticalAnalysis(values)
	case AnalysisTrend:
		if len(values) < 2 {
			return "Error: trend analysis needs at least two numeric values"
		}

		body = trendAnalysis(values)
	default:
		return fmt.Sprintf("Error: unknown analysis_type %q (use general, statistical or trend)", analysisType)
	}

	return fmt.Sprintf("Analysis of data (%s):\n%s", analysisType, strings.Join(body, "\n"))
}

// ExtractNumbers returns the numbers in text in order of appearance.
//
// A minus sign counts only when it does not follow a letter, digit or dot,
// so ranges ("2021-2023") and dates ("2024-01-15") yield positive parts.
// Commas are thousands separators when every later group has three digits
// ("1,200", "1,000,000"); otherwise, or when a three-digit lead is followed
// by more than one group ("100,120,150"), the groups are separate values.
func ExtractNumbers(text string) []float64 {
	var values []float64

	for _, loc := range numberRe.FindAllStringIndex(text, -1) {
		tok := text[loc[0]:loc[1]]

		neg := false

		if strings.HasPrefix(tok, "-") {
			tok = tok[1:]
			neg = loc[0] == 0 || !isWordByte(text[loc[0]-1])
		}

		frac := ""
		if i := strings.IndexByte(tok, '.'); i >= 0 {
			tok, frac = tok[:i], tok[i:]
		}

		groups := strings.Split(tok, ",")
		if thousandsGrouped(groups) {
			groups = []string{strings.Join(groups, "")}
		}

		for i, g := range groups {
			if i == len(groups)-1 {
				g += frac
			}

			v, err := strconv.ParseFloat(g, 64)
			if err != nil {
				continue
			}

			if neg && i == 0 {
				v = -v
			}

			values = append(values, v)
		}
	}

	return values
}

func thousandsGrouped(groups []string) bool {
	if len(groups) < 2 || len(groups[0]) > 3 {
		return false
	}

	if len(groups[0]) == 3 && len(groups) > 2 {
		return false
	}

	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}

	return true
}

func isWordByte(b byte) bool {
	return b == '.' || b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

func generalAnalysis(data string, values []float64) []string {
	sentences := 0

	for _, part := range sentenceEndRe.Split(data, -1) {
		if strings.TrimSpace(part) != "" {
			sentences++
		}
	}

	lines := []string{
		fmt.Sprintf("- Words: %d", len(strings.Fields(data))),
		fmt.Sprintf("- Sentences: %d", sentences),
		fmt.Sprintf("- Numeric values: %d", len(values)),
	}

	if terms := keyTerms(data, 5); len(terms) > 0 {
		lines = append(lines, "- Key terms: "+strings.Join(terms, ", "))
	}

	return lines
}

// keyTerms returns the n most frequent content words, ties alphabetical.
func keyTerms(data string, n int) []string {
	counts := map[string]int{}

	for _, tok := range knowledge.Words(data) {
		if len(tok) < 3 || strings.IndexFunc(tok, unicode.IsLetter) < 0 {
			continue
		}

		counts[tok]++
	}

	terms := make([]string, 0, len(counts))
	for t := range counts {
		terms = append(terms, t)
	}

	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}

		return terms[i] < terms[j]
	})

	if len(terms) > n {
		terms = terms[:n]
	}

	return terms
}

func statisticalAnalysis(values []float64) []string {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range values {
		sum += v
	}

	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}

	median := sorted[len(sorted)/2]
	if len(sorted)%2 == 0 {
		median = (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2
	}

	return []string{
		fmt.Sprintf("- Count: %d", len(values)),
		"- Sum: " + num(sum),
		"- Mean: " + num(mean),
		"- Median: " + num(median),
		"- Min: " + num(sorted[0]),
		"- Max: " + num(sorted[len(sorted)-1]),
		"- Std Dev: " + num(math.Sqrt(sq/float64(len(values)))),
	}
}

func trendAnalysis(values []float64) []string {
	first, last := values[0], values[len(values)-1]
	change := last - first

	// Least squares slope over the index.
	n := float64(len(values))

	var sumX, sumY, sumXY, sumXX float64

	for i, v := range values {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)

	direction := "flat"

	switch {
	case slope > 0:
		direction = "upward"
	case slope < 0:
		direction = "downward"
	}

	changeLine := "- Change: " + signed(change)
	if first != 0 {
		changeLine += fmt.Sprintf(" (%s%%)", signed(change/math.Abs(first)*100))
	}

	return []string{
		fmt.Sprintf("- Data points: %d", len(values)),
		"- First: " + num(first),
		"- Last: " + num(last),
		changeLine,
		"- Average change per step: " + signed(slope),
		"- Direction: " + direction,
	}
}

func num(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}

func signed(v float64) string {
	if v > 0 {
		return "+" + num(v)
	}

	return num(v)
}

// GenerateCode returns a language appropriate skeleton for task.
func (tk *Toolkit) GenerateCode(task, language string) string {
	task = strings.TrimSpace(task)
	if task == "" {
		return "Error: task is required"
	}

	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		language = "python"
	}

	words := identifierWords(task)

	var code string

	switch language {
	case "go", "golang":
		language = "go"
		code = fmt.Sprintf("// %s %s.\nfunc %s() error {\n\treturn nil\n}", pascal(words), lowerFirst(task), pascal(words))
	case "python", "py":
		language = "python"
		code = fmt.Sprintf("def %s():\n    \"\"\"%s.\"\"\"\n    raise NotImplementedError", strings.Join(words, "_"), upperFirst(task))
	case "javascript", "js", "typescript", "ts":
		code = fmt.Sprintf("/**\n * %s.\n */\nfunction %s() {\n  throw new Error(\"not implemented\");\n}", upperFirst(task), lowerFirst(pascal(words)))
	default:
		code = fmt.Sprintf("%s: %s", language, task)
	}

	return fmt.Sprintf("Code for: %s\nLanguage: %s\n\n```%s\n%s\n```", task, language, language, code)
}

// identifierWords picks up to four words of task for a name.
func identifierWords(task string) []string {
	var words []string

	for _, w := range knowledge.Words(task) {
		if w[0] < 'a' || w[0] > 'z' || codeVerbs[w] {
			continue
		}

		words = append(words, w)
		if len(words) == 4 {
			break
		}
	}

	if len(words) == 0 {
		return []string{"run"}
	}

	return words
}

var codeVerbs = map[string]bool{"write": true, "create": true, "implement": true, "build": true, "code": true, "program": true, "script": true, "function": true, "that": true}

func pascal(words []string) string {
	var sb strings.Builder
	for _, w := range words {
		sb.WriteString(upperFirst(w))
	}

	return sb.String()
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}

	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])

	return string(r)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}

	r := []rune(s)
	r[0] = unicode.ToLower(r[0])

	return string(r)
}

// FormatReport lays content out as markdown, HTML or plain text.
func (tk *Toolkit) FormatReport(content, formatType, title string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return "Error: content is required"
	}

	if title = strings.TrimSpace(title); title == "" {
		title = "Report"
	}

	switch strings.ToLower(strings.TrimSpace(formatType)) {
	case "", FormatMarkdown, "md":
		return fmt.Sprintf("# %s\n\n%s\n\n---\nFormatted and structured for presentation", title, content)
	case FormatHTML:
		out, err := renderHTML(title, content)
		if err != nil {
			return fmt.Sprintf("Error formatting report: %v", err)
		}

		return out
	case FormatText, "plain":
		return fmt.Sprintf("%s\n%s\n\n%s", strings.ToUpper(title), strings.Repeat("=", len([]rune(title))), plainText(content))
	default:
		return fmt.Sprintf("Error: unknown format_type %q (use markdown, html or text)", formatType)
	}
}

// renderHTML builds a standalone document. Blank lines separate blocks;
// "#" lines become headings and "- " lines list items.
func renderHTML(title, content string) (string, error) {
	body := element(atom.Body)
	body.AppendChild(textElement(atom.H1, title))

	for _, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) == 0 || lines[0] == "" {
			continue
		}

		var list *html.Node

		for _, line := range lines {
			line = strings.TrimSpace(line)

			switch {
			case strings.HasPrefix(line, "#"):
				body.AppendChild(textElement(atom.H2, strings.TrimSpace(strings.TrimLeft(line, "#"))))
				list = nil
			case strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* "):
				if list == nil {
					list = element(atom.Ul)
					body.AppendChild(list)
				}

				list.AppendChild(textElement(atom.Li, strings.TrimSpace(line[2:])))
			default:
				body.AppendChild(textElement(atom.P, line))
				list = nil
			}
		}
	}

	head := element(atom.Head)
	head.AppendChild(textElement(atom.Title, title))

	root := element(atom.Html)
	root.AppendChild(head)
	root.AppendChild(body)

	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc.AppendChild(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func textElement(a atom.Atom, text string) *html.Node {
	n := element(a)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})

	return n
}

var markdownMarks = strings.NewReplacer("**", "", "__", "", "`", "")

func plainText(content string) string {
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			trimmed = strings.ToUpper(strings.TrimSpace(strings.TrimLeft(trimmed, "#")))
		}

		lines[i] = markdownMarks.Replace(trimmed)
	}

	return strings.Join(lines, "\n")
}

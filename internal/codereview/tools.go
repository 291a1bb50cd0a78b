package codereview

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/tool"
)

// ComplexityThreshold flags functions whose estimated cyclomatic complexity
// exceeds it.
const ComplexityThreshold = 10

// ToolkitOptions configures a Toolkit.
type ToolkitOptions struct {
	MaxFileSize         int
	ComplexityThreshold int
	Logger              logging.Logger
}

// Toolkit exposes the analysis tools. It reads files from the local disk.
type Toolkit struct {
	opts ToolkitOptions
}

// NewToolkit creates a Toolkit.
func NewToolkit(optFns ...func(o *ToolkitOptions)) *Toolkit {
	opts := ToolkitOptions{
		MaxFileSize:         MaxFileSize,
		ComplexityThreshold: ComplexityThreshold,
		Logger:              logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Toolkit{opts: opts}
}

func pathTool(name, desc string, fn func(string) string) tool.Tool {
	return tool.NewFunctionTool(
		name,
		desc,
		tool.Object(map[string]any{
			"file_path": tool.StringParam("Path to the code file"),
		}, "file_path"),
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return fn(tool.String(args, "file_path", "")), nil
		},
	)
}

// Tools returns analyze_code, check_code_metrics and detect_issues.
func (tk *Toolkit) Tools() []tool.Tool {
	return []tool.Tool{
		pathTool("analyze_code", "Analyze code structure, get line counts, and identify functions and classes or types.", tk.AnalyzeCode),
		pathTool("check_code_metrics", "Check code complexity and quality metrics including cyclomatic complexity and function lengths.", tk.CheckCodeMetrics),
		pathTool("detect_issues", "Detect common code issues, anti-patterns, and style violations.", tk.DetectIssues),
	}
}

func (tk *Toolkit) load(path string) (*Source, string) {
	if strings.TrimSpace(path) == "" {
		return nil, "Error: file_path is required"
	}

	src, err := Load(path, tk.opts.MaxFileSize)
	if err == nil {
		tk.opts.Logger.Debug("codereview.file.loaded", "path", path, "language", string(src.Language), "lines", len(src.Lines))
		return src, ""
	}

	tk.opts.Logger.Warn("codereview.file.rejected", "path", path, "error", err.Error())

	switch {
	case errors.Is(err, ErrFileNotFound):
		return nil, fmt.Sprintf("Error: File not found - %s", path)
	case errors.Is(err, ErrFileTooLarge):
		return nil, fmt.Sprintf("Error: File too large - %v", err)
	default:
		return nil, fmt.Sprintf("Error reading %s: %v", path, err)
	}
}

// AnalyzeCode reports line counts and, for Go and Python, the functions and
// types a file declares.
func (tk *Toolkit) AnalyzeCode(path string) string {
	src, errText := tk.load(path)
	if src == nil {
		return errText
	}

	stats := src.LineStats()

	var sb strings.Builder

	fmt.Fprintf(&sb, "Code Analysis for %s:\n\n", path)
	fmt.Fprintf(&sb, "Language: %s\n\n", src.Language)
	sb.WriteString("Lines of Code:\n")
	fmt.Fprintf(&sb, "  Total: %d\n", stats.Total)
	fmt.Fprintf(&sb, "  Code: %d\n", stats.Code)
	fmt.Fprintf(&sb, "  Comments: %d\n", stats.Comment)
	fmt.Fprintf(&sb, "  Blank: %d\n", stats.Blank)

	st, err := src.Analyze()
	if err != nil {
		fmt.Fprintf(&sb, "\nSyntax Error: %v\n", err)
		return strings.TrimRight(sb.String(), "\n")
	}

	if st != nil {
		names := make([]string, len(st.Functions))
		for i, f := range st.Functions {
			names[i] = f.Name
		}

		fmt.Fprintf(&sb, "\n%s Structure:\n", languageTitle(src.Language))
		fmt.Fprintf(&sb, "  Functions: %d\n", len(names))

		if len(names) > 0 {
			fmt.Fprintf(&sb, "    %s\n", strings.Join(firstN(names, 10), ", "))
		}

		fmt.Fprintf(&sb, "  %s: %d\n", st.TypeLabel, len(st.Types))

		if len(st.Types) > 0 {
			fmt.Fprintf(&sb, "    %s\n", strings.Join(firstN(st.Types, 10), ", "))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// CheckCodeMetrics reports control flow, estimated cyclomatic complexity and
// function lengths.
func (tk *Toolkit) CheckCodeMetrics(path string) string {
	src, errText := tk.load(path)
	if src == nil {
		return errText
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Code Metrics for %s:\n\n", path)

	st, err := src.Analyze()
	if err != nil {
		fmt.Fprintf(&sb, "Syntax error: %v", err)
		return sb.String()
	}

	if st == nil {
		fmt.Fprintf(&sb, "Detailed metrics are available for Go and Python files; %s has %d lines.", path, len(src.Lines))
		return sb.String()
	}

	complexity := st.ControlFlow + 1

	sb.WriteString("Complexity:\n")
	fmt.Fprintf(&sb, "  Control Flow Statements: %d\n", st.ControlFlow)
	fmt.Fprintf(&sb, "  Estimated Cyclomatic Complexity: %d\n", complexity)

	var flagged []Function

	for _, f := range st.Functions {
		if f.Complexity > tk.opts.ComplexityThreshold {
			flagged = append(flagged, f)
		}
	}

	if len(flagged) > 0 {
		fmt.Fprintf(&sb, "\n  Functions above complexity threshold (%d):\n", tk.opts.ComplexityThreshold)

		for _, f := range flagged {
			fmt.Fprintf(&sb, "    - %s (line %d): %d\n", f.Name, f.Line, f.Complexity)
		}
	}

	if len(st.Functions) > 0 {
		byLength := make([]Function, len(st.Functions))
		copy(byLength, st.Functions)

		sort.SliceStable(byLength, func(i, j int) bool { return byLength[i].Length() > byLength[j].Length() })

		sb.WriteString("\nFunction Lengths:\n")
		fmt.Fprintf(&sb, "  Total Functions: %d\n", len(byLength))
		fmt.Fprintf(&sb, "  Longest Function: %d lines\n", byLength[0].Length())
		sb.WriteString("\n  Top 5 Longest Functions:\n")

		for _, f := range firstN(byLength, 5) {
			fmt.Fprintf(&sb, "    - %s: %d lines\n", f.Name, f.Length())
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// DetectIssues lists findings grouped by severity.
func (tk *Toolkit) DetectIssues(path string) string {
	src, errText := tk.load(path)
	if src == nil {
		return errText
	}

	// A file that does not parse still gets the line checks.
	st, err := src.Analyze()
	if err != nil {
		tk.opts.Logger.Debug("codereview.parse.failed", "path", path, "error", err.Error())
	}

	return FormatIssues(path, DetectIssues(src, st))
}

func languageTitle(l Language) string {
	switch l {
	case Go:
		return "Go"
	case Python:
		return "Python"
	default:
		return string(l)
	}
}

func firstN[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}

	return items
}

package research

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Report layouts.
const (
	ReportStructured = "structured"
	ReportSummary    = "summary"
	ReportDetailed   = "detailed"
)

// Citation styles.
const (
	CitationMarkdown = "markdown"
	CitationAPA      = "apa"
	CitationMLA      = "mla"
)

// Finding is a saved research insight.
type Finding struct {
	Text   string
	Source string
}

// ReportInput is everything a report is built from.
type ReportInput struct {
	Topic    string
	Summary  string
	Findings []Finding
	Sources  []Result
	// Sections are appended after the findings in order.
	Sections [][2]string
	Layout   string
	Citation string
	Now      time.Time
}

var rule = strings.Repeat("=", 80)

var dash = strings.Repeat("-", 80)

// GenerateReport renders a research report as Markdown or plain text.
func GenerateReport(in ReportInput) string {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	if in.Summary == "" {
		in.Summary = fmt.Sprintf("This report collects %d findings from %d sources on %s.", len(in.Findings), len(in.Sources), in.Topic)
	}

	switch in.Layout {
	case ReportSummary:
		return summaryReport(in)
	case ReportDetailed:
		return detailedReport(in)
	default:
		return structuredReport(in)
	}
}

func structuredReport(in ReportInput) string {
	lines := []string{
		"# Research Report: " + in.Topic,
		"",
		"**Generated:** " + in.Now.Format("2006-01-02 15:04:05"),
		fmt.Sprintf("**Sources:** %d", len(in.Sources)),
		"",
		"---",
		"",
		"## Executive Summary",
		"",
		in.Summary,
		"",
	}

	if len(in.Findings) > 0 {
		lines = append(lines, "## Key Findings", "")
		for i, f := range in.Findings {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, f.Text))
		}
		lines = append(lines, "")
	}

	for _, sec := range in.Sections {
		lines = append(lines, "## "+sec[0], "", sec[1], "")
	}

	if len(in.Sources) > 0 {
		lines = append(lines, "## Sources and References", "")
		lines = append(lines, Citations(in.Sources, in.Citation, in.Now)...)
	}

	return strings.Join(lines, "\n")
}

func summaryReport(in ReportInput) string {
	lines := []string{"# " + in.Topic, "", in.Summary, "", "**Key Points:**", ""}

	for _, f := range in.Findings {
		lines = append(lines, "- "+f.Text)
	}

	if len(in.Sources) > 0 {
		lines = append(lines, "", "**Sources:**")
		for _, s := range in.Sources {
			lines = append(lines, fmt.Sprintf("- %s: %s", orDefault(s.Title, "Unknown"), s.Link))
		}
	}

	return strings.Join(lines, "\n")
}

func detailedReport(in ReportInput) string {
	lines := []string{
		rule,
		strings.ToUpper(in.Topic),
		"Research Report",
		"Generated: " + in.Now.Format("January 02, 2006"),
		rule,
		"",
		"TABLE OF CONTENTS",
		dash,
		"1. Executive Summary",
		"2. Key Findings",
	}

	for i, sec := range in.Sections {
		lines = append(lines, fmt.Sprintf("%d. %s", i+3, sec[0]))
	}

	refs := len(in.Sections) + 3
	lines = append(lines, fmt.Sprintf("%d. References", refs), "", rule, "")

	lines = append(lines, "1. EXECUTIVE SUMMARY", dash, in.Summary, "", rule, "")

	lines = append(lines, "2. KEY FINDINGS", dash)
	for i, f := range in.Findings {
		lines = append(lines, "", fmt.Sprintf("%d. %s", i+1, f.Text))
	}
	lines = append(lines, "", rule, "")

	for i, sec := range in.Sections {
		lines = append(lines, fmt.Sprintf("%d. %s", i+3, strings.ToUpper(sec[0])), dash, sec[1], "", rule, "")
	}

	lines = append(lines, fmt.Sprintf("%d. REFERENCES", refs), dash)
	lines = append(lines, Citations(in.Sources, in.Citation, in.Now)...)

	return strings.Join(lines, "\n")
}

// Citations formats sources in the given style.
func Citations(sources []Result, style string, now time.Time) []string {
	out := make([]string, 0, len(sources))

	for i, s := range sources {
		title := orDefault(s.Title, "Unknown Title")

		switch style {
		case CitationAPA:
			out = append(out, fmt.Sprintf("%d. %s. (%s). Retrieved from %s", i+1, title, now.Format("2006, January 02"), s.Link))
		case CitationMLA:
			out = append(out, fmt.Sprintf(`%d. "%s." Web. %s. <%s>`, i+1, title, now.Format("02 January 2006"), s.Link))
		default:
			out = append(out, fmt.Sprintf("%d. [%s](%s)", i+1, title, s.Link))
			if s.Source != "" {
				out = append(out, "   Source: "+s.Source)
			}
		}
	}

	return out
}

var (
	unsafeChars = regexp.MustCompile(`[^\w\s-]`)
	separators  = regexp.MustCompile(`[-\s]+`)
)

// SanitizeFilename reduces name to word characters and dashes and forces a
// .md extension.
func SanitizeFilename(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".md")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.Trim(separators.ReplaceAllString(name, "-"), "-")

	if name == "" {
		name = "report"
	}

	return name + ".md"
}

package codereview

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxLineLength is the longest line accepted without a finding.
const MaxLineLength = 120

// Severity ranks an Issue.
type Severity int

const (
	Critical Severity = iota
	Major
	Minor
)

func (s Severity) String() string {
	switch s {
	case Critical:
		return "CRITICAL"
	case Major:
		return "MAJOR"
	default:
		return "MINOR"
	}
}

// Issue is a single finding.
type Issue struct {
	Line        int
	Severity    Severity
	Title       string
	Description string
}

var (
	secretRe     = regexp.MustCompile(`(?i)\b(password|passwd|secret|api_?key|access_?token|private_?key)\w*\s*(:=|=|:)\s*["'][^"'\s]{4,}["']`)
	emptyCatchRe = regexp.MustCompile(`catch\s*(\([^)]*\))?\s*\{\s*\}`)
)

// DetectIssues runs the line checks for every language and merges the
// findings of the structural analysis, ordered by severity then line.
func DetectIssues(src *Source, st *Structure) []Issue {
	var issues []Issue

	for i, line := range src.Lines {
		n := i + 1

		if l := utf8.RuneCountInString(line); l > MaxLineLength {
			issues = append(issues, Issue{
				Line:        n,
				Severity:    Minor,
				Title:       "Line too long",
				Description: fmt.Sprintf("Line has %d characters (recommended max: %d)", l, MaxLineLength),
			})
		}

		if strings.Contains(line, "TODO") || strings.Contains(line, "FIXME") {
			issues = append(issues, Issue{
				Line:        n,
				Severity:    Minor,
				Title:       "TODO/FIXME comment",
				Description: "Unresolved TODO or FIXME comment",
			})
		}

		if m := secretRe.FindStringSubmatch(line); m != nil {
			issues = append(issues, Issue{
				Line:        n,
				Severity:    Critical,
				Title:       "Hardcoded secret",
				Description: fmt.Sprintf("'%s' looks like a credential committed to source; load it from the environment", m[1]),
			})
		}

		if src.Language == JavaScript || src.Language == TypeScript || src.Language == Java {
			if emptyCatchRe.MatchString(line) {
				issues = append(issues, Issue{
					Line:        n,
					Severity:    Major,
					Title:       "Empty catch block",
					Description: "Exceptions are caught and silently discarded",
				})
			}
		}
	}

	if st != nil {
		issues = append(issues, st.Issues...)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Severity != issues[j].Severity {
			return issues[i].Severity < issues[j].Severity
		}

		return issues[i].Line < issues[j].Line
	})

	return issues
}

// maxListed caps the findings listed per severity.
const maxListed = 5

// FormatIssues renders findings grouped by severity.
func FormatIssues(path string, issues []Issue) string {
	if len(issues) == 0 {
		return fmt.Sprintf("No issues detected in %s. Code looks good!", path)
	}

	groups := map[Severity][]Issue{}
	for _, is := range issues {
		groups[is.Severity] = append(groups[is.Severity], is)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Found %d issues in %s:\n", len(issues), path)

	for _, sev := range []Severity{Critical, Major, Minor} {
		group := groups[sev]
		if len(group) == 0 {
			continue
		}

		fmt.Fprintf(&sb, "\n%s (%d):\n", sev, len(group))

		// Critical findings are always listed in full.
		listed := group
		if sev != Critical && len(listed) > maxListed {
			listed = listed[:maxListed]
		}

		for _, is := range listed {
			fmt.Fprintf(&sb, "  Line %d: %s - %s\n", is.Line, is.Title, is.Description)
		}

		if more := len(group) - len(listed); more > 0 {
			fmt.Fprintf(&sb, "  ... and %d more\n", more)
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

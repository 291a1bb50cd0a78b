package codereview

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	pyDefRe      = regexp.MustCompile(`^(?:async\s+)?def\s+([A-Za-z_]\w*)\s*\(`)
	pyClassRe    = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)`)
	pyControlRe  = regexp.MustCompile(`^(?:if|elif|while|for|try|with|async\s+for|async\s+with)\b`)
	pyDocRe      = regexp.MustCompile(`^[rRuUbBfF]{0,2}("|')`)
	pyBoolOpRe   = regexp.MustCompile(`\b(?:and|or)\b`)
	pyBareExcept = regexp.MustCompile(`^except\s*:`)
)

// pyLine is a source line with its indentation, or a line inside a
// multi-line string.
type pyLine struct {
	text     string
	indent   int
	inString bool
}

// scanPython trims lines, measures indentation (tabs count as four columns)
// and marks lines that continue a triple-quoted string.
func scanPython(lines []string) []pyLine {
	out := make([]pyLine, len(lines))
	var delim string

	for i, raw := range lines {
		out[i] = pyLine{text: strings.TrimSpace(raw), indent: indentOf(raw), inString: delim != ""}

		rest := raw
		for {
			if delim != "" {
				idx := strings.Index(rest, delim)
				if idx < 0 {
					break
				}

				rest = rest[idx+3:]
				delim = ""

				continue
			}

			dq, sq := strings.Index(rest, `"""`), strings.Index(rest, `'''`)
			if dq < 0 && sq < 0 {
				break
			}

			if dq < 0 || (sq >= 0 && sq < dq) {
				delim, rest = `'''`, rest[sq+3:]
			} else {
				delim, rest = `"""`, rest[dq+3:]
			}
		}
	}

	return out
}

func indentOf(line string) int {
	n := 0

	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}

	return n
}

// analyzePython scans definitions line by line. It does not parse Python, so
// unusual layouts may be miscounted.
func analyzePython(src *Source) *Structure {
	lines := scanPython(src.Lines)
	st := &Structure{TypeLabel: "Classes"}

	for i, l := range lines {
		if l.inString || l.text == "" || strings.HasPrefix(l.text, "#") {
			continue
		}

		if pyControlRe.MatchString(l.text) {
			st.ControlFlow++
		}

		if m := pyClassRe.FindStringSubmatch(l.text); m != nil {
			st.Types = append(st.Types, m[1])
			continue
		}

		m := pyDefRe.FindStringSubmatch(l.text)
		if m == nil {
			continue
		}

		end := pyBlockEnd(lines, i)
		fn := Function{
			Name:       m[1],
			Line:       i + 1,
			EndLine:    end + 1,
			Complexity: 1 + pyDecisionPoints(lines[i+1:end+1]),
			Exported:   !strings.HasPrefix(m[1], "_"),
			Documented: pyHasDocstring(lines, i, end),
		}
		st.Functions = append(st.Functions, fn)

		if !fn.Documented {
			st.Issues = append(st.Issues, Issue{
				Line:        fn.Line,
				Severity:    Minor,
				Title:       "Missing docstring",
				Description: fmt.Sprintf("Function '%s' has no docstring", fn.Name),
			})
		}
	}

	for i, l := range lines {
		if !l.inString && pyBareExcept.MatchString(l.text) {
			st.Issues = append(st.Issues, Issue{
				Line:        i + 1,
				Severity:    Major,
				Title:       "Bare except clause",
				Description: "Use specific exception types instead of bare 'except:'",
			})
		}
	}

	return st
}

// pyBlockEnd returns the index of the last non-blank line of the block
// opened at start.
func pyBlockEnd(lines []pyLine, start int) int {
	end := start
	base := lines[start].indent
	depth := parenDepth(lines[start].text)

	for j := start + 1; j < len(lines); j++ {
		l := lines[j]

		if l.inString {
			end = j
			continue
		}

		if l.text == "" || strings.HasPrefix(l.text, "#") {
			continue
		}

		// continuation of a multi-line signature
		if depth > 0 {
			depth += parenDepth(l.text)
			end = j

			continue
		}

		if l.indent <= base {
			break
		}

		end = j
	}

	return end
}

// pyHasDocstring reports whether the first statement after the signature is
// a string literal.
func pyHasDocstring(lines []pyLine, start, end int) bool {
	j := start

	for depth := parenDepth(lines[j].text); depth > 0 && j < end; depth += parenDepth(lines[j].text) {
		j++
	}

	for j++; j <= end; j++ {
		if lines[j].text == "" || strings.HasPrefix(lines[j].text, "#") {
			continue
		}

		return pyDocRe.MatchString(lines[j].text)
	}

	return false
}

func parenDepth(s string) int {
	s = stripComment(s)
	return strings.Count(s, "(") - strings.Count(s, ")")
}

func pyDecisionPoints(lines []pyLine) int {
	n := 0

	for _, l := range lines {
		if l.inString || strings.HasPrefix(l.text, "#") || pyDocRe.MatchString(l.text) {
			continue
		}

		if pyControlRe.MatchString(l.text) {
			n++
		}

		n += len(pyBoolOpRe.FindAllString(stripComment(l.text), -1))
	}

	return n
}

func stripComment(s string) string {
	if i := strings.Index(s, " #"); i >= 0 {
		s = s[:i]
	}

	return strings.TrimSpace(s)
}

package codereview

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxFileSize is the largest file, in characters, the analyzers accept.
const MaxFileSize = 100000

var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileTooLarge = errors.New("file too large")
)

// Language identifies how a file is analysed.
type Language string

const (
	Go         Language = "go"
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Java       Language = "java"
	Text       Language = "text"
)

// DetectLanguage maps a file extension to a Language.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return Go
	case ".py", ".pyw":
		return Python
	case ".js", ".jsx", ".mjs", ".cjs":
		return JavaScript
	case ".ts", ".tsx":
		return TypeScript
	case ".java":
		return Java
	default:
		return Text
	}
}

func (l Language) cStyleComments() bool {
	return l == Go || l == JavaScript || l == TypeScript || l == Java
}

// Source is a file held in memory for analysis.
type Source struct {
	Path     string
	Language Language
	Text     string
	Lines    []string
}

// NewSource wraps text read from path.
func NewSource(path, text string) *Source {
	return &Source{
		Path:     path,
		Language: DetectLanguage(path),
		Text:     text,
		Lines:    strings.Split(text, "\n"),
	}
}

// Load reads path, refusing missing files, directories and files longer than
// maxChars characters.
func Load(path string, maxChars int) (*Source, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	// A UTF-8 character takes at most four bytes.
	if info.Size() > int64(maxChars)*utf8.UTFMax {
		return nil, fmt.Errorf("%w: %s has %d bytes (max %d characters)", ErrFileTooLarge, path, info.Size(), maxChars)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if n := utf8.RuneCount(data); n > maxChars {
		return nil, fmt.Errorf("%w: %s has %d characters (max %d)", ErrFileTooLarge, path, n, maxChars)
	}

	return NewSource(path, string(data)), nil
}

// LineStats counts the lines of a file. Every line is exactly one of code,
// comment or blank.
type LineStats struct {
	Total   int
	Code    int
	Comment int
	Blank   int
}

// LineStats classifies every line.
func (s *Source) LineStats() LineStats {
	stats := LineStats{Total: len(s.Lines)}
	inBlock := false

	for _, line := range s.Lines {
		trimmed := strings.TrimSpace(line)

		switch {
		case inBlock:
			stats.Comment++

			if strings.Contains(trimmed, "*/") {
				inBlock = false
			}
		case trimmed == "":
			stats.Blank++
		case s.Language.cStyleComments() && strings.HasPrefix(trimmed, "//"):
			stats.Comment++
		case s.Language.cStyleComments() && strings.HasPrefix(trimmed, "/*"):
			stats.Comment++
			inBlock = !strings.Contains(trimmed[2:], "*/")
		case !s.Language.cStyleComments() && strings.HasPrefix(trimmed, "#"):
			stats.Comment++
		default:
			stats.Code++
		}
	}

	return stats
}

// Function is one function or method found in a file.
type Function struct {
	Name string
	// Line and EndLine are 1-based and inclusive.
	Line       int
	EndLine    int
	Complexity int
	Exported   bool
	Documented bool
}

// Length is the number of lines the function spans.
func (f Function) Length() int { return f.EndLine - f.Line + 1 }

// Structure is the result of a language-aware analysis.
type Structure struct {
	Functions []Function
	Types     []string
	// TypeLabel names Types in reports ("Types" for Go, "Classes" for Python).
	TypeLabel   string
	ControlFlow int
	// Issues are language specific findings.
	Issues []Issue
}

// Analyze runs the analyzer for the file's language. It returns nil without
// error for languages that have no structural analyzer.
func (s *Source) Analyze() (*Structure, error) {
	switch s.Language {
	case Go:
		return analyzeGo(s)
	case Python:
		return analyzePython(s), nil
	default:
		return nil, nil
	}
}

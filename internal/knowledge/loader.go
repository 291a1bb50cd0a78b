package knowledge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// SupportedExtensions lists the file types LoadDir picks up.
var SupportedExtensions = []string{".txt", ".md", ".pdf"}

// LoadDir reads every supported file directly in dir. The file name is the
// document ID and the "source" metadata entry. A missing directory yields no
// documents.
func LoadDir(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading knowledge directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []Document

	for _, e := range entries {
		if e.IsDir() || !supported(e.Name()) {
			continue
		}

		text, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}

		if strings.TrimSpace(text) == "" {
			continue
		}

		docs = append(docs, Document{
			ID:       e.Name(),
			Text:     text,
			Metadata: map[string]string{"source": e.Name()},
		})
	}

	return docs, nil
}

// LoadFile returns the text of a .txt, .md or .pdf file.
func LoadFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return loadPDF(path)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	return string(b), nil
}

func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("extracting text from %s: %w", path, err)
	}

	return buf.String(), nil
}

func supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}

	return false
}

package research

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"
)

// Content limits of an extracted article, in characters.
const (
	MaxContentLength = 5000
	MinContentLength = 100
)

// ErrInsufficientContent is returned for pages with too little text.
var ErrInsufficientContent = errors.New("insufficient content extracted")

// Article is the readable content of a web page.
type Article struct {
	URL         string
	Title       string
	Description string
	Content     string
	Source      string
}

// Length returns the content length in characters.
func (a *Article) Length() int { return utf8.RuneCountInString(a.Content) }

// Extractor fetches pages and isolates their main text.
type Extractor struct {
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

// NewExtractor creates an Extractor. rps <= 0 disables throttling.
func NewExtractor(client *http.Client, timeout time.Duration, rps float64) *Extractor {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return &Extractor{client: httpClient(client), timeout: timeout, limiter: limiter}
}

var contentClassRe = regexp.MustCompile(`content|article|post`)

var blankLinesRe = regexp.MustCompile(`\n\s*\n`)

// Extract downloads rawURL and returns its article text.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Article, error) {
	if !ValidURL(rawURL) {
		return nil, fmt.Errorf("invalid URL %q", rawURL)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("content extraction error: %w", err)
	}

	article := ParseArticle(doc)
	article.URL = rawURL
	article.Source = host(rawURL)

	if article.Length() < MinContentLength {
		return nil, ErrInsufficientContent
	}

	return article, nil
}

// ParseArticle isolates title, meta description and main text of doc.
func ParseArticle(doc *html.Node) *Article {
	a := &Article{}

	if t := findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.Title && n.Type == html.ElementNode }); t != nil {
		a.Title = collapseSpaces(textContent(t, " "))
	}

	if a.Title == "" {
		if h1 := findFirst(doc, func(n *html.Node) bool { return n.DataAtom == atom.H1 && n.Type == html.ElementNode }); h1 != nil {
			a.Title = collapseSpaces(textContent(h1, " "))
		}
	}

	if meta := findFirst(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Meta && strings.EqualFold(attr(n, "name"), "description")
	}); meta != nil {
		a.Description = strings.TrimSpace(attr(meta, "content"))
	}

	removeAll(doc, atom.Script, atom.Style, atom.Nav, atom.Footer, atom.Header, atom.Noscript)

	root := findFirst(doc, func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == atom.Article })
	if root == nil {
		root = findFirst(doc, func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == atom.Main })
	}

	if root == nil {
		root = findFirst(doc, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.DataAtom == atom.Div && contentClassRe.MatchString(attr(n, "class"))
		})
	}

	if root == nil {
		root = findFirst(doc, func(n *html.Node) bool { return n.Type == html.ElementNode && n.DataAtom == atom.Body })
	}

	if root != nil {
		text := blankLinesRe.ReplaceAllString(textContent(root, "\n"), "\n\n")
		a.Content = truncate(text, MaxContentLength)
	}

	return a
}

// ValidURL reports whether s is an absolute http(s) URL.
func ValidURL(s string) bool {
	return (strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")) && host(s) != ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}

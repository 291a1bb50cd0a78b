package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/hupe1980/assistants/logging"
)

// Search endpoints.
const (
	DefaultGoogleURL     = "https://www.googleapis.com/customsearch/v1"
	DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"
)

// UserAgent is sent with scraping requests.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// MaxSearchResults caps num_results.
const MaxSearchResults = 10

// ErrNotConfigured is returned by a searcher that lacks credentials.
var ErrNotConfigured = errors.New("search provider not configured")

// Result is one web search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Searcher runs web searches.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, n int) ([]Result, error)
}

// GoogleSearcher queries the Custom Search JSON API.
type GoogleSearcher struct {
	APIKey   string
	EngineID string
	Endpoint string
	Client   *http.Client
}

func (g *GoogleSearcher) Name() string { return "google" }

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search implements Searcher.
func (g *GoogleSearcher) Search(ctx context.Context, query string, n int) ([]Result, error) {
	if g.APIKey == "" || g.EngineID == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("key", g.APIKey)
	q.Set("cx", g.EngineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(min(n, MaxSearchResults)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, orDefault(g.Endpoint, DefaultGoogleURL)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := httpClient(g.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("search API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API error: unexpected status %d", resp.StatusCode)
	}

	var body googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	results := make([]Result, 0, len(body.Items))
	for _, it := range body.Items {
		results = append(results, Result{Title: it.Title, Link: it.Link, Snippet: it.Snippet, Source: host(it.Link)})
	}

	return results, nil
}

// DuckDuckGoSearcher scrapes the DuckDuckGo HTML endpoint.
type DuckDuckGoSearcher struct {
	Endpoint string
	Client   *http.Client
}

func (d *DuckDuckGoSearcher) Name() string { return "duckduckgo" }

// Search implements Searcher.
func (d *DuckDuckGoSearcher) Search(ctx context.Context, query string, n int) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, orDefault(d.Endpoint, DefaultDuckDuckGoURL)+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)

	resp, err := httpClient(d.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("DuckDuckGo search error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("DuckDuckGo search error: unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("DuckDuckGo search error: %w", err)
	}

	var results []Result

	for _, div := range findAll(doc, func(nd *html.Node) bool { return isElement(nd, "div") && hasClass(nd, "result") }) {
		if len(results) >= n {
			break
		}

		title := findFirst(div, func(nd *html.Node) bool { return isElement(nd, "a") && hasClass(nd, "result__a") })
		if title == nil {
			continue
		}

		link := resolveDuckDuckGoLink(attr(title, "href"))

		var snippet string
		if s := findFirst(div, func(nd *html.Node) bool { return hasClass(nd, "result__snippet") }); s != nil {
			snippet = collapseSpaces(textContent(s, " "))
		}

		results = append(results, Result{
			Title:   collapseSpaces(textContent(title, " ")),
			Link:    link,
			Snippet: snippet,
			Source:  host(link),
		})
	}

	return results, nil
}

// resolveDuckDuckGoLink unwraps "//duckduckgo.com/l/?uddg=<target>" redirects.
func resolveDuckDuckGoLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}

	if target := u.Query().Get("uddg"); target != "" {
		return target
	}

	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}

	return href
}

// SimulatedSearcher returns placeholder results so the assistant keeps
// working without network access.
type SimulatedSearcher struct{}

func (SimulatedSearcher) Name() string { return "simulated" }

// Search implements Searcher.
func (SimulatedSearcher) Search(_ context.Context, query string, n int) ([]Result, error) {
	n = min(n, 5)
	results := make([]Result, 0, n)

	for i := 1; i <= n; i++ {
		results = append(results, Result{
			Title:   fmt.Sprintf("Article %d: %s", i, query),
			Link:    fmt.Sprintf("https://example.com/article-%d-%s", i, strings.ReplaceAll(query, " ", "-")),
			Snippet: fmt.Sprintf("This is a sample article about %s. It provides comprehensive information on the topic, including key concepts, recent developments, and practical applications. This is a simulated search result.", query),
			Source:  "example.com",
		})
	}

	return results, nil
}

// FallbackSearcher tries each searcher in order and returns the first
// successful, non-empty answer. The last searcher's result is returned as is.
type FallbackSearcher struct {
	Searchers []Searcher
	Logger    logging.Logger
}

func (f *FallbackSearcher) Name() string { return "fallback" }

// Search implements Searcher.
func (f *FallbackSearcher) Search(ctx context.Context, query string, n int) ([]Result, error) {
	var lastErr error

	for i, s := range f.Searchers {
		results, err := s.Search(ctx, query, n)
		if err == nil && (len(results) > 0 || i == len(f.Searchers)-1) {
			f.logger().Debug("research.search.provider", "provider", s.Name(), "results", len(results))
			return results, nil
		}

		if err != nil && !errors.Is(err, ErrNotConfigured) {
			f.logger().Warn("research.search.failed", "provider", s.Name(), "error", err.Error())
		}

		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no search provider available")
	}

	return nil, lastErr
}

func (f *FallbackSearcher) logger() logging.Logger {
	if f.Logger == nil {
		return logging.NoOpLogger{}
	}
	return f.Logger
}

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func host(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Host
}

package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
}

// ScrapedPage is one fetched page with its extracted main content.
type ScrapedPage struct {
	URL     string
	Title   string
	Content string
}

// Scraper fetches same-host pages breadth-limited by depth, rate limited
// with a token bucket.
type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
	}, nil
}

func New(baseURL string) *Scraper {
	s, _ := NewWithConfig(ScraperConfig{
		BaseURL: baseURL,
	})
	return s
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != s.baseHost {
		return false
	}

	path := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range s.config.AllowedExtensions {
		if strings.HasSuffix(path, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func (s *Scraper) cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")

	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

func (s *Scraper) extractMainContent(doc *goquery.Document) string {
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
		".documentation",
		"#documentation",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if content == "" {
		content = doc.Find("body").Text()
	}

	return s.cleanContent(content)
}

// Scrape crawls from the given URL and returns the pages in visit order.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) ([]ScrapedPage, error) {
	var pages []ScrapedPage
	err := s.scrapeRecursive(ctx, rawURL, 0, &pages)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages scraped from %s", rawURL)
	}
	return pages, nil
}

func (s *Scraper) scrapeRecursive(ctx context.Context, urlStr string, depth int, pages *[]ScrapedPage) error {
	if depth > s.config.MaxDepth || s.visited[urlStr] {
		return nil
	}

	if !s.shouldProcessURL(urlStr) {
		return nil
	}

	s.visited[urlStr] = true
	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	*pages = append(*pages, ScrapedPage{
		URL:     urlStr,
		Title:   strings.TrimSpace(doc.Find("title").Text()),
		Content: s.extractMainContent(doc),
	})

	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, exists := selection.Attr("href")
		if !exists {
			return
		}

		absoluteURL, err := url.Parse(href)
		if err != nil {
			zap.L().Debug("skipping unparseable link", zap.String("href", href))
			return
		}

		if !absoluteURL.IsAbs() {
			base, err := url.Parse(urlStr)
			if err != nil {
				return
			}
			absoluteURL = base.ResolveReference(absoluteURL)
		}

		if err := s.scrapeRecursive(ctx, absoluteURL.String(), depth+1, pages); err != nil {
			zap.L().Debug("failed to scrape link",
				zap.String("url", absoluteURL.String()), zap.Error(err))
		}
	})

	return nil
}

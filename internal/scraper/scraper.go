// Package scraper fetches page titles for links that were added with no
// name beyond their URL.
package scraper

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const defaultTimeout = 10 * time.Second

// Scraper performs best-effort title lookups over HTTP.
type Scraper struct {
	client    *http.Client
	userAgent string
}

// New creates a Scraper with a sane request timeout.
func New() *Scraper {
	return &Scraper{
		client:    &http.Client{Timeout: defaultTimeout},
		userAgent: "linkmark/1.0",
	}
}

// NewWithClient creates a Scraper around a custom HTTP client.
func NewWithClient(client *http.Client) *Scraper {
	return &Scraper{client: client, userAgent: "linkmark/1.0"}
}

// FetchTitle downloads the page and returns the text of its <title>
// element.
func (s *Scraper) FetchTitle(url string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("fetch %s: not an html page (%s)", url, ct)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return "", err
	}

	title := findTitle(doc)
	if title == "" {
		return "", fmt.Errorf("fetch %s: no title element", url)
	}
	return title, nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}

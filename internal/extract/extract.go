// Package extract fetches a remote page and reduces it to a cleaned
// markdown fragment suitable for a source block.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/nibzard/ctxt/internal/apperr"
	"github.com/nibzard/ctxt/internal/models"
)

// Client fetches and converts remote pages.
type Client struct {
	http      *http.Client
	userAgent string
}

// New creates a client with the given timeout.
func New(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = "ctxt/1.0"
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// ValidateURL rejects anything that is not a plain http(s) URL before any
// network traffic happens.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", apperr.ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", apperr.ErrInvalidInput)
	}
	if u.User != nil {
		return fmt.Errorf("%w: credentials in url", apperr.ErrInvalidInput)
	}
	return nil
}

// Fetch downloads the page and converts its main content to markdown.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*models.Extraction, error) {
	if err := ValidateURL(pageURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("extract: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extract: fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("extract: read body: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}

	title, description := headMeta(doc)
	content := contentNode(doc)
	stripNoise(content)

	md, err := htmltomarkdown.ConvertNode(content)
	if err != nil {
		return nil, fmt.Errorf("extract: convert to markdown: %w", err)
	}

	text := strings.TrimSpace(string(md))
	if text == "" {
		return nil, fmt.Errorf("extract: %s: no readable content", pageURL)
	}

	return &models.Extraction{
		SourceURL:   pageURL,
		Title:       title,
		Body:        text,
		Description: description,
	}, nil
}

// contentNode picks the most content-bearing element: article, then main,
// then body, then the whole document.
func contentNode(doc *html.Node) *html.Node {
	for _, tag := range []string{"article", "main", "body"} {
		if n := findByTag(doc, tag); n != nil {
			return n
		}
	}
	return doc
}

func findByTag(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// stripNoise removes script, style, and chrome elements in place.
func stripNoise(n *html.Node) {
	var drop []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			switch c.Data {
			case "script", "style", "noscript", "nav", "header", "footer", "aside":
				drop = append(drop, c)
				continue
			}
		}
		stripNoise(c)
	}
	for _, c := range drop {
		n.RemoveChild(c)
	}
}

// headMeta pulls the page title and meta description from the head. An
// og:title overrides the title element when present.
func headMeta(doc *html.Node) (title, description string) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				var name, property, content string
				for _, a := range n.Attr {
					switch a.Key {
					case "name":
						name = a.Val
					case "property":
						property = a.Val
					case "content":
						content = a.Val
					}
				}
				if property == "og:title" && content != "" {
					title = content
				}
				if (name == "description" || property == "og:description") && description == "" {
					description = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title, description
}

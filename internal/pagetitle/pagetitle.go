// Package pagetitle finds a human readable title for a saved link.
package pagetitle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	maxBodyBytes = 1 << 20
)

type Resolver struct {
	client *http.Client
	log    *slog.Logger
}

func NewResolver(timeout time.Duration, log *slog.Logger) *Resolver {
	return &Resolver{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Resolve fetches rawURL and returns its og:title, falling back to <title>.
// An empty string with a nil error means the page has no title.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req) //nolint:gosec // URL is chosen by the owner
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			r.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL,
				"operation", "Resolve")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	if content, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
		if title := collapseSpaces(content); title != "" {
			return title, nil
		}
	}

	return collapseSpaces(doc.Find("head > title").First().Text()), nil
}

// FromURL derives a title from the last path segment of rawURL, e.g.
// "https://example.com/blog/my-first_post.html" becomes "my first post".
// Without a usable segment the hostname is used, and an unparsable URL is
// returned as is.
func FromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}

	segments := strings.FieldsFunc(u.EscapedPath(), func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return u.Hostname()
	}

	last := segments[len(segments)-1]
	if ext := path.Ext(last); len(ext) > 1 {
		last = strings.TrimSuffix(last, ext)
	}

	name, err := url.PathUnescape(last)
	if err != nil {
		return rawURL
	}

	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	if name == "" {
		return u.Hostname()
	}

	return name
}

// Domain is the hostname of rawURL, or rawURL itself when it cannot be
// parsed.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}

	return u.Hostname()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

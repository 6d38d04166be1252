package pagetitle_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"readlater/internal/pagetitle"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "Open Graph title wins",
			body: `<html><head><title>Plain</title>` +
				`<meta property="og:title" content="  Graph   title "></head></html>`,
			want: "Graph title",
		},
		{
			name: "Title element",
			body: "<html><head><title>\n  Plain &amp; simple\n</title></head></html>",
			want: "Plain & simple",
		},
		{
			name: "Empty Open Graph falls back",
			body: `<html><head><meta property="og:title" content=" "><title>Plain</title></head></html>`,
			want: "Plain",
		},
		{
			name: "No title",
			body: "<html><body>hi</body></html>",
			want: "",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				fmt.Fprint(w, test.body)
			}))
			defer srv.Close()

			r := pagetitle.NewResolver(time.Second, slog.Default())

			got, err := r.Resolve(context.Background(), srv.URL)
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}
}

func TestResolveRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := pagetitle.NewResolver(time.Second, slog.Default()).Resolve(context.Background(), srv.URL)
	require.ErrorContains(t, err, "unexpected status: 404")
}

func TestFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/blog/my-first_post.html", "my first post"},
		{"https://example.com/archive.tar.gz", "archive.tar"},
		{"https://example.com/", "example.com"},
		{"https://example.com", "example.com"},
		{"https://example.com/docs/", "docs"},
		{"https://example.com/%E6%97%A5%E6%9C%AC-go", "日本 go"},
		{"https://example.com/.hidden", "example.com"},
		{"https://example.com/bad%zz", "https://example.com/bad%zz"},
		{"not a url", "not a url"},
	}

	for _, test := range tests {
		t.Run(test.url, func(t *testing.T) {
			require.Equal(t, test.want, pagetitle.FromURL(test.url))
		})
	}
}

func TestDomain(t *testing.T) {
	require.Equal(t, "news.example.com", pagetitle.Domain("https://news.example.com:8443/a?b=c"))
	require.Equal(t, "::not a url", pagetitle.Domain("::not a url"))
}

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

const maxPageBytes = 5 << 20

// PDFLinks fetches the HTML page at pageURL and returns the absolute URLs of
// every anchor whose path ends in ".pdf", in page order without repeats.
func (f *Fetcher) PDFLinks(ctx context.Context, pageURL string) ([]string, error) {
	u, err := f.guard.Validate(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	resp, err := f.get(ctx, u)
	if err != nil {
		if errors.Is(err, ErrUnsafeURL) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: server returned %s", ErrFetchFailed, u.Redacted(), resp.Status)
	}

	links, err := ExtractPDFLinks(io.LimitReader(resp.Body, maxPageBytes), u)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrFetchFailed, u.Redacted(), err)
	}
	f.logger.Info("Scraped page", "url", u.Redacted(), "pdf_links", len(links))
	return links, nil
}

// ExtractPDFLinks tokenizes an HTML document and resolves PDF anchors against base.
func ExtractPDFLinks(r io.Reader, base *url.URL) ([]string, error) {
	z := html.NewTokenizer(r)
	seen := make(map[string]bool)
	var links []string

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			return links, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					if link, ok := resolvePDF(base, string(val)); ok && !seen[link] {
						seen[link] = true
						links = append(links, link)
					}
				}
				if !more {
					break
				}
			}
		}
	}
}

func resolvePDF(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(path.Ext(abs.Path), ".pdf") {
		return "", false
	}
	abs.Fragment = ""
	return abs.String(), true
}

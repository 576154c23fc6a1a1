package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultFileName is used when a URL path has no usable base name.
	DefaultFileName = "downloaded.pdf"

	// DefaultMaxBytes caps a single download.
	DefaultMaxBytes = 100 << 20

	defaultTimeout = 60 * time.Second
	userAgent      = "pdf-ingest/1.0"
)

// Fetcher downloads documents over HTTP(S) after checking them with a Guard.
// Redirects are never followed, and every connection is re-checked at dial
// time so a host cannot rebind to an internal address after validation.
type Fetcher struct {
	guard    *Guard
	client   *http.Client
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

// NewFetcher returns a Fetcher writing into dir.
func NewFetcher(guard *Guard, dir string, maxBytes int64, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			ap, err := netip.ParseAddrPort(address)
			if err != nil {
				return fmt.Errorf("%w: dial %s: %v", ErrUnsafeURL, address, err)
			}
			return guard.CheckAddr(ap.Addr())
		},
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Fetcher{
		guard: guard,
		client: &http.Client{
			Transport: transport,
			Timeout:   defaultTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Dir is the directory downloads are written to.
func (f *Fetcher) Dir() string {
	return f.dir
}

// FileName derives the local file name for u: the base of its path, or
// DefaultFileName when the path has none.
func FileName(u *url.URL) string {
	name := path.Base(strings.TrimRight(u.Path, "/"))
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		return DefaultFileName
	}
	return name
}

// newDownloadDir creates a unique directory under base so downloads that
// share a file name never overwrite each other.
func newDownloadDir(base string) (string, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	dir, err := os.MkdirTemp(base, "dl-")
	if err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	return dir, nil
}

// Download validates rawURL, fetches it and stores it in a fresh
// subdirectory of the working directory, keeping the URL's file name. It
// returns the local path.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (string, error) {
	u, err := f.guard.Validate(ctx, rawURL)
	if err != nil {
		return "", err
	}

	dir, err := newDownloadDir(f.dir)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, FileName(u))

	operation := func() error {
		return f.downloadOnce(ctx, u, dest)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		_ = os.RemoveAll(dir)
		if errors.Is(err, ErrUnsafeURL) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", ErrFetchFailed, u.Redacted(), err)
	}

	f.logger.Info("Downloaded document", "url", u.Redacted(), "path", dest)
	return dest, nil
}

// downloadOnce performs one attempt. Client errors and unsafe dials are
// permanent; network errors and 5xx responses are retried.
func (f *Fetcher) downloadOnce(ctx context.Context, u *url.URL, dest string) error {
	resp, err := f.get(ctx, u)
	if err != nil {
		if errors.Is(err, ErrUnsafeURL) {
			return backoff.Permanent(err)
		}
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		return backoff.Permanent(fmt.Errorf("redirect to %q not followed", resp.Header.Get("Location")))
	case resp.StatusCode >= 500:
		return fmt.Errorf("server returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(fmt.Errorf("server returned %s", resp.Status))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create temp file: %w", err))
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if n > f.maxBytes {
		return backoff.Permanent(fmt.Errorf("body exceeds %d bytes", f.maxBytes))
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return backoff.Permanent(fmt.Errorf("store download: %w", err))
	}
	return nil
}

func (f *Fetcher) get(ctx context.Context, u *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return f.client.Do(req)
}

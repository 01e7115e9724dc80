// Package download fetches release artifacts over HTTP into a local cache
// directory. The relaybin provisioner uses it to pull relay binaries and
// checksum files from a release host, re-running tests hit the disk cache
// instead of the network.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/nostrkit/relayd/closer"
	"github.com/nostrkit/relayd/httpclient"
	"github.com/nostrkit/relayd/o11y"
)

// Downloader caches downloads under one root directory, keyed by the path
// part of each artifact URL. All downloads share one HTTP client and its
// retry budget.
type Downloader struct {
	dir            string
	client         *httpclient.Client
	attemptTimeout time.Duration
}

// Option tweaks a Downloader at construction time.
type Option func(d *Downloader)

// AttemptTimeout overrides the default 30s timeout applied to each
// individual download attempt.
func AttemptTimeout(timeout time.Duration) Option {
	return func(d *Downloader) {
		d.attemptTimeout = timeout
	}
}

// NewDownloader readies a download tree rooted at dir, creating the
// directory if needed. timeout bounds the total time spent on any one
// download including retries.
func NewDownloader(timeout time.Duration, dir string, options ...Option) (*Downloader, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("could not resolve download dir: %w", err)
	}

	// #nosec - the download tree is deliberately world-readable
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create download dir: %w", err)
	}

	d := &Downloader{
		dir: dir,
		client: httpclient.New(httpclient.Config{
			Name:    "downloader",
			Timeout: timeout,
		}),
	}
	for _, o := range options {
		o(d)
	}
	return d, nil
}

// Download fetches rawURL into the cache and returns the path of the local
// copy. The location under the cache root mirrors the URL path. If a
// previous Download already fetched this URL the cached file is returned
// without touching the network.
func (d *Downloader) Download(ctx context.Context, rawURL string, perm os.FileMode) (path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("cannot parse URL: %w", err)
	}

	target := d.targetPath(u)
	tmp := target + ".tmp"

	// A failed or panicked download must not leave partial files behind,
	// they would be mistaken for cached artifacts next time around.
	defer func() {
		if p := recover(); p != nil {
			discard(target, tmp)
			panic(p)
		}
		if err != nil {
			discard(target, tmp)
		}
	}()

	if d.cached(ctx, target) {
		return target, nil
	}

	if err = d.fetch(ctx, u.String(), tmp, perm); err != nil {
		return "", err
	}
	if err = os.Rename(tmp, target); err != nil {
		return "", err
	}
	return target, nil
}

// Remove deletes the cached artifact previously downloaded from rawURL.
// A file that is already gone is not an error.
func (d *Downloader) Remove(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("cannot parse URL: %w", err)
	}
	err = os.Remove(d.targetPath(u))
	pathErr := &os.PathError{}
	if errors.As(err, &pathErr) {
		return nil
	}
	return err
}

func (d *Downloader) targetPath(u *url.URL) string {
	return filepath.Join(d.dir, u.Path)
}

func (d *Downloader) cached(ctx context.Context, target string) bool {
	info, err := os.Stat(target)
	if err != nil {
		if !os.IsNotExist(err) {
			o11y.AddField(ctx, "download_stat_error", err)
		}
		return false
	}
	return !info.IsDir()
}

func discard(target, tmp string) {
	_ = os.Remove(tmp)
	_ = os.Remove(target)
}

func (d *Downloader) fetch(ctx context.Context, rawURL, target string, perm os.FileMode) (err error) {
	// #nosec - the download tree is deliberately world-readable
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("could not create directory: %w", err)
	}

	// #nosec:G304 G302 - relay binaries have to end up executable
	//nolint:bodyclose // closed by the closer
	out, err := os.OpenFile(target, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer closer.ErrorHandler(out, &err)

	timeout := d.attemptTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// The raw URL is used as the route directly, NewRequest would treat
	// any escaping in it as format verbs.
	err = d.client.Call(ctx, httpclient.Request{
		Method:  "GET",
		Route:   rawURL,
		Timeout: timeout,
		Decoder: func(r io.Reader) error {
			if _, err := io.Copy(out, r); err != nil {
				return fmt.Errorf("could not write file %q: %w", target, err)
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("could not get URL %q: %w", rawURL, err)
	}
	return nil
}

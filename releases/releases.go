/*
Package releases finds the latest release and download URLs for binaries
published to a file based release server.
*/
package releases

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/nostrkit/relayd/httpclient"
)

var ErrNotFound = errors.New("not found")

type Requirements struct {
	Version string `json:"version"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

// Releases resolves versions and artifact URLs using the release structure:
// a release.txt with the current version, and a checksums.txt per version
// listing each artifact as "<sha256> *<os>/<arch>/<binary>".
type Releases struct {
	baseURL string
	client  *httpclient.Client
}

func New(baseURL string) *Releases {
	return &Releases{
		baseURL: baseURL,
		client: httpclient.New(httpclient.Config{
			Name:    "releases",
			BaseURL: baseURL,
			Timeout: time.Minute,
		}),
	}
}

// Version gets the latest released version of the artifact.
func (r *Releases) Version(ctx context.Context) (string, error) {
	var raw string
	req := httpclient.NewRequest("GET", "/release.txt", 10*time.Second)
	req.Decoder = httpclient.NewStringDecoder(&raw)
	err := r.client.Call(ctx, req)
	if err != nil {
		return "", asNotFound(err)
	}
	return decodeVersion(raw)
}

func decodeVersion(raw string) (string, error) {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	if !scanner.Scan() {
		return "", ErrNotFound
	}
	return scanner.Text(), nil
}

// ResolveURL gets the raw download URL for the first artifact of a release
// matching the requirements (version, OS, arch).
func (r *Releases) ResolveURL(ctx context.Context, rq Requirements) (string, error) {
	raw, err := r.checksums(ctx, rq.Version)
	if err != nil {
		return "", err
	}

	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		txt := scanner.Text()
		if strings.Contains(txt, rq.OS) && strings.Contains(txt, rq.Arch) {
			return fmt.Sprintf("%s/%s/%s", r.baseURL, rq.Version, fileName(txt)), nil
		}
	}
	return "", ErrNotFound
}

// ResolveURLs gets the raw download URLs for all the artifacts of a release
// matching the requirements, keyed by binary name.
func (r *Releases) ResolveURLs(ctx context.Context, rq Requirements) (map[string]string, error) {
	raw, err := r.checksums(ctx, rq.Version)
	if err != nil {
		return nil, err
	}

	urls := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		txt := scanner.Text()
		if strings.Contains(txt, rq.OS) && strings.Contains(txt, rq.Arch) {
			filename := fileName(txt)
			urls[path.Base(filename)] = fmt.Sprintf("%s/%s/%s", r.baseURL, rq.Version, filename)
		}
	}
	if len(urls) == 0 {
		return nil, ErrNotFound
	}
	return urls, nil
}

func (r *Releases) checksums(ctx context.Context, version string) (string, error) {
	var raw string
	req := httpclient.NewRequest("GET", "/%s/checksums.txt", 10*time.Second, version)
	req.Decoder = httpclient.NewStringDecoder(&raw)
	err := r.client.Call(ctx, req)
	if err != nil {
		return "", asNotFound(err)
	}
	return raw, nil
}

// fileName extracts the artifact path from a checksums.txt line. With some
// releases the file part is stored with a leading *./ or */
func fileName(line string) string {
	parts := strings.Split(line, " ")
	filename := path.Clean(parts[1][1:])
	return strings.TrimPrefix(filename, "/")
}

func asNotFound(err error) error {
	httpErr := &httpclient.HTTPError{}
	if errors.As(err, &httpErr) {
		return ErrNotFound
	}
	return err
}

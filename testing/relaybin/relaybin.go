/*
Package relaybin downloads released relay binaries for use in acceptance
tests, resolving the version and platform specific artifact from a file
based release server.
*/
package relaybin

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/nostrkit/relayd/releases"
	"github.com/nostrkit/relayd/releases/download"
)

// Config is the configuration for the Download helper
type Config struct {
	// BaseURL is the url of the file based binary release server
	BaseURL string
	// Which is the application to download
	Which string
	// Binary is the binary to download. If empty it will default to the value of Which
	Binary string
	// Pinned if set will use this version to download
	Pinned string
	// Dir is the directory to download into, if empty will default to ../bin
	Dir string
	// AttemptTimeout bounds each individual download attempt. Attempts that
	// exceed it are abandoned and retried.
	AttemptTimeout time.Duration
}

// Download fetches the latest (or pinned) release of the configured binary
// and returns the path it was downloaded to. Downloads are cached by version,
// repeat calls for an already present version do not hit the server.
func Download(ctx context.Context, conf Config) (string, error) {
	rel := releases.New(strings.TrimSuffix(conf.BaseURL, "/") + "/" + conf.Which)

	ver := conf.Pinned
	if ver == "" {
		var err error
		ver, err = rel.Version(ctx)
		if err != nil {
			return "", fmt.Errorf("version failed: %w", err)
		}
	}

	urls, err := rel.ResolveURLs(ctx, releases.Requirements{
		Version: ver,
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	})
	if err != nil {
		return "", fmt.Errorf("resolve failed: %w", err)
	}

	if conf.Binary == "" {
		conf.Binary = conf.Which
	}

	binURL, ok := urls[conf.Binary]
	if !ok {
		return "", fmt.Errorf("resolve binary failed: %s", conf.Binary)
	}

	// default the download directory to bin
	if conf.Dir == "" {
		conf.Dir = "../bin"
	}

	var opts []download.Option
	if conf.AttemptTimeout > 0 {
		opts = append(opts, download.AttemptTimeout(conf.AttemptTimeout))
	}
	dl, err := download.NewDownloader(time.Minute, conf.Dir, opts...)
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	path, err := dl.Download(ctx, binURL, 0o700)
	if err != nil {
		return "", fmt.Errorf("download (%s) problem: %w", binURL, err)
	}
	const winExeExtension = ".exe"
	if runtime.GOOS == "windows" && !strings.HasSuffix(path, winExeExtension) {
		path += winExeExtension
	}
	return path, nil
}

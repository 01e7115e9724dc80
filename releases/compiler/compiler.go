// Package compiler builds Go binaries for tests, several at a time, with a
// consistent set of build flags.
package compiler

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

type builder struct {
	baseDir string
	ldFlags string
}

func newBuilder(baseDir, ldFlags string) *builder {
	return &builder{
		baseDir: baseDir,
		ldFlags: ldFlags,
	}
}

func (b *builder) Dir() string {
	return b.baseDir
}

// Work describes one binary to build.
type Work struct {
	// Name the binary is written under in the build directory.
	Name string
	// Target is the directory to run the build from, usually the repo root.
	Target string
	// Source is the path of the main package, relative to Target.
	Source string
	// Environment is extra environment for the build, GOOS and GOARCH
	// overrides go here.
	Environment []string

	// Result, when non-nil, receives the built binary's path. Work whose
	// Result is already filled in is skipped, so shared fixtures build once.
	Result *string
}

// Compile builds the main package at work.Source into the build directory
// and returns the binary's path, storing it in work.Result as well when set.
func (b *builder) Compile(ctx context.Context, work Work) (string, error) {
	dir, err := filepath.Abs(work.Target)
	if err != nil {
		return "", err
	}

	out := outputPath(b.baseDir, work.Name, targetGOOS(work.Environment))

	// #nosec G204 - building the caller's own source
	cmd := exec.CommandContext(ctx, goTool(), "build",
		"-ldflags="+b.ldFlags,
		"-o", out,
		work.Source,
	)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	cmd.Env = append(cmd.Env, work.Environment...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", err
	}

	if work.Result != nil {
		*work.Result = out
	}
	return out, nil
}

// targetGOOS is the GOOS the build will use, the last one in env winning,
// falling back to the host's.
func targetGOOS(env []string) string {
	goos := runtime.GOOS
	for _, e := range env {
		if k, v, ok := strings.Cut(e, "="); ok && k == "GOOS" {
			goos = v
		}
	}
	return goos
}

func goTool() string {
	if goroot := os.Getenv("GOROOT"); goroot != "" {
		return filepath.Join(goroot, "bin", "go")
	}
	return "go"
}

func outputPath(dir, name, goos string) string {
	if goos == "windows" {
		name += ".exe"
	}
	return filepath.Join(dir, name)
}

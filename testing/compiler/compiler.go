package compiler

import (
	"context"
	"os"

	"github.com/nostrkit/relayd/releases/compiler"
)

type Work = compiler.Work

// Compiler builds test binaries into a temporary directory.
type Compiler struct {
	compiler *compiler.Parallel
}

func New() *Compiler {
	tempDir, err := os.MkdirTemp("", "acceptance-tests")
	if err != nil {
		panic(err)
	}

	return &Compiler{
		compiler: compiler.New(compiler.Config{
			BaseDir:     tempDir,
			LDFlags:     "-w -s",
			Parallelism: 2,
		}),
	}
}

func (c *Compiler) Dir() string {
	return c.compiler.Dir()
}

func (c *Compiler) Cleanup() {
	_ = os.RemoveAll(c.compiler.Dir())
}

// Compile a single binary for testing. The work's Target is the directory to
// build from, typically the repo root, and Source is the path to the main
// package relative to Target.
func (c *Compiler) Compile(ctx context.Context, work Work) (string, error) {
	var path string
	if work.Result == nil {
		work.Result = &path
	}
	err := c.compiler.Run(ctx, work)
	if err != nil {
		return "", err
	}
	return *work.Result, nil
}

// Run compiles all the work in parallel.
func (c *Compiler) Run(ctx context.Context, work ...Work) error {
	return c.compiler.Run(ctx, work...)
}

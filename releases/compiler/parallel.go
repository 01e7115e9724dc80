package compiler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	// BaseDir is where the binaries end up.
	BaseDir string
	// LDFlags are passed to every build.
	LDFlags string
	// Parallelism caps the concurrent builds. Defaults to 2.
	Parallelism int
}

// Parallel compiles batches of binaries concurrently.
type Parallel struct {
	builder     *builder
	parallelism int
}

func New(cfg Config) *Parallel {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 2
	}

	return &Parallel{
		builder:     newBuilder(cfg.BaseDir, cfg.LDFlags),
		parallelism: cfg.Parallelism,
	}
}

// Dir is the directory the binaries are built into.
func (p *Parallel) Dir() string {
	return p.builder.Dir()
}

// Run builds all the work, at most Parallelism at a time. Work that already
// carries a Result value is skipped. The first failed build stops the batch.
func (p *Parallel) Run(ctx context.Context, work ...Work) error {
	pending := make(chan Work, len(work))
	for _, w := range work {
		if w.Result != nil && *w.Result != "" {
			continue
		}
		mustBeComplete(w)
		pending <- w
	}
	close(pending)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.parallelism; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case w, ok := <-pending:
					if !ok {
						return nil
					}
					if _, err := p.builder.Compile(ctx, w); err != nil {
						return err
					}
				}
			}
		})
	}
	return g.Wait()
}

func mustBeComplete(w Work) {
	if w.Name == "" {
		panic("work.Name not set")
	}
	if w.Target == "" {
		panic("work.Target not set")
	}
	if w.Source == "" {
		panic("work.Source not set")
	}
}

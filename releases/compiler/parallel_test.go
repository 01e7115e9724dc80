package compiler

import (
	"context"
	"os"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
	"gotest.tools/v3/icmd"
)

func TestParallel_Run(t *testing.T) {
	buildDir := fs.NewDir(t, "compiler-test")

	p := New(Config{
		BaseDir:     buildDir.Path(),
		LDFlags:     "-w -s",
		Parallelism: 2,
	})

	var one, two string

	assert.Assert(t, t.Run("Compile binaries", func(t *testing.T) {
		err := p.Run(context.Background(),
			Work{
				Result: &one,
				Name:   "stub-one",
				Target: "../..",
				Source: "./testing/compiler/internal/cmd",
			},
			Work{
				Result: &two,
				Name:   "stub-two",
				Target: "../..",
				Source: "./testing/compiler/internal/cmd2",
			},
		)
		assert.Check(t, err)

		_, err = os.Stat(one)
		assert.Check(t, err)
		_, err = os.Stat(two)
		assert.Check(t, err)
	}))

	t.Run("Run binaries", func(t *testing.T) {
		res := icmd.RunCommand(one, "--port", "7447")
		assert.Check(t, res.Equal(icmd.Expected{
			Out: "stub one: [--port 7447]",
		}))

		res = icmd.RunCommand(two, "--port", "7448")
		assert.Check(t, res.Equal(icmd.Expected{
			Out: "stub two: [--port 7448]",
		}))
	})
}

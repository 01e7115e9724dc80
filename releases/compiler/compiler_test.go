package compiler

import (
	"context"
	"os"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
	"gotest.tools/v3/icmd"
)

func TestBuilder_Compile(t *testing.T) {
	buildDir := fs.NewDir(t, "compiler-test")

	b := newBuilder(buildDir.Path(), "-w -s")

	binary := ""
	assert.Assert(t, t.Run("Compile binary", func(t *testing.T) {
		var err error
		binary, err = b.Compile(context.Background(), Work{
			Name:        "stub-one",
			Target:      "../..",
			Source:      "./testing/compiler/internal/cmd",
			Environment: []string{"STUB_FLAVOUR=one"},
		})
		assert.Assert(t, err)
		_, err = os.Stat(binary)
		assert.Check(t, err)
	}))

	t.Run("Run binary", func(t *testing.T) {
		res := icmd.RunCommand(binary, "--port", "7447")
		assert.Check(t, res.Equal(icmd.Expected{
			Out: "stub one: [--port 7447]",
		}))
	})
}

// Package kongtest renders a kong CLI's help text for assertions.
package kongtest

import (
	"bytes"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

// Help parses --help against cli and returns what kong printed. The exit
// func is captured rather than honoured, a help parse must not kill the
// test binary.
func Help(t *testing.T, cli interface{}) string {
	var out bytes.Buffer
	exit := -1

	app, err := kong.New(cli,
		kong.Name("test-app"),
		kong.Writers(&out, &out),
		kong.Exit(func(code int) {
			exit = code
		}),
	)
	assert.Check(t, err)

	_, err = app.Parse([]string{"--help"})
	assert.Check(t, err)
	assert.Check(t, cmp.Equal(0, exit))

	return out.String()
}

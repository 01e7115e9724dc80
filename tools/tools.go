//go:build tools

// The blank imports pin the repo's dev tooling in go.mod so everyone runs
// the same versions.
package tools

import (
	_ "github.com/golangci/golangci-lint/cmd/golangci-lint"
	_ "github.com/rinchsan/gosimports/cmd/gosimports"
	_ "gotest.tools/gotestsum"
)

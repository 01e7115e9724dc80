/*
Package relayfixture starts a private nostr relay for a test, and tears it
down when the test finishes.
*/
package relayfixture

import (
	"context"
	"errors"
	"os"

	"gotest.tools/v3/assert"

	"github.com/nostrkit/relayd"
	"github.com/nostrkit/relayd/config/env"
	"github.com/nostrkit/relayd/o11y"
	"github.com/nostrkit/relayd/testing/internal/types"
)

var mustRunAllTests = os.Getenv("CI") == "true"

// Setup starts a relay as configured by cfg and registers its teardown with
// t.Cleanup. If no relay binary can be resolved the test is skipped, except
// on CI where a missing binary fails the test instead.
//
// The readiness budget can be overridden with RELAYD_START_TIMEOUT; when it
// is left at its default it is doubled on CI to allow for slower runners.
func Setup(ctx context.Context, t types.TestingTB, cfg relayd.Config) *relayd.Relay {
	t.Helper()
	ctx, span := o11y.StartSpan(ctx, "relayfixture: setup")
	defer span.End()

	loadEnv(t, &cfg)
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = relayd.DefaultStartTimeout
		if mustRunAllTests {
			cfg.StartTimeout *= 2
		}
	}

	relay, err := relayd.Start(ctx, cfg)
	if errors.Is(err, relayd.ErrBinaryNotFound) && !mustRunAllTests {
		t.Skip("relay binary not available:", err)
	}
	assert.Assert(t, err)

	span.AddField("url", relay.URL())
	t.Cleanup(func() {
		relay.Stop(ctx)
	})

	return relay
}

func loadEnv(t types.TestingTB, cfg *relayd.Config) {
	load := env.NewLoader()
	load.Duration(&cfg.StartTimeout, "RELAYD_START_TIMEOUT")
	assert.Assert(t, load.Err())
}

/*
Package relayd launches and manages a local nostr relay process for
integration tests.

Start resolves a relay binary (explicit path, then the RELAYD_EXE
environment variable, then nostr-rs-relay on the PATH), prepares an isolated
workspace with a rendered TOML config, spawns the relay on a free loopback
port and blocks until it accepts connections:

	relay, err := relayd.Start(ctx, relayd.Config{})
	if err != nil {
		t.Fatal(err)
	}
	defer relay.Stop(ctx)

	conn := dial(relay.URL()) // ws://127.0.0.1:<port>

Every relay gets its own workspace and port, so parallel tests can each run
an instance without coordination. Stop, and every failure path inside Start,
kills the process and removes the workspace: a failed or finished relay
leaves nothing behind.

Tests will usually want the testing/relayfixture package, which wires Stop
into t.Cleanup and skips when no relay binary is available.
*/
package relayd

package relayd

import (
	"os"
	"time"
)

const (
	// DefaultBinary is the executable Start looks for on the PATH when
	// neither Config.Binary nor the environment name one.
	DefaultBinary = "nostr-rs-relay"

	// BinaryEnvVar is the environment variable consulted for a relay
	// executable when Config.Binary is empty.
	BinaryEnvVar = "RELAYD_EXE"

	// DefaultStartTimeout bounds the wait for the relay to accept
	// connections when Config.StartTimeout is zero.
	DefaultStartTimeout = 30 * time.Second
)

// Config controls how Start launches a relay. The zero value is fully
// usable: resolve the binary from the environment or the PATH, listen on a
// free loopback port and wait up to DefaultStartTimeout for readiness.
//
// A Config is copied and defaulted at Start time, changing it afterwards has
// no effect on a running relay.
type Config struct {
	// Binary is an explicit path to the relay executable. It takes
	// precedence over RELAYD_EXE and the PATH lookup.
	Binary string

	// Args are extra command line arguments passed to the relay after the
	// generated --config flag.
	Args []string

	// Host is the listen host rendered into the relay config. Defaults to
	// 127.0.0.1.
	Host string

	// Port is the listen port. When zero a free port is allocated.
	Port int

	// StartTimeout bounds how long Start waits for the relay to accept
	// connections. Defaults to DefaultStartTimeout.
	StartTimeout time.Duration

	// Extra is merged into the rendered relay config, section by section,
	// over the generated network and database settings.
	Extra map[string]map[string]interface{}

	// LookupEnv is the environment view used to resolve RELAYD_EXE.
	// Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.StartTimeout == 0 {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.LookupEnv == nil {
		c.LookupEnv = os.LookupEnv
	}
	return c
}

package relayd

import (
	"errors"
	"fmt"
)

var (
	// ErrBinaryNotFound is returned by Start when no relay executable could be
	// resolved from the config, the environment or the PATH.
	ErrBinaryNotFound = errors.New("relay binary not found")

	// ErrNoPort is returned by Start when no free loopback port could be
	// allocated.
	ErrNoPort = errors.New("no available port")

	// ErrStartTimeout is returned by Start when the relay did not accept
	// connections within the startup budget.
	ErrStartTimeout = errors.New("relay startup timed out")
)

// ExitError is returned by Start when the relay process died before it
// accepted connections. Status is the process exit status, and Logs is
// everything the process wrote before dying, to help diagnose why.
type ExitError struct {
	Status int
	Logs   string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("relay exited with status %d before accepting connections", e.Status)
}

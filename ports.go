package relayd

import (
	"fmt"
	"net"
	"strconv"
)

// freePort asks the OS for an ephemeral port on host and releases it
// straight away. The port can in principle be taken again before the relay
// binds it, in which case the relay fails to start and the readiness probe
// surfaces that as a startup failure.
func freePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoPort, err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port, nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

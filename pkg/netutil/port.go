package netutil

import (
	"net"

	"github.com/pkg/errors"
)

// GetAvailablePort asks the kernel for a free TCP port on host. The port is
// released before returning, so another process can take it in between.
func GetAvailablePort(host string) (int, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, errors.Wrapf(err, "error listening on %s", host)
	}
	defer listener.Close()

	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, errors.Errorf("unexpected listener address %s", listener.Addr())
	}
	return addr.Port, nil
}

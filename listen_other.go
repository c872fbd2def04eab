//go:build !linux

package framesock

import "net"

// listen falls back to the standard listener; the OS default backlog applies.
func listen(addr string, _ int) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Package netutils finds free local ports for in-process groups and the local launcher.
package netutils

import (
	"fmt"
	"net"

	"github.com/keboola/lockstep-cluster/internal/pkg/utils/errors"
)

const freeAddressAttempts = 10

func FreePort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FreeLocalAddress returns a "localhost:<port>" address, the port is free for TCP and also for UDP used by KCP.
func FreeLocalAddress() (string, error) {
	for range freeAddressAttempts {
		port, err := FreePort()
		if err != nil {
			return "", err
		}
		addr := fmt.Sprintf("localhost:%d", port)
		if udpFree(addr) {
			return addr, nil
		}
	}
	return "", errors.Errorf("cannot find a port free for TCP and UDP, %d attempts", freeAddressAttempts)
}

func udpFree(addr string) bool {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

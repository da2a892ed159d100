package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Address is the dial target of a Transport: a TCP host:port or the path
// of a Unix domain socket.
type Address struct {
	Network string
	Addr    string
}

// TCP returns the address of a daemon listening on host:port.
func TCP(host string, port int) Address {
	return Address{Network: "tcp", Addr: net.JoinHostPort(host, strconv.Itoa(port))}
}

// Unix returns the address of a daemon socket at path.
func Unix(path string) Address {
	return Address{Network: "unix", Addr: path}
}

// ParseAddress accepts "unix:/path", "tcp:host:port", an absolute socket
// path or a bare host:port.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Address{}, errors.New("empty address")
	case strings.HasPrefix(s, "unix:"):
		path := strings.TrimPrefix(strings.TrimPrefix(s, "unix:"), "//")
		if path == "" {
			return Address{}, fmt.Errorf("invalid unix address %q", s)
		}
		return Unix(path), nil
	case strings.HasPrefix(s, "tcp:"):
		s = strings.TrimPrefix(strings.TrimPrefix(s, "tcp:"), "//")
	case strings.HasPrefix(s, "/"):
		return Unix(s), nil
	}

	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid tcp address %q: %w", s, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil || p <= 0 || p > 65535 {
		return Address{}, fmt.Errorf("invalid port in %q", s)
	}
	return TCP(host, p), nil
}

// IsZero reports whether a is unset.
func (a Address) IsZero() bool {
	return a.Network == "" && a.Addr == ""
}

func (a Address) String() string {
	if a.Network == "unix" {
		return "unix:" + a.Addr
	}
	return a.Addr
}

package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	// ErrDisposed is returned by operations on a disposed Transport.
	ErrDisposed = errors.New("transport disposed")

	// ErrNoAddress is returned by Reconnect before any Connect.
	ErrNoAddress = errors.New("no address to reconnect to")
)

// isBroken reports whether err means the peer is gone: the daemon closed
// or reset the connection, refused it, or it was never established.
func isBroken(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ENOTCONN) ||
		errors.Is(err, syscall.EPIPE)
}

// isTryAgain reports whether a write may succeed if repeated.
func isTryAgain(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, syscall.EAGAIN)
}

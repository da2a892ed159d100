// Package lirctest provides a loopback stand-in for the lircd control
// socket, used by tests and by the fakelirc command.
package lirctest

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Responder returns the raw text to write back for a received command
// line. An empty string writes nothing.
type Responder func(line string) string

// Server accepts control socket clients on a TCP or Unix listener.
type Server struct {
	network   string
	listener  net.Listener
	responder Responder
	logger    *zap.Logger

	mu    sync.Mutex
	conns []net.Conn

	accepted atomic.Int32
	lines    chan string
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	tempDir  string
}

// New starts a server on a random loopback port ("tcp") or on a socket in
// a fresh temporary directory ("unix"). responder may be nil.
func New(network string, responder Responder, logger *zap.Logger) (*Server, error) {
	var address, dir string
	switch network {
	case "tcp":
		address = "127.0.0.1:0"
	case "unix":
		var err error
		dir, err = os.MkdirTemp("", "lirctest")
		if err != nil {
			return nil, fmt.Errorf("failed to create socket dir: %w", err)
		}
		address = filepath.Join(dir, "lircd")
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}

	s, err := Listen(network, address, responder, logger)
	if err != nil {
		if dir != "" {
			os.RemoveAll(dir)
		}
		return nil, err
	}
	s.tempDir = dir
	return s, nil
}

// Listen starts a server on an explicit address.
func Listen(network, address string, responder Responder, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		network:   network,
		responder: responder,
		logger:    logger,
		lines:     make(chan string, 256),
		quit:      make(chan struct{}),
	}
	if err := s.listen(address); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) listen(address string) error {
	listener, err := net.Listen(s.network, address)
	if err != nil {
		return fmt.Errorf("failed to start fake lircd: %w", err)
	}
	s.listener = listener
	s.logger.Info("fake lircd listening", zap.String("network", s.network), zap.String("addr", listener.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Network returns "tcp" or "unix".
func (s *Server) Network() string {
	return s.network
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Lines delivers the lines received from any client, in order. Lines
// arriving while its buffer is full are dropped.
func (s *Server) Lines() <-chan string {
	return s.lines
}

// Accepted returns how many connections have been accepted so far.
func (s *Server) Accepted() int {
	return int(s.accepted.Load())
}

// Write sends raw text to every live client.
func (s *Server) Write(text string) error {
	s.mu.Lock()
	conns := append([]net.Conn(nil), s.conns...)
	s.mu.Unlock()

	if len(conns) == 0 {
		return errors.New("no client connected")
	}
	for _, c := range conns {
		if _, err := c.Write([]byte(text)); err != nil {
			return fmt.Errorf("failed to write to client: %w", err)
		}
	}
	return nil
}

// DropConnections closes every live client connection, which the client
// observes as a reset.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for _, c := range conns {
		if tc, ok := c.(*net.TCPConn); ok {
			_ = tc.SetLinger(0)
		}
		c.Close()
	}
}

// Stop closes the listener and all clients and waits for the handlers.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.listener.Close()
		s.DropConnections()
		s.wg.Wait()
		if s.tempDir != "" {
			os.RemoveAll(s.tempDir)
		}
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Warn("failed to accept connection", zap.Error(err))
				continue
			}
		}

		s.mu.Lock()
		select {
		case <-s.quit:
			s.mu.Unlock()
			conn.Close()
			return
		default:
		}
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.accepted.Add(1)

		s.wg.Add(1)
		go s.handleClient(conn)
	}
}

func (s *Server) handleClient(conn net.Conn) {
	defer s.wg.Done()
	defer s.forget(conn)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		s.logger.Debug("received", zap.String("line", line))

		select {
		case s.lines <- line:
		default:
			s.logger.Debug("lines buffer full, dropping", zap.String("line", line))
		}

		if s.responder == nil {
			continue
		}
		if reply := s.responder(line); reply != "" {
			if _, err := conn.Write([]byte(reply)); err != nil {
				return
			}
		}
	}
}

func (s *Server) forget(conn net.Conn) {
	conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conns {
		if c == conn {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return
		}
	}
}

// Reply formats a reply block for command.
func Reply(command string, succeeded bool, data ...string) string {
	var b strings.Builder
	b.WriteString("BEGIN\n")
	b.WriteString(command + "\n")
	if succeeded {
		b.WriteString("SUCCESS\n")
	} else {
		b.WriteString("ERROR\n")
	}
	if len(data) > 0 {
		fmt.Fprintf(&b, "DATA\n%d\n", len(data))
		for _, line := range data {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("END\n")
	return b.String()
}

// KeyLine formats a key notification line.
func KeyLine(code string, index int, key, remote string) string {
	return fmt.Sprintf("%s %02d %s %s\n", code, index, key, remote)
}

// Remotes returns a Responder answering VERSION, LIST and LIST <remote>
// from a fixed table, and echoing SEND_* commands as successes.
func Remotes(version string, remotes map[string][]string, order []string) Responder {
	return func(line string) string {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			return ""
		}
		switch fields[0] {
		case "VERSION":
			return Reply(line, true, version)
		case "LIST":
			if len(fields) == 1 {
				return Reply(line, true, order...)
			}
			cmds, ok := remotes[fields[1]]
			if !ok {
				return Reply(line, false, fmt.Sprintf("unknown remote: %q", fields[1]))
			}
			return Reply(line, true, cmds...)
		case "SEND_ONCE", "SEND_START", "SEND_STOP":
			if len(fields) < 3 {
				return Reply(line, false, "bad send packet")
			}
			return Reply(line, true)
		default:
			return Reply(line, false, fmt.Sprintf("unknown directive: %q", fields[0]))
		}
	}
}

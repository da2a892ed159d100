package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/omochice/lirc-bridge/pkg/protocol"
)

// Sender transmits a remote command. *client.Client satisfies it.
type Sender interface {
	SendOnce(remote, command string)
}

// Config tunes a Server.
type Config struct {
	// Address is the TCP listen address, e.g. ":8080".
	Address string
	// Path is the upgrade endpoint. Defaults to "/ws".
	Path string
	// QueueSize is the per-subscriber outgoing queue length.
	QueueSize int
	// WriteTimeout bounds one frame write.
	WriteTimeout time.Duration
}

// Server accepts WebSocket subscribers and attaches them to a Hub.
type Server struct {
	cfg      Config
	hub      *Hub
	sender   Sender
	logger   *zap.Logger
	listener net.Listener
	server   *http.Server

	mu    sync.Mutex
	conns map[*wsConn]bool
	quit  chan struct{}
	wg    sync.WaitGroup
}

// NewServer creates a Server. sender may be nil, in which case inbound
// send events are ignored.
func NewServer(cfg Config, hub *Hub, sender Sender, logger *zap.Logger) *Server {
	if cfg.Path == "" {
		cfg.Path = "/ws"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		hub:    hub,
		sender: sender,
		logger: logger,
		conns:  make(map[*wsConn]bool),
		quit:   make(chan struct{}),
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWebSocket)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("bridge listening", zap.String("addr", listener.Addr().String()), zap.String("path", s.cfg.Path))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bridge server failed", zap.Error(err))
		}
	}()
	return nil
}

// Run starts the server and stops it when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop closes the listener and every subscriber connection, then waits
// for their goroutines.
func (s *Server) Stop() {
	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		return
	default:
	}
	close(s.quit)
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if s.server != nil {
		s.server.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	format := FormatBinary
	if r.URL.Query().Get("format") == "json" {
		format = FormatJSON
	}

	raw, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn := &wsConn{conn: raw, writeTimeout: s.cfg.WriteTimeout}

	s.mu.Lock()
	select {
	case <-s.quit:
		s.mu.Unlock()
		conn.Close()
		return
	default:
	}
	s.conns[conn] = true
	s.wg.Add(2)
	s.mu.Unlock()

	sub := NewSubscriber(format, s.cfg.QueueSize)
	s.hub.Register(sub)
	s.logger.Debug("subscriber connected", zap.Stringer("id", sub.ID), zap.String("remote", conn.RemoteAddr()))

	go s.readLoop(conn, sub)
	go s.writeLoop(conn, sub)
}

func (s *Server) readLoop(conn *wsConn, sub *Subscriber) {
	defer s.wg.Done()
	defer func() {
		s.hub.Unregister(sub)
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	for {
		data, op, err := conn.ReadFrame()
		if err != nil {
			s.logger.Debug("subscriber gone", zap.Stringer("id", sub.ID), zap.Error(err))
			return
		}

		var ev protocol.Event
		if op == ws.OpText {
			err = ev.DecodeJSON(data)
		} else {
			err = ev.Decode(data)
		}
		if err != nil {
			s.logger.Warn("failed to decode subscriber frame", zap.Stringer("id", sub.ID), zap.Error(err))
			continue
		}
		s.handleEvent(sub, &ev)
	}
}

func (s *Server) handleEvent(sub *Subscriber, ev *protocol.Event) {
	if ev.Type != protocol.EventTypeSend {
		s.logger.Warn("ignoring subscriber event", zap.Stringer("id", sub.ID), zap.Stringer("type", ev.Type))
		return
	}
	if ev.Remote == "" || ev.Key == "" {
		s.logger.Warn("send event without remote or key", zap.Stringer("id", sub.ID))
		return
	}
	if s.sender == nil {
		return
	}
	s.logger.Info("forwarding send", zap.Stringer("id", sub.ID), zap.String("remote", ev.Remote), zap.String("key", ev.Key))
	s.sender.SendOnce(ev.Remote, ev.Key)
}

func (s *Server) writeLoop(conn *wsConn, sub *Subscriber) {
	defer s.wg.Done()

	op := sub.Format.opCode()
	for data := range sub.Outgoing {
		if err := conn.WriteFrame(op, data); err != nil {
			s.logger.Warn("failed to write to subscriber", zap.Stringer("id", sub.ID), zap.Error(err))
			// Unblocks the reader, which unregisters sub.
			conn.Close()
			for range sub.Outgoing {
			}
			return
		}
	}
	conn.CloseGracefully()
}

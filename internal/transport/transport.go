// Package transport keeps a stream connection to lircd alive.
//
// A Transport owns one TCP or Unix socket at a time. A single reader
// goroutine and a single writer goroutine run for the Transport's whole
// life and park while no connection is established. Outbound commands go
// through a FIFO queue. When the connection breaks, exactly one reconnect
// is scheduled after Config.ReconnectDelay.
package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/omochice/lirc-bridge/pkg/lirc"
)

// Dialer opens stream connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config tunes a Transport.
type Config struct {
	// ReconnectDelay is the pause before the single reconnect attempt
	// after a broken connection.
	ReconnectDelay time.Duration

	// DialTimeout bounds one connection attempt.
	DialTimeout time.Duration

	// WriteTimeout bounds one write; a timed out write is tried once more.
	// Zero disables the deadline.
	WriteTimeout time.Duration

	// ReadBufferSize is the size of the read buffer.
	ReadBufferSize int

	// Dialer defaults to a *net.Dialer.
	Dialer Dialer
}

// DefaultConfig returns the settings lircd clients traditionally use.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay: 30 * time.Second,
		DialTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		ReadBufferSize: 1024,
	}
}

// Handlers receive transport notifications. Any of them may be nil.
//
// Data is called from the reader goroutine; the slice is only valid for
// the duration of the call. Handlers must not call Dispose.
type Handlers struct {
	Connected    func()
	Disconnected func(err error)
	Data         func(data []byte)
	Message      func(msg string)
	Error        func(msg string, err error)
}

// Transport is a self-reconnecting stream client.
type Transport struct {
	cfg      Config
	handlers Handlers
	logger   *zap.Logger

	// connectMu marks an outstanding connection attempt; it is only
	// ever acquired with TryLock.
	connectMu sync.Mutex

	// mu guards the live connection, the state flag and the reconnect
	// timer.
	mu             sync.Mutex
	conn           net.Conn
	state          State
	addr           Address
	autoReconnect  bool
	reconnectTimer *time.Timer
	reconnectSeq   uint64
	changed        chan struct{}

	queueMu sync.Mutex
	queue   []string
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Transport and starts its reader and writer. Nothing is
// dialed until Connect.
func New(cfg Config, handlers Handlers, logger *zap.Logger) *Transport {
	def := DefaultConfig()
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = def.ReadBufferSize
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &net.Dialer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		cfg:      cfg,
		handlers: handlers,
		logger:   logger,
		changed:  make(chan struct{}),
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}

	t.wg.Add(2)
	go t.readLoop()
	go t.writeLoop()
	return t
}

// Connect dials addr and remembers it for automatic reconnects.
//
// If another connection attempt is outstanding the call is a no-op and a
// warning is logged. Dial failures are reported through the Error handler
// and followed by a scheduled reconnect; only ErrDisposed is returned.
func (t *Transport) Connect(addr Address) error {
	if t.ctx.Err() != nil {
		return ErrDisposed
	}
	if !t.connectMu.TryLock() {
		t.logger.Warn("connect ignored, another attempt is outstanding", zap.Stringer("addr", addr))
		return nil
	}
	defer t.connectMu.Unlock()

	t.mu.Lock()
	t.addr = addr
	t.autoReconnect = true
	t.stopReconnectLocked()
	t.mu.Unlock()

	t.logger.Info("connect", zap.Stringer("addr", addr))
	t.dial()
	return nil
}

// Disconnect closes the connection and suppresses automatic reconnects
// until the next Connect.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	t.autoReconnect = false
	t.stopReconnectLocked()
	conn := t.conn
	t.conn = nil
	if conn != nil {
		t.setStateLocked(StateDisconnected)
	}
	addr := t.addr
	t.mu.Unlock()

	if conn == nil {
		t.logger.Debug("already disconnected")
		return
	}
	t.logger.Info("disconnect", zap.Stringer("addr", addr))
	conn.Close()
}

// Reconnect disconnects and connects again to the last address.
func (t *Transport) Reconnect() error {
	t.Disconnect()

	t.mu.Lock()
	addr := t.addr
	t.mu.Unlock()
	if addr.IsZero() {
		return ErrNoAddress
	}
	return t.Connect(addr)
}

// SendCommand queues command for the writer and returns immediately. A
// missing terminator is appended. Commands sent after Dispose are dropped.
func (t *Transport) SendCommand(command string) {
	if t.ctx.Err() != nil {
		return
	}
	command = lirc.WithTerminator(command)

	t.queueMu.Lock()
	t.queue = append(t.queue, command)
	t.queueMu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Dispose stops the reader and writer, closes the connection and cancels
// any pending reconnect. It blocks until both goroutines have exited.
func (t *Transport) Dispose() {
	t.mu.Lock()
	if t.ctx.Err() != nil {
		t.mu.Unlock()
		return
	}
	t.logger.Info("dispose")
	t.cancel()
	t.autoReconnect = false
	t.stopReconnectLocked()
	conn := t.conn
	t.conn = nil
	t.setStateLocked(StateDisconnected)
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	t.wg.Wait()
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsConnected reports whether a connection is established.
func (t *Transport) IsConnected() bool {
	return t.State() == StateConnected
}

// Address returns the last address passed to Connect.
func (t *Transport) Address() Address {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addr
}

// Pending returns the number of queued commands not yet written.
func (t *Transport) Pending() int {
	t.queueMu.Lock()
	defer t.queueMu.Unlock()
	return len(t.queue)
}

// dial runs one connection attempt. The caller holds connectMu.
func (t *Transport) dial() {
	t.mu.Lock()
	if t.conn != nil {
		t.mu.Unlock()
		t.logger.Warn("already connected, call Disconnect before connecting again")
		return
	}
	addr := t.addr
	t.setStateLocked(StateConnecting)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(t.ctx, t.cfg.DialTimeout)
	conn, err := t.cfg.Dialer.DialContext(ctx, addr.Network, addr.Addr)
	cancel()

	if err != nil {
		t.mu.Lock()
		t.setStateLocked(StateDisconnected)
		t.mu.Unlock()
		if t.ctx.Err() != nil {
			return
		}
		t.logger.Warn("unable to connect", zap.Stringer("addr", addr), zap.Error(err))
		t.emitError("Unable to connect: "+err.Error(), err)
		t.scheduleReconnect()
		return
	}

	t.mu.Lock()
	if t.ctx.Err() != nil || !t.autoReconnect {
		// Disposed or disconnected while dialing.
		t.setStateLocked(StateDisconnected)
		t.mu.Unlock()
		conn.Close()
		return
	}
	t.conn = conn
	t.setStateLocked(StateConnected)
	t.mu.Unlock()

	t.logger.Info("connected", zap.Stringer("addr", addr))
	t.emitConnected()
}

// current returns the live connection (nil when there is none) and a
// channel that is closed on the next state change.
func (t *Transport) current() (net.Conn, <-chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn, t.changed
}

func (t *Transport) setStateLocked(s State) {
	t.state = s
	close(t.changed)
	t.changed = make(chan struct{})
}

// connectionLost tears down conn after a failed read or write. Failures
// of a connection that has already been replaced are ignored.
func (t *Transport) connectionLost(conn net.Conn, op string, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.setStateLocked(StateDisconnected)
	addr := t.addr
	t.mu.Unlock()

	conn.Close()
	if isBroken(err) {
		t.logger.Info("connection lost", zap.Stringer("addr", addr), zap.String("op", op), zap.Error(err))
		t.emitMessage(fmt.Sprintf("Connection to %s lost: %v", addr, err))
	} else {
		t.logger.Error("connection failed", zap.Stringer("addr", addr), zap.String("op", op), zap.Error(err))
		t.emitError(fmt.Sprintf("Error while %s: %v", op, err), err)
	}
	t.emitDisconnected(err)
	t.scheduleReconnect()
}

// scheduleReconnect arms the reconnect timer unless one is already
// pending, the Transport was disconnected on purpose, or it is disposed.
func (t *Transport) scheduleReconnect() {
	t.mu.Lock()
	if t.ctx.Err() != nil || !t.autoReconnect || t.reconnectTimer != nil {
		t.mu.Unlock()
		return
	}
	t.reconnectSeq++
	seq := t.reconnectSeq
	t.wg.Add(1)
	t.reconnectTimer = time.AfterFunc(t.cfg.ReconnectDelay, func() {
		defer t.wg.Done()
		t.fireReconnect(seq)
	})
	t.mu.Unlock()

	t.logger.Info("reconnect scheduled", zap.Duration("delay", t.cfg.ReconnectDelay))
	t.emitMessage("Setting up for reconnect...")
}

func (t *Transport) stopReconnectLocked() {
	if t.reconnectTimer == nil {
		return
	}
	if t.reconnectTimer.Stop() {
		t.wg.Done()
	}
	t.reconnectTimer = nil
	t.reconnectSeq++
}

func (t *Transport) fireReconnect(seq uint64) {
	t.mu.Lock()
	if seq != t.reconnectSeq {
		t.mu.Unlock()
		return
	}
	t.reconnectTimer = nil
	skip := t.ctx.Err() != nil || !t.autoReconnect || t.conn != nil
	t.mu.Unlock()
	if skip {
		return
	}

	t.emitMessage("Reconnecting...")
	if !t.connectMu.TryLock() {
		t.logger.Warn("reconnect ignored, another attempt is outstanding")
		return
	}
	defer t.connectMu.Unlock()
	t.dial()
}

func (t *Transport) readLoop() {
	defer t.wg.Done()

	buf := make([]byte, t.cfg.ReadBufferSize)
	for {
		conn, changed := t.current()
		if conn == nil {
			select {
			case <-changed:
				continue
			case <-t.ctx.Done():
				return
			}
		}

		n, err := conn.Read(buf)
		if n > 0 {
			t.logger.Debug("read", zap.Int("bytes", n))
			t.emitData(buf[:n])
		}
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.connectionLost(conn, "reading", err)
		}
	}
}

func (t *Transport) writeLoop() {
	defer t.wg.Done()

	for {
		conn, changed := t.current()
		if conn == nil {
			select {
			case <-changed:
				continue
			case <-t.ctx.Done():
				return
			}
		}

		command, ok := t.dequeue()
		if !ok {
			select {
			case <-t.wake:
			case <-changed:
			case <-t.ctx.Done():
				return
			}
			continue
		}

		t.emitMessage("Sending command " + strings.TrimSpace(command))
		if err := t.write(conn, []byte(command)); err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.connectionLost(conn, "writing", err)
		}
	}
}

// write sends one whole frame, trying once more if the first attempt
// timed out.
func (t *Transport) write(conn net.Conn, frame []byte) error {
	for attempt := 0; ; attempt++ {
		if t.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
		}
		n, err := conn.Write(frame)
		if err == nil {
			return nil
		}
		if attempt == 0 && isTryAgain(err) {
			t.logger.Debug("write timed out, trying again", zap.Int("written", n))
			frame = frame[n:]
			continue
		}
		return err
	}
}

func (t *Transport) dequeue() (string, bool) {
	t.queueMu.Lock()
	defer t.queueMu.Unlock()
	if len(t.queue) == 0 {
		return "", false
	}
	command := t.queue[0]
	t.queue[0] = ""
	t.queue = t.queue[1:]
	return command, true
}

func (t *Transport) emitConnected() {
	if t.ctx.Err() == nil && t.handlers.Connected != nil {
		t.handlers.Connected()
	}
}

func (t *Transport) emitDisconnected(err error) {
	if t.ctx.Err() == nil && t.handlers.Disconnected != nil {
		t.handlers.Disconnected(err)
	}
}

func (t *Transport) emitData(data []byte) {
	if t.ctx.Err() == nil && t.handlers.Data != nil {
		t.handlers.Data(data)
	}
}

func (t *Transport) emitMessage(msg string) {
	if t.ctx.Err() == nil && t.handlers.Message != nil {
		t.handlers.Message(msg)
	}
}

func (t *Transport) emitError(msg string, err error) {
	if t.ctx.Err() == nil && t.handlers.Error != nil {
		t.handlers.Error(msg, err)
	}
}

// Package client wires the lircd wire grammars to a self-reconnecting
// transport and fans the results out to subscribers.
package client

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/omochice/lirc-bridge/internal/transport"
	"github.com/omochice/lirc-bridge/pkg/lirc"
)

var (
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("client closed")
	// ErrDisconnected fails requests whose connection was lost before the
	// reply arrived.
	ErrDisconnected = errors.New("connection lost before reply")
	// ErrUnknownRemote is returned by Commands for a remote that is not in
	// the remote map.
	ErrUnknownRemote = errors.New("unknown remote")
	// ErrCommandFailed wraps replies that carried ERROR.
	ErrCommandFailed = errors.New("command failed")
)

// Client is a lircd control socket client.
//
// Subscribers are called from the transport's reader goroutine in wire
// order. They must return quickly and must not call Request, Disconnect,
// Reconnect or Close.
type Client struct {
	tr     *transport.Transport
	logger *zap.Logger

	// parseMu serializes the frame and command parsers.
	parseMu sync.Mutex
	frames  *lirc.FrameParser
	parser  *lirc.CommandParser

	mu           sync.Mutex
	subs         subscribers
	remotes      map[string][]string
	pendingLists map[string]struct{}
	listDone     chan struct{}
	waiters      map[string][]chan reply
	closed       bool
}

type subscribers struct {
	connected    []func()
	disconnected []func(err error)
	message      []func(msg string)
	key          []func(ev lirc.KeyPressEvent)
	completed    []func(cmd *lirc.Command)
	errors       []func(msg string, err error)
}

// New creates a Client. Nothing is dialed until Connect.
func New(cfg transport.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	done := make(chan struct{})
	close(done)

	c := &Client{
		logger:   logger,
		frames:   lirc.NewFrameParser(),
		parser:   lirc.NewCommandParser(),
		remotes:  make(map[string][]string),
		listDone: done,
		waiters:  make(map[string][]chan reply),
	}
	c.tr = transport.New(cfg, transport.Handlers{
		Connected:    c.handleConnected,
		Disconnected: c.handleDisconnected,
		Data:         c.handleData,
		Message:      c.notifyMessage,
		Error:        c.notifyError,
	}, logger.Named("transport"))
	return c
}

// OnConnected registers fn to run after every successful connection.
func (c *Client) OnConnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs.connected = append(c.subs.connected, fn)
}

// OnDisconnected registers fn to run when an established connection
// breaks. An explicit Disconnect does not trigger it.
func (c *Client) OnDisconnected(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs.disconnected = append(c.subs.disconnected, fn)
}

// OnMessage registers fn for informational messages.
func (c *Client) OnMessage(fn func(msg string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs.message = append(c.subs.message, fn)
}

// OnKeyPressed registers fn for key notifications.
func (c *Client) OnKeyPressed(fn func(ev lirc.KeyPressEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs.key = append(c.subs.key, fn)
}

// OnCommandCompleted registers fn for every finished reply block.
func (c *Client) OnCommandCompleted(fn func(cmd *lirc.Command)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs.completed = append(c.subs.completed, fn)
}

// OnError registers fn for recoverable failures: protocol errors,
// malformed key lines and transport errors.
func (c *Client) OnError(fn func(msg string, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs.errors = append(c.subs.errors, fn)
}

// Connect dials addr. See transport.Transport.Connect.
func (c *Client) Connect(addr transport.Address) error {
	if c.isClosed() {
		return ErrClosed
	}
	return c.tr.Connect(addr)
}

// Disconnect closes the connection and stops automatic reconnects.
func (c *Client) Disconnect() {
	c.tr.Disconnect()
	c.resetParsers()
	c.failWaiters(ErrDisconnected)
}

// Reconnect drops the connection and dials the last address again.
func (c *Client) Reconnect() error {
	if c.isClosed() {
		return ErrClosed
	}
	c.Disconnect()
	addr := c.tr.Address()
	if addr.IsZero() {
		return transport.ErrNoAddress
	}
	return c.tr.Connect(addr)
}

// SendCommand queues a raw command line.
func (c *Client) SendCommand(line string) {
	c.tr.SendCommand(line)
}

// Version asks for the daemon version.
func (c *Client) Version() {
	c.tr.SendCommand(lirc.VersionCommand())
}

// ListRemotes asks for the remote names. The reply triggers one
// ListRemote per name.
func (c *Client) ListRemotes() {
	c.tr.SendCommand(lirc.ListCommand(""))
}

// ListRemote asks for the command names of remote.
func (c *Client) ListRemote(remote string) {
	c.tr.SendCommand(lirc.ListCommand(remote))
}

// SendOnce transmits command of remote once.
func (c *Client) SendOnce(remote, command string) {
	c.tr.SendCommand(lirc.SendOnceCommand(remote, command))
}

// SendStart starts repeating command of remote.
func (c *Client) SendStart(remote, command string) {
	c.tr.SendCommand(lirc.SendStartCommand(remote, command))
}

// SendStop stops repeating command of remote.
func (c *Client) SendStop(remote, command string) {
	c.tr.SendCommand(lirc.SendStopCommand(remote, command))
}

// State returns the connection state.
func (c *Client) State() transport.State {
	return c.tr.State()
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.tr.IsConnected()
}

// Address returns the last address passed to Connect.
func (c *Client) Address() transport.Address {
	return c.tr.Address()
}

// Close disposes the transport and fails outstanding requests. It is safe
// to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.tr.Dispose()
	c.failWaiters(ErrClosed)
	c.logger.Debug("client closed")
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) resetParsers() {
	c.parseMu.Lock()
	defer c.parseMu.Unlock()
	c.frames.Reset()
	c.parser.Reset()
}

func (c *Client) handleConnected() {
	c.mu.Lock()
	subs := c.subs.connected
	c.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func (c *Client) handleDisconnected(err error) {
	c.resetParsers()
	c.failWaiters(ErrDisconnected)

	c.mu.Lock()
	subs := c.subs.disconnected
	c.mu.Unlock()
	for _, fn := range subs {
		fn(err)
	}
}

func (c *Client) handleData(data []byte) {
	c.parseMu.Lock()
	defer c.parseMu.Unlock()
	c.frames.Feed(data, c.handleLine)
}

// handleLine routes one line to the command parser or the key parser.
// The caller holds parseMu.
func (c *Client) handleLine(line string) {
	c.logger.Debug("line", zap.String("line", line))

	if c.parser.InSession() || lirc.IsCommandStart(line) {
		cmd, err := c.parser.Feed(line)
		if err != nil {
			c.logger.Warn("protocol error", zap.Error(err))
			c.notifyError("Protocol error: "+err.Error(), err)
			return
		}
		if cmd != nil {
			c.handleCommand(cmd)
		}
		return
	}

	ev, warning, err := lirc.ParseKeyEvent(line)
	if err != nil {
		c.logger.Warn("malformed key event", zap.String("line", line), zap.Error(err))
		c.notifyError("Malformed key event: "+line, err)
		return
	}
	if warning != nil {
		c.logger.Warn("unparsable repeat index", zap.String("line", line), zap.Error(warning))
		c.notifyError("Unparsable repeat index in key event: "+line, warning)
	}
	c.notifyKey(ev)
}

func (c *Client) handleCommand(cmd *lirc.Command) {
	c.logger.Debug("command completed", zap.Stringer("command", cmd), zap.Int("data", len(cmd.Data)))

	switch cmd.Kind {
	case lirc.KindListRemotes:
		if cmd.Succeeded {
			c.fanOut(cmd.Remotes())
		}
	case lirc.KindListRemote:
		c.storeRemote(cmd)
	}

	c.resolve(cmd)

	c.mu.Lock()
	subs := c.subs.completed
	c.mu.Unlock()
	for _, fn := range subs {
		fn(cmd)
	}
}

func (c *Client) notifyKey(ev lirc.KeyPressEvent) {
	c.mu.Lock()
	subs := c.subs.key
	c.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

func (c *Client) notifyMessage(msg string) {
	c.mu.Lock()
	subs := c.subs.message
	c.mu.Unlock()
	for _, fn := range subs {
		fn(msg)
	}
}

func (c *Client) notifyError(msg string, err error) {
	c.mu.Lock()
	subs := c.subs.errors
	c.mu.Unlock()
	for _, fn := range subs {
		fn(msg, err)
	}
}

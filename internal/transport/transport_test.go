package transport_test

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omochice/lirc-bridge/internal/lirctest"
	"github.com/omochice/lirc-bridge/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects transport notifications.
type recorder struct {
	mu        sync.Mutex
	connected int
	messages  []string
	errors    []string
	data      strings.Builder
}

func (r *recorder) handlers() transport.Handlers {
	return transport.Handlers{
		Connected: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.connected++
		},
		Data: func(data []byte) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.data.Write(data)
		},
		Message: func(msg string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, msg)
		},
		Error: func(msg string, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, msg)
		},
	}
}

func (r *recorder) Connected() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *recorder) Data() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.String()
}

func (r *recorder) Count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m == msg {
			n++
		}
	}
	return n
}

func (r *recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func startServer(t *testing.T, network string) *lirctest.Server {
	t.Helper()
	srv, err := lirctest.New(network, nil, nil)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return srv
}

func addressOf(srv *lirctest.Server) transport.Address {
	return transport.Address{Network: srv.Network(), Addr: srv.Addr()}
}

func receive(t *testing.T, srv *lirctest.Server) string {
	t.Helper()
	select {
	case line := <-srv.Lines():
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for line")
		return ""
	}
}

func TestTransport_SendCommand(t *testing.T) {
	for _, network := range []string{"tcp", "unix"} {
		t.Run(network, func(t *testing.T) {
			srv := startServer(t, network)
			rec := &recorder{}
			tr := transport.New(transport.DefaultConfig(), rec.handlers(), nil)
			defer tr.Dispose()

			require.NoError(t, tr.Connect(addressOf(srv)))
			require.True(t, tr.IsConnected())
			assert.Equal(t, 1, rec.Connected())

			tr.SendCommand("VERSION")
			tr.SendCommand("LIST\n")
			tr.SendCommand("SEND_ONCE tv KEY_POWER")

			assert.Equal(t, "VERSION", receive(t, srv))
			assert.Equal(t, "LIST", receive(t, srv))
			assert.Equal(t, "SEND_ONCE tv KEY_POWER", receive(t, srv))
			assert.Equal(t, 1, rec.Count("Sending command LIST"))
		})
	}
}

func TestTransport_QueuedBeforeConnect(t *testing.T) {
	srv := startServer(t, "tcp")
	tr := transport.New(transport.DefaultConfig(), transport.Handlers{}, nil)
	defer tr.Dispose()

	tr.SendCommand("VERSION")
	assert.Equal(t, 1, tr.Pending())

	require.NoError(t, tr.Connect(addressOf(srv)))
	assert.Equal(t, "VERSION", receive(t, srv))
}

func TestTransport_Data(t *testing.T) {
	srv := startServer(t, "tcp")
	rec := &recorder{}
	tr := transport.New(transport.DefaultConfig(), rec.handlers(), nil)
	defer tr.Dispose()

	require.NoError(t, tr.Connect(addressOf(srv)))
	require.Eventually(t, func() bool { return srv.Accepted() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, srv.Write("0000000000000000 00 KEY_POWER living_room\n"))

	require.Eventually(t, func() bool {
		return rec.Data() == "0000000000000000 00 KEY_POWER living_room\n"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTransport_ReconnectAfterDrop(t *testing.T) {
	srv := startServer(t, "tcp")
	rec := &recorder{}
	cfg := transport.DefaultConfig()
	cfg.ReconnectDelay = 50 * time.Millisecond
	tr := transport.New(cfg, rec.handlers(), nil)
	defer tr.Dispose()

	require.NoError(t, tr.Connect(addressOf(srv)))
	require.Eventually(t, func() bool { return srv.Accepted() == 1 }, time.Second, 5*time.Millisecond)

	srv.DropConnections()

	require.Eventually(t, func() bool { return rec.Connected() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rec.Count("Setting up for reconnect..."))
	assert.Equal(t, 1, rec.Count("Reconnecting..."))
	assert.Equal(t, 2, srv.Accepted())

	tr.SendCommand("LIST")
	assert.Equal(t, "LIST", receive(t, srv))
}

func TestTransport_DisconnectSuppressesReconnect(t *testing.T) {
	srv := startServer(t, "tcp")
	cfg := transport.DefaultConfig()
	cfg.ReconnectDelay = 30 * time.Millisecond
	tr := transport.New(cfg, transport.Handlers{}, nil)
	defer tr.Dispose()

	require.NoError(t, tr.Connect(addressOf(srv)))
	tr.Disconnect()
	assert.Equal(t, transport.StateDisconnected, tr.State())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, srv.Accepted())
	assert.False(t, tr.IsConnected())

	require.NoError(t, tr.Reconnect())
	assert.True(t, tr.IsConnected())
	require.Eventually(t, func() bool { return srv.Accepted() == 2 }, time.Second, 5*time.Millisecond)
}

func TestTransport_RefusedThenDaemonStarts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lircd")

	rec := &recorder{}
	cfg := transport.DefaultConfig()
	cfg.ReconnectDelay = 100 * time.Millisecond
	tr := transport.New(cfg, rec.handlers(), nil)
	defer tr.Dispose()

	require.NoError(t, tr.Connect(transport.Unix(path)))
	assert.False(t, tr.IsConnected())
	require.Len(t, rec.Errors(), 1)
	assert.True(t, strings.HasPrefix(rec.Errors()[0], "Unable to connect"))

	srv, err := lirctest.Listen("unix", path, nil, nil)
	require.NoError(t, err)
	defer srv.Stop()

	require.Eventually(t, tr.IsConnected, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rec.Connected())
}

func TestTransport_Dispose(t *testing.T) {
	srv := startServer(t, "tcp")
	tr := transport.New(transport.DefaultConfig(), transport.Handlers{}, nil)
	require.NoError(t, tr.Connect(addressOf(srv)))

	tr.Dispose()
	tr.Dispose()

	assert.ErrorIs(t, tr.Connect(addressOf(srv)), transport.ErrDisposed)
	tr.SendCommand("VERSION")
	assert.Equal(t, 0, tr.Pending())
	assert.Equal(t, transport.StateDisconnected, tr.State())
}

func TestTransport_ReconnectWithoutAddress(t *testing.T) {
	tr := transport.New(transport.DefaultConfig(), transport.Handlers{}, nil)
	defer tr.Dispose()
	assert.ErrorIs(t, tr.Reconnect(), transport.ErrNoAddress)
}

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/lirc-bridge/internal/lirctest"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "--timeout", "2s"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func startDaemon(t *testing.T) *lirctest.Server {
	t.Helper()
	srv, err := lirctest.New("tcp", lirctest.Remotes("0.10.1", map[string][]string{
		"tv":  {"KEY_POWER", "KEY_MUTE"},
		"amp": {"KEY_VOLUMEUP"},
	}, []string{"tv", "amp"}), nil)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)
	return srv
}

func TestVersionCommand(t *testing.T) {
	srv := startDaemon(t)

	out, err := runCLI(t, "--address", srv.Addr(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lircctl version "+lircctlVersion)
	assert.Contains(t, out, "lircd: 0.10.1")
}

func TestRemotesCommand(t *testing.T) {
	srv := startDaemon(t)

	out, err := runCLI(t, "--address", srv.Addr(), "remotes")
	require.NoError(t, err)
	assert.Equal(t, "amp (1 commands)\ntv (2 commands)\n", out)

	out, err = runCLI(t, "--address", srv.Addr(), "remotes", "tv")
	require.NoError(t, err)
	assert.Equal(t, "KEY_POWER\nKEY_MUTE\n", out)
}

func TestSendCommand(t *testing.T) {
	srv := startDaemon(t)

	_, err := runCLI(t, "--address", srv.Addr(), "send", "--mode", "once", "tv", "KEY_POWER")
	require.NoError(t, err)

	assert.Equal(t, "SEND_ONCE tv KEY_POWER", <-srv.Lines())

	_, err = runCLI(t, "--address", srv.Addr(), "send", "--mode", "sideways", "tv", "KEY_POWER")
	assert.Error(t, err)
}

package client

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/omochice/lirc-bridge/pkg/lirc"
)

// fanOut replaces the remote map with an empty entry per remote named in
// a LIST reply and asks for the commands of each.
func (c *Client) fanOut(remotes []string) {
	c.mu.Lock()
	c.remotes = make(map[string][]string, len(remotes))
	c.pendingLists = make(map[string]struct{}, len(remotes))
	c.listDone = make(chan struct{})
	unique := make([]string, 0, len(remotes))
	for _, r := range remotes {
		if _, ok := c.pendingLists[r]; ok {
			continue
		}
		c.pendingLists[r] = struct{}{}
		c.remotes[r] = []string{}
		unique = append(unique, r)
	}
	if len(unique) == 0 {
		close(c.listDone)
	}
	c.mu.Unlock()

	c.logger.Info("listing remotes", zap.Strings("remotes", unique))
	for _, r := range unique {
		c.tr.SendCommand(lirc.ListCommand(r))
	}
}

// storeRemote records the reply to LIST <remote>. A failed reply leaves
// the entry seeded by fanOut empty.
func (c *Client) storeRemote(cmd *lirc.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cmd.Succeeded {
		c.remotes[cmd.Remote] = append(make([]string, 0, len(cmd.Data)), cmd.Data...)
	} else {
		c.logger.Warn("listing remote failed", zap.String("remote", cmd.Remote), zap.Strings("data", cmd.Data))
	}

	if _, ok := c.pendingLists[cmd.Remote]; ok {
		delete(c.pendingLists, cmd.Remote)
		if len(c.pendingLists) == 0 {
			close(c.listDone)
		}
	}
}

// Commands returns the command names of remote.
func (c *Client) Commands(remote string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmds, ok := c.remotes[remote]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRemote, remote)
	}
	return append([]string(nil), cmds...), nil
}

// RemoteCommands returns a copy of the remote map.
func (c *Client) RemoteCommands() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]string, len(c.remotes))
	for r, cmds := range c.remotes {
		out[r] = append([]string(nil), cmds...)
	}
	return out
}

// Remotes returns the known remote names, sorted.
func (c *Client) Remotes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.remotes))
	for r := range c.remotes {
		names = append(names, r)
	}
	sort.Strings(names)
	return names
}

// LoadRemotes sends LIST and waits until every remote it names has been
// listed.
func (c *Client) LoadRemotes(ctx context.Context) (map[string][]string, error) {
	cmd, err := c.Request(ctx, lirc.VerbList)
	if err != nil {
		return nil, err
	}
	if !cmd.Succeeded {
		return nil, fmt.Errorf("%w: %s: %s", ErrCommandFailed, cmd.Line, strings.Join(cmd.Data, " "))
	}

	// The reply has been dispatched, so fanOut has already run.
	c.mu.Lock()
	done := c.listDone
	c.mu.Unlock()

	select {
	case <-done:
		return c.RemoteCommands(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

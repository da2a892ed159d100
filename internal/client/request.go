package client

import (
	"context"
	"strings"

	"github.com/omochice/lirc-bridge/pkg/lirc"
)

type reply struct {
	cmd *lirc.Command
	err error
}

// requestKey normalizes a command line the way lircd echoes it back.
func requestKey(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// Request sends line and waits for the reply block that echoes it.
// Concurrent requests for the same line are answered in order. The reply
// is also delivered to OnCommandCompleted subscribers.
//
// A reply carrying ERROR is returned as a Command with Succeeded false,
// not as an error.
func (c *Client) Request(ctx context.Context, line string) (*lirc.Command, error) {
	key := requestKey(line)
	ch := make(chan reply, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.waiters[key] = append(c.waiters[key], ch)
	c.mu.Unlock()

	c.tr.SendCommand(key)

	select {
	case r := <-ch:
		return r.cmd, r.err
	case <-ctx.Done():
		c.dropWaiter(key, ch)
		// The reply may have raced the cancellation.
		select {
		case r := <-ch:
			return r.cmd, r.err
		default:
		}
		return nil, ctx.Err()
	}
}

// SendOnceWait transmits command of remote once and waits for the daemon
// to acknowledge it.
func (c *Client) SendOnceWait(ctx context.Context, remote, command string) (*lirc.Command, error) {
	return c.Request(ctx, lirc.SendOnceCommand(remote, command))
}

// VersionWait returns the daemon version.
func (c *Client) VersionWait(ctx context.Context) (string, error) {
	cmd, err := c.Request(ctx, lirc.VerbVersion)
	if err != nil {
		return "", err
	}
	return cmd.Version(), nil
}

func (c *Client) resolve(cmd *lirc.Command) {
	key := requestKey(cmd.Line)

	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.waiters[key]
	if len(queue) == 0 {
		return
	}
	ch := queue[0]
	if len(queue) == 1 {
		delete(c.waiters, key)
	} else {
		c.waiters[key] = queue[1:]
	}
	ch <- reply{cmd: cmd}
}

func (c *Client) dropWaiter(key string, ch chan reply) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.waiters[key]
	for i, w := range queue {
		if w == ch {
			queue = append(queue[:i:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(c.waiters, key)
	} else {
		c.waiters[key] = queue
	}
}

func (c *Client) failWaiters(err error) {
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = make(map[string][]chan reply)
	c.mu.Unlock()

	for _, queue := range waiters {
		for _, ch := range queue {
			ch <- reply{err: err}
		}
	}
}

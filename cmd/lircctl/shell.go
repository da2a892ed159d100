package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/omochice/lirc-bridge/pkg/lirc"
)

const (
	shellPrompt     = "lirc> "
	historyFileName = ".lircctl_history"
	historySize     = 500
)

// lineEditor reads shell input with line editing on a terminal and plain
// line scanning otherwise.
type lineEditor struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
	out     io.Writer
}

func newLineEditor(out io.Writer) *lineEditor {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return &lineEditor{scanner: bufio.NewScanner(os.Stdin), out: out}
	}

	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFileName)
	}
	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:       shellPrompt,
		HistoryFile:  history,
		HistoryLimit: historySize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return &lineEditor{scanner: bufio.NewScanner(os.Stdin), out: out}
	}
	return &lineEditor{rl: rl, out: out}
}

// ReadLine returns io.EOF on end of input or interrupt.
func (le *lineEditor) ReadLine() (string, error) {
	if le.rl != nil {
		line, err := le.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			return "", io.EOF
		}
		return line, err
	}

	fmt.Fprint(le.out, shellPrompt)
	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

func (le *lineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
	}
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Send raw commands interactively",
	Long: `Reads lircd commands such as "VERSION", "LIST tv" or
"SEND_ONCE tv KEY_POWER" and prints every reply and key press.
Type "quit" or press Ctrl-D to leave.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		c := newClient()
		defer c.Close()

		c.OnConnected(func() {
			fmt.Fprintf(out, "connected to %s\n", c.Address())
		})
		c.OnKeyPressed(func(ev lirc.KeyPressEvent) {
			fmt.Fprintf(out, "key %s %s %d\n", ev.Remote, ev.Key, ev.Index)
		})
		c.OnCommandCompleted(func(reply *lirc.Command) {
			fmt.Fprintln(out, reply)
			for _, line := range reply.Data {
				fmt.Fprintf(out, "  %s\n", line)
			}
		})
		c.OnError(func(msg string, err error) {
			fmt.Fprintf(out, "error: %s\n", msg)
		})

		if err := connect(c); err != nil {
			return err
		}

		le := newLineEditor(out)
		defer le.Close()
		for {
			line, err := le.ReadLine()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "quit", "exit":
				return nil
			case "reconnect":
				if err := c.Reconnect(); err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
				}
				continue
			}
			c.SendCommand(line)
		}
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

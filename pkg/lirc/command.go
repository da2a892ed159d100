package lirc

import (
	"strings"
)

// Terminator ends every line on the wire in both directions.
const Terminator = "\n"

// Verbs understood by lircd.
const (
	VerbVersion   = "VERSION"
	VerbList      = "LIST"
	VerbSendOnce  = "SEND_ONCE"
	VerbSendStart = "SEND_START"
	VerbSendStop  = "SEND_STOP"
)

// Kind is the response shape of a command.
type Kind int

const (
	// KindGeneric covers SEND_* echoes and verbs this package does not
	// interpret.
	KindGeneric Kind = iota
	// KindVersion carries the daemon version in its single data line.
	KindVersion
	// KindListRemotes is LIST without argument; data lines are remote names.
	KindListRemotes
	// KindListRemote is LIST <remote>; data lines are that remote's
	// command names.
	KindListRemote
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindGeneric:
		return "GENERIC"
	case KindVersion:
		return "VERSION"
	case KindListRemotes:
		return "LIST_REMOTES"
	case KindListRemote:
		return "LIST_REMOTE"
	default:
		return "UNKNOWN"
	}
}

// Command is one parsed reply block.
type Command struct {
	Kind Kind
	// Line is the command line exactly as echoed by the daemon.
	Line string
	// Verb is the first word of Line.
	Verb string
	// Args holds the remaining words of Line.
	Args []string
	// Remote is set for KindListRemote.
	Remote    string
	Succeeded bool
	Data      []string
}

// Classify builds an empty Command for the echoed command line.
// It performs no I/O.
func Classify(line string) *Command {
	fields := strings.Fields(line)
	cmd := &Command{Kind: KindGeneric, Line: line}
	if len(fields) == 0 {
		return cmd
	}
	cmd.Verb = fields[0]
	cmd.Args = fields[1:]

	switch cmd.Verb {
	case VerbVersion:
		cmd.Kind = KindVersion
	case VerbList:
		if len(cmd.Args) == 0 {
			cmd.Kind = KindListRemotes
		} else {
			cmd.Kind = KindListRemote
			cmd.Remote = cmd.Args[0]
		}
	}
	return cmd
}

// Version returns the version string of a VERSION reply, or "" when the
// reply carried no data.
func (c *Command) Version() string {
	if c.Kind != KindVersion || len(c.Data) == 0 {
		return ""
	}
	return c.Data[0]
}

// Remotes returns the remote names of a LIST reply.
func (c *Command) Remotes() []string {
	if c.Kind != KindListRemotes {
		return nil
	}
	return c.Data
}

// String returns the command line followed by SUCCESS or ERROR.
func (c *Command) String() string {
	status := "ERROR"
	if c.Succeeded {
		status = "SUCCESS"
	}
	return c.Line + " " + status
}

// WithTerminator appends the line terminator to s unless it is already
// present.
func WithTerminator(s string) string {
	if strings.HasSuffix(s, Terminator) {
		return s
	}
	return s + Terminator
}

// VersionCommand returns the VERSION request.
func VersionCommand() string {
	return VerbVersion + Terminator
}

// ListCommand returns LIST, or LIST <remote> when remote is not empty.
func ListCommand(remote string) string {
	if remote == "" {
		return VerbList + Terminator
	}
	return VerbList + " " + remote + Terminator
}

// SendOnceCommand returns SEND_ONCE <remote> <command>.
func SendOnceCommand(remote, command string) string {
	return VerbSendOnce + " " + remote + " " + command + Terminator
}

// SendStartCommand returns SEND_START <remote> <command>.
func SendStartCommand(remote, command string) string {
	return VerbSendStart + " " + remote + " " + command + Terminator
}

// SendStopCommand returns SEND_STOP <remote> <command>.
func SendStopCommand(remote, command string) string {
	return VerbSendStop + " " + remote + " " + command + Terminator
}

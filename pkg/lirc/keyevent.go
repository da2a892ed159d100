package lirc

import (
	"strconv"
	"strings"
)

// KeyPressEvent is one key notification.
type KeyPressEvent struct {
	Code   string
	Index  int
	Key    string
	Remote string
}

// ParseKeyEvent parses "<code> <repeat-index> <key-name> <remote-name>".
// Fields past the fourth are ignored.
//
// Fewer than four fields yields a *KeyEventError wrapping ErrShortKeyEvent.
// An unparsable repeat index is not fatal: the event is returned with
// Index 0 together with a non-nil warning.
func ParseKeyEvent(line string) (ev KeyPressEvent, warning error, err error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return KeyPressEvent{}, nil, &KeyEventError{Line: line, Err: ErrShortKeyEvent}
	}

	ev = KeyPressEvent{
		Code:   fields[0],
		Key:    fields[2],
		Remote: fields[3],
	}
	index, perr := strconv.Atoi(fields[1])
	if perr != nil {
		warning = &KeyEventError{Line: line, Err: perr}
	} else {
		ev.Index = index
	}
	return ev, warning, nil
}

// IsCommandStart reports whether line opens a reply block. Lines that do
// not, arriving outside a block, are key notifications.
func IsCommandStart(line string) bool {
	return strings.HasPrefix(line, TokenBegin)
}

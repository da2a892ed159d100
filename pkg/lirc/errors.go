package lirc

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedToken is returned when a token does not match what the
	// command parser expects in its current state.
	ErrUnexpectedToken = errors.New("unexpected token")

	// ErrBadDataCount is returned when the line following DATA is not a
	// non-negative integer.
	ErrBadDataCount = errors.New("bad data line count")

	// ErrShortKeyEvent is returned for key notification lines with fewer
	// than four fields.
	ErrShortKeyEvent = errors.New("key event has fewer than 4 fields")
)

// ProtocolError reports a grammar violation inside a command block.
// The parser has already been reset when this error is returned.
type ProtocolError struct {
	State ParserState
	Token string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("lirc protocol error in state %s at token %q: %v", e.State, e.Token, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// KeyEventError reports a line that could not be parsed as a key
// notification.
type KeyEventError struct {
	Line string
	Err  error
}

func (e *KeyEventError) Error() string {
	return fmt.Sprintf("lirc key event %q: %v", e.Line, e.Err)
}

func (e *KeyEventError) Unwrap() error {
	return e.Err
}

package lirc

import (
	"fmt"
	"strconv"
	"strings"
)

// Protocol tokens of a reply block.
const (
	TokenBegin   = "BEGIN"
	TokenSuccess = "SUCCESS"
	TokenError   = "ERROR"
	TokenData    = "DATA"
	TokenEnd     = "END"
)

// maxDataPrealloc bounds the DATA slice capacity taken from the wire count.
const maxDataPrealloc = 64

// ParserState is a state of the reply block grammar.
type ParserState int

const (
	// StateBegin waits for BEGIN.
	StateBegin ParserState = iota
	// StateCommand expects the echoed command line.
	StateCommand
	// StateResult expects SUCCESS or ERROR.
	StateResult
	// StateDataOrEnd expects DATA or END.
	StateDataOrEnd
	// StateDataCount expects the number of data lines.
	StateDataCount
	// StateDataLine collects data lines until the count is reached.
	StateDataLine
	// StateEnd expects END.
	StateEnd
)

func (s ParserState) String() string {
	switch s {
	case StateBegin:
		return "Begin"
	case StateCommand:
		return "Command"
	case StateResult:
		return "Result"
	case StateDataOrEnd:
		return "DataOrEnd"
	case StateDataCount:
		return "DataCount"
	case StateDataLine:
		return "DataLine"
	case StateEnd:
		return "End"
	default:
		return fmt.Sprintf("ParserState(%d)", int(s))
	}
}

// CommandParser is the state machine for reply blocks.
//
// It is not safe for concurrent use; callers feed it from the single
// goroutine that drains a FrameParser.
type CommandParser struct {
	state     ParserState
	current   *Command
	linesLeft int
}

// NewCommandParser returns a parser waiting for BEGIN.
func NewCommandParser() *CommandParser {
	return &CommandParser{state: StateBegin}
}

// State returns the current state.
func (p *CommandParser) State() ParserState {
	return p.state
}

// InSession reports whether a block has been opened and not yet finished.
func (p *CommandParser) InSession() bool {
	return p.state != StateBegin
}

// Reset drops any partial block.
func (p *CommandParser) Reset() {
	p.state = StateBegin
	p.current = nil
	p.linesLeft = 0
}

// Feed consumes one token. It returns the finished Command when the token
// closes a block, and a *ProtocolError when the token is illegal in the
// current state. After an error the parser is back at StateBegin and the
// partial block is gone.
func (p *CommandParser) Feed(token string) (*Command, error) {
	switch p.state {
	case StateBegin:
		if token != TokenBegin {
			return nil, p.fail(token, fmt.Errorf("%w: expected %s", ErrUnexpectedToken, TokenBegin))
		}
		p.state = StateCommand

	case StateCommand:
		p.current = Classify(token)
		p.state = StateResult

	case StateResult:
		switch token {
		case TokenSuccess:
			p.current.Succeeded = true
		case TokenError:
			p.current.Succeeded = false
		default:
			return nil, p.fail(token, expectAny(TokenSuccess, TokenError))
		}
		p.state = StateDataOrEnd

	case StateDataOrEnd:
		switch token {
		case TokenEnd:
			return p.finish(), nil
		case TokenData:
			p.state = StateDataCount
		default:
			return nil, p.fail(token, expectAny(TokenData, TokenEnd))
		}

	case StateDataCount:
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 {
			return nil, p.fail(token, ErrBadDataCount)
		}
		if n == 0 {
			p.state = StateEnd
			break
		}
		p.linesLeft = n
		p.current.Data = make([]string, 0, min(n, maxDataPrealloc))
		p.state = StateDataLine

	case StateDataLine:
		p.current.Data = append(p.current.Data, token)
		p.linesLeft--
		if p.linesLeft == 0 {
			p.state = StateEnd
		}

	case StateEnd:
		if token != TokenEnd {
			return nil, p.fail(token, fmt.Errorf("%w: expected %s", ErrUnexpectedToken, TokenEnd))
		}
		return p.finish(), nil

	default:
		return nil, p.fail(token, fmt.Errorf("unknown parser state %s", p.state))
	}
	return nil, nil
}

func (p *CommandParser) finish() *Command {
	cmd := p.current
	p.Reset()
	return cmd
}

func (p *CommandParser) fail(token string, err error) error {
	perr := &ProtocolError{State: p.state, Token: token, Err: err}
	p.Reset()
	return perr
}

func expectAny(tokens ...string) error {
	return fmt.Errorf("%w: expected any of %s", ErrUnexpectedToken, strings.Join(tokens, ", "))
}

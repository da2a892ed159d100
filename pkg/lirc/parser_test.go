package lirc_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/omochice/lirc-bridge/pkg/lirc"
)

// feedAll runs every line of input through a fresh parser and collects
// completed commands and errors.
func feedAll(p *lirc.CommandParser, input string) ([]*lirc.Command, []error) {
	var cmds []*lirc.Command
	var errs []error
	lirc.NewFrameParser().Feed([]byte(input), func(line string) {
		cmd, err := p.Feed(line)
		if err != nil {
			errs = append(errs, err)
		}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	})
	return cmds, errs
}

func TestCommandParser_WellFormed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *lirc.Command
	}{
		{
			name:  "list remotes",
			input: "BEGIN\nLIST\nSUCCESS\nDATA\n2\nliving_room\nbedroom\nEND\n",
			want: &lirc.Command{
				Kind:      lirc.KindListRemotes,
				Line:      "LIST",
				Verb:      "LIST",
				Args:      []string{},
				Succeeded: true,
				Data:      []string{"living_room", "bedroom"},
			},
		},
		{
			name:  "send once without data",
			input: "BEGIN\nSEND_ONCE tv KEY_POWER\nSUCCESS\nEND\n",
			want: &lirc.Command{
				Kind:      lirc.KindGeneric,
				Line:      "SEND_ONCE tv KEY_POWER",
				Verb:      "SEND_ONCE",
				Args:      []string{"tv", "KEY_POWER"},
				Succeeded: true,
			},
		},
		{
			name:  "error reply with message",
			input: "BEGIN\nLIST nope\nERROR\nDATA\n1\nunknown remote: \"nope\"\nEND\n",
			want: &lirc.Command{
				Kind:   lirc.KindListRemote,
				Line:   "LIST nope",
				Verb:   "LIST",
				Args:   []string{"nope"},
				Remote: "nope",
				Data:   []string{`unknown remote: "nope"`},
			},
		},
		{
			name:  "zero data lines",
			input: "BEGIN\nVERSION\nSUCCESS\nDATA\n0\nEND\n",
			want: &lirc.Command{
				Kind:      lirc.KindVersion,
				Line:      "VERSION",
				Verb:      "VERSION",
				Args:      []string{},
				Succeeded: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := lirc.NewCommandParser()
			cmds, errs := feedAll(p, tt.input)
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if len(cmds) != 1 {
				t.Fatalf("expected 1 command, got %d", len(cmds))
			}
			if diff := cmp.Diff(tt.want, cmds[0], cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
			if p.InSession() {
				t.Error("parser should be back at Begin")
			}
		})
	}
}

func TestCommandParser_Resynchronizes(t *testing.T) {
	valid := "BEGIN\nVERSION\nSUCCESS\nDATA\n1\n0.10.1\nEND\n"

	tests := []struct {
		name      string
		garbage   string
		wantState lirc.ParserState
		wantErr   error
	}{
		{"bad begin", "HELLO\n", lirc.StateBegin, lirc.ErrUnexpectedToken},
		{"bad result", "BEGIN\nLIST\nMAYBE\n", lirc.StateResult, lirc.ErrUnexpectedToken},
		{"bad data or end", "BEGIN\nLIST\nSUCCESS\nMORE\n", lirc.StateDataOrEnd, lirc.ErrUnexpectedToken},
		{"bad count", "BEGIN\nLIST\nSUCCESS\nDATA\ntwo\n", lirc.StateDataCount, lirc.ErrBadDataCount},
		{"negative count", "BEGIN\nLIST\nSUCCESS\nDATA\n-1\n", lirc.StateDataCount, lirc.ErrBadDataCount},
		{"overflowing count", "BEGIN\nLIST\nSUCCESS\nDATA\n99999999999999999999\n", lirc.StateDataCount, lirc.ErrBadDataCount},
		{"missing end", "BEGIN\nLIST\nSUCCESS\nDATA\n1\nremote\nEXTRA\n", lirc.StateEnd, lirc.ErrUnexpectedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := lirc.NewCommandParser()
			cmds, errs := feedAll(p, tt.garbage)
			if len(cmds) != 0 {
				t.Errorf("partial command must not be emitted, got %v", cmds)
			}
			if len(errs) != 1 {
				t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
			}

			var perr *lirc.ProtocolError
			if !errors.As(errs[0], &perr) {
				t.Fatalf("expected *ProtocolError, got %T", errs[0])
			}
			if perr.State != tt.wantState {
				t.Errorf("error state = %s, want %s", perr.State, tt.wantState)
			}
			if !errors.Is(errs[0], tt.wantErr) {
				t.Errorf("error = %v, want %v", errs[0], tt.wantErr)
			}
			if p.State() != lirc.StateBegin {
				t.Errorf("state after error = %s, want Begin", p.State())
			}

			cmds, errs = feedAll(p, valid)
			if len(errs) != 0 || len(cmds) != 1 {
				t.Fatalf("valid session after error: cmds=%d errs=%v", len(cmds), errs)
			}
			if got := cmds[0].Version(); got != "0.10.1" {
				t.Errorf("Version() = %q, want %q", got, "0.10.1")
			}
		})
	}
}

func TestCommandParser_HugeDataCount(t *testing.T) {
	for _, count := range []string{"9223372036854775807", "1099511627776"} {
		t.Run(count, func(t *testing.T) {
			p := lirc.NewCommandParser()
			cmds, errs := feedAll(p, "BEGIN\nLIST\nSUCCESS\nDATA\n"+count+"\ntv\nEND\n")
			if len(errs) != 0 || len(cmds) != 0 {
				t.Fatalf("cmds=%v errs=%v", cmds, errs)
			}
			if p.State() != lirc.StateDataLine {
				t.Fatalf("state = %s, want DataLine", p.State())
			}

			p.Reset()
			cmds, errs = feedAll(p, "BEGIN\nVERSION\nSUCCESS\nDATA\n1\n0.10.1\nEND\n")
			if len(errs) != 0 || len(cmds) != 1 {
				t.Fatalf("valid session after reset: cmds=%d errs=%v", len(cmds), errs)
			}
			if got := cmds[0].Version(); got != "0.10.1" {
				t.Errorf("Version() = %q, want %q", got, "0.10.1")
			}
		})
	}
}

func TestCommandParser_Sequence(t *testing.T) {
	input := strings.Join([]string{
		"BEGIN", "LIST", "SUCCESS", "DATA", "1", "tv", "END",
		"BEGIN", "LIST tv", "SUCCESS", "DATA", "2", "KEY_POWER", "KEY_MUTE", "END",
		"",
	}, "\n")

	cmds, errs := feedAll(lirc.NewCommandParser(), input)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d", len(cmds))
	}
	if cmds[0].Kind != lirc.KindListRemotes || cmds[1].Kind != lirc.KindListRemote {
		t.Errorf("kinds = %s, %s", cmds[0].Kind, cmds[1].Kind)
	}
	if cmds[1].Remote != "tv" {
		t.Errorf("Remote = %q, want tv", cmds[1].Remote)
	}
}

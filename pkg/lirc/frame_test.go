package lirc_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/omochice/lirc-bridge/pkg/lirc"
)

func TestFrameParser_Feed(t *testing.T) {
	tests := []struct {
		name        string
		chunks      []string
		want        []string
		wantPending int
	}{
		{
			name:   "single line",
			chunks: []string{"BEGIN\n"},
			want:   []string{"BEGIN"},
		},
		{
			name:   "several lines in one chunk",
			chunks: []string{"BEGIN\nLIST\nSUCCESS\n"},
			want:   []string{"BEGIN", "LIST", "SUCCESS"},
		},
		{
			name:   "line split across chunks",
			chunks: []string{"0000 00 KEY_", "POWER liv", "ing_room\n"},
			want:   []string{"0000 00 KEY_POWER living_room"},
		},
		{
			name:        "trailing partial line is kept",
			chunks:      []string{"END\nBEG"},
			want:        []string{"END"},
			wantPending: 3,
		},
		{
			name:   "empty lines are emitted",
			chunks: []string{"\n\n"},
			want:   []string{"", ""},
		},
		{
			name:   "no data",
			chunks: []string{""},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := lirc.NewFrameParser()
			var got []string
			for _, c := range tt.chunks {
				p.Feed([]byte(c), func(line string) {
					got = append(got, line)
				})
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Feed() lines mismatch (-want +got):\n%s", diff)
			}
			if p.Pending() != tt.wantPending {
				t.Errorf("Pending() = %d, want %d", p.Pending(), tt.wantPending)
			}
		})
	}
}

func TestFrameParser_LongLine(t *testing.T) {
	p := lirc.NewFrameParser()
	long := make([]byte, 64*1024)
	for i := range long {
		long[i] = 'a'
	}

	var got []string
	emit := func(line string) { got = append(got, line) }
	p.Feed(long[:1000], emit)
	p.Feed(long[1000:], emit)
	p.Feed([]byte("\n"), emit)

	if len(got) != 1 || len(got[0]) != len(long) {
		t.Fatalf("expected one line of %d bytes, got %d lines", len(long), len(got))
	}
}

func TestFrameParser_Reset(t *testing.T) {
	p := lirc.NewFrameParser()
	p.Feed([]byte("partial"), func(string) { t.Error("unexpected line") })
	p.Reset()

	var got []string
	p.Feed([]byte("next\n"), func(line string) { got = append(got, line) })
	if len(got) != 1 || got[0] != "next" {
		t.Errorf("after Reset got %q, want [next]", got)
	}
}

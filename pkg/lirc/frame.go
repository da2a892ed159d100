package lirc

import (
	"bytes"
	"sync"
)

// FrameParser splits a byte stream into newline terminated lines.
//
// Bytes after the last newline are kept until the next call to Feed. There
// is no cap on line length. All calls are serialized by an internal lock,
// and emit runs while the lock is held, so lines of one stream are always
// delivered in receipt order.
type FrameParser struct {
	mu      sync.Mutex
	partial []byte
}

// NewFrameParser returns an empty FrameParser.
func NewFrameParser() *FrameParser {
	return &FrameParser{}
}

// Feed consumes data and calls emit once for each completed line, without
// its terminator.
func (p *FrameParser) Feed(data []byte, emit func(line string)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			p.partial = append(p.partial, data...)
			return
		}
		var line string
		if len(p.partial) > 0 {
			p.partial = append(p.partial, data[:i]...)
			line = string(p.partial)
			p.partial = p.partial[:0]
		} else {
			line = string(data[:i])
		}
		data = data[i+1:]
		emit(line)
	}
}

// Pending returns the number of buffered bytes that do not yet form a line.
func (p *FrameParser) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.partial)
}

// Reset drops any partial line. It is used when a connection is replaced.
func (p *FrameParser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.partial = nil
}

// Package transport frames JSON values as newline-delimited lines over a
// worker's standard streams. The newline is the only frame boundary; the
// worker contract guarantees no embedded newlines inside one logical value.
package transport

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"mediabridge/internal/protocol"
)

// DefaultMaxLineBytes bounds a single response line. Worker responses are
// small JSON objects; anything beyond this indicates a runaway stream.
const DefaultMaxLineBytes = 1 << 20

// Conn reads and writes one JSON value per line over a stream pair.
// WriteLine is safe for concurrent use; ReadLine must have a single caller.
type Conn struct {
	wmu sync.Mutex
	w   io.Writer
	r   *bufio.Reader

	maxLine int
}

// Option configures a Conn.
type Option func(*Conn)

// WithMaxLineBytes overrides the line length ceiling.
func WithMaxLineBytes(limit int) Option {
	return func(c *Conn) {
		if limit > 0 {
			c.maxLine = limit
		}
	}
}

// New wraps a reader/writer pair in a line-framed JSON connection.
func New(r io.Reader, w io.Writer, opts ...Option) *Conn {
	conn := &Conn{
		w:       w,
		r:       bufio.NewReader(r),
		maxLine: DefaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(conn)
	}
	return conn
}

// WriteLine serializes v as one JSON document followed by a newline. The
// value and delimiter go out in a single Write so a concurrent writer cannot
// interleave, and nothing is buffered on our side; the worker blocks until it
// sees the delimiter.
func (c *Conn) WriteLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("transport: marshal: %w", err)
	}
	line := make([]byte, 0, len(data)+1)
	line = append(line, data...)
	line = append(line, '\n')

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.w.Write(line); err != nil {
		return fmt.Errorf("transport: write line: %w", err)
	}
	return nil
}

// ReadLine blocks until a full line is available and returns its raw JSON.
// A stream that ends cleanly at a line boundary returns io.EOF; one that
// closes mid-line, overruns the length ceiling, or delivers invalid JSON
// fails with a framing error.
func (c *Conn) ReadLine() (json.RawMessage, error) {
	var line []byte
	for {
		chunk, err := c.r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > c.maxLine {
			return nil, protocol.Wrap(protocol.ErrFraming, "transport", "read",
				fmt.Sprintf("line exceeds %d bytes", c.maxLine), nil)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(line) == 0 {
				return nil, io.EOF
			}
			return nil, protocol.Wrap(protocol.ErrFraming, "transport", "read", "stream closed mid-line", nil)
		}
		return nil, protocol.Wrap(protocol.ErrFraming, "transport", "read", "", err)
	}
	trimmed := trimLine(line)
	if !json.Valid(trimmed) {
		return nil, protocol.Wrap(protocol.ErrFraming, "transport", "read", "line is not valid JSON", nil)
	}
	return json.RawMessage(trimmed), nil
}

func trimLine(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

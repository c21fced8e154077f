package redisserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Protocol limits.
const (
	// MaxArrayLen bounds the argument count of one command.
	MaxArrayLen = 4096

	// DefaultMaxBulkLen bounds a single argument unless the reader is
	// configured otherwise.
	DefaultMaxBulkLen = 1 << 20

	// MaxInlineLen bounds inline commands such as "PING\r\n".
	MaxInlineLen = 64 * 1024

	maxHeaderLen = 32
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// Reader decodes client commands.
type Reader struct {
	br      *bufio.Reader
	maxBulk int
}

// NewReader wraps r. maxBulk <= 0 selects DefaultMaxBulkLen.
func NewReader(r io.Reader, maxBulk int) *Reader {
	if maxBulk <= 0 {
		maxBulk = DefaultMaxBulkLen
	}
	return &Reader{br: bufio.NewReader(r), maxBulk: maxBulk}
}

// Peek blocks until at least one byte is buffered.
func (r *Reader) Peek() error {
	_, err := r.br.Peek(1)
	return err
}

// ReadCommand reads one command, either a RESP array of bulk strings or an
// inline command. An empty command yields a nil slice.
func (r *Reader) ReadCommand() ([][]byte, error) {
	b, err := r.br.Peek(1)
	if err != nil {
		return nil, err
	}
	if b[0] != '*' {
		line, err := r.readLine(MaxInlineLen)
		if err != nil {
			return nil, err
		}
		return bytes.Fields(line), nil
	}

	n, err := r.readHeader('*')
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	if n > MaxArrayLen {
		return nil, fmt.Errorf("%w: %d arguments, max %d", ErrLimitExceeded, n, MaxArrayLen)
	}

	args := make([][]byte, n)
	for i := range args {
		if args[i], err = r.readBulk(); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func (r *Reader) readBulk() ([]byte, error) {
	n, err := r.readHeader('$')
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: null bulk string in command", ErrProtocol)
	}
	if n > r.maxBulk {
		return nil, fmt.Errorf("%w: bulk string of %d bytes, max %d", ErrLimitExceeded, n, r.maxBulk)
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return nil, err
	}
	if buf[n] != '\r' || buf[n+1] != '\n' {
		return nil, fmt.Errorf("%w: bulk string not terminated by CRLF", ErrProtocol)
	}
	return buf[:n:n], nil
}

// readHeader reads "<prefix><int>\r\n".
func (r *Reader) readHeader(prefix byte) (int, error) {
	line, err := r.readLine(maxHeaderLen)
	if err != nil {
		return 0, err
	}
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected '%c'", ErrProtocol, prefix)
	}
	n, err := strconv.Atoi(string(line[1:]))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, line[1:])
	}
	return n, nil
}

// readLine returns a CRLF-terminated line without the terminator.
func (r *Reader) readLine(maxLen int) ([]byte, error) {
	var line []byte
	for {
		frag, err := r.br.ReadSlice('\n')
		line = append(line, frag...)
		if len(line) > maxLen+2 {
			return nil, fmt.Errorf("%w: line longer than %d bytes", ErrLimitExceeded, maxLen)
		}
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, fmt.Errorf("%w: line not terminated by CRLF", ErrProtocol)
	}
	return line[:len(line)-2], nil
}

// Writer encodes replies. Errors are sticky: after the first failed write
// the rest are skipped and Flush returns the error.
type Writer struct {
	bw  *bufio.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

func (w *Writer) write(parts ...[]byte) {
	for _, p := range parts {
		if w.err != nil {
			return
		}
		_, w.err = w.bw.Write(p)
	}
}

var crlf = []byte("\r\n")

// Simple writes a simple string reply.
func (w *Writer) Simple(s string) {
	w.write([]byte("+"+s), crlf)
}

// Error writes an error reply. s starts with the error kind, e.g. "ERR".
func (w *Writer) Error(s string) {
	w.write([]byte("-"+s), crlf)
}

// Int writes an integer reply.
func (w *Writer) Int(n int64) {
	w.write(strconv.AppendInt([]byte(":"), n, 10), crlf)
}

// Bulk writes a bulk string reply; nil becomes the null bulk string.
func (w *Writer) Bulk(b []byte) {
	if b == nil {
		w.write([]byte("$-1"), crlf)
		return
	}
	w.write(strconv.AppendInt([]byte("$"), int64(len(b)), 10), crlf, b, crlf)
}

// Array writes an array header of n elements.
func (w *Writer) Array(n int) {
	w.write(strconv.AppendInt([]byte("*"), int64(n), 10), crlf)
}

// Flush sends buffered replies.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.bw.Flush()
}

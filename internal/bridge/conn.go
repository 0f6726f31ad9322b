package bridge

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// MaxLineLength bounds a single request line.
const MaxLineLength = 64 * 1024

// ErrLineTooLong is returned by ReadLine when a request exceeds MaxLineLength.
var ErrLineTooLong = errors.New("request line too long")

// Conn wraps a TCP connection with line-based reads and writes.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
	once   sync.Once

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps a raw connection.
//
// Precondition: raw must be a valid, open network connection.
// Postcondition: Returns a Conn ready for reading and writing.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadLine reads a single request line. Both "\n" and "\r\n" terminate a
// line; the terminator is not returned.
//
// Postcondition: Returns the next line, or an error (including io.EOF).
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	var line strings.Builder
	for {
		chunk, isPrefix, err := c.reader.ReadLine()
		line.Write(chunk)
		if line.Len() > MaxLineLength {
			return "", ErrLineTooLong
		}
		if err != nil {
			return line.String(), err
		}
		if !isPrefix {
			return line.String(), nil
		}
	}
}

// WriteLine sends text followed by "\n".
//
// Precondition: text should not contain newline characters.
// Postcondition: text + "\n" is written to the connection.
func (c *Conn) WriteLine(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := fmt.Fprintf(c.raw, "%s\n", text)
	return err
}

// Close closes the underlying TCP connection. Repeated calls are no-ops.
//
// Postcondition: The connection is closed and no longer usable.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() { err = c.raw.Close() })
	return err
}

// RemoteAddr returns the remote network address of the client.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

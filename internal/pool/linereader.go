package pool

import (
	"bytes"
	"net"
	"strings"
	"time"
)

const readChunk = 4096

// lineReader frames newline-terminated messages off the pool socket.
// Incomplete trailing content survives read timeouts, so the listener
// can poll with a short deadline without losing partial lines.
type lineReader struct {
	conn net.Conn
	buf  []byte
}

func newLineReader(conn net.Conn) *lineReader {
	return &lineReader{conn: conn}
}

// readLine returns the next complete line, without its terminator. A
// deadline error surfaces as-is; buffered partial content is kept for
// the next call.
func (r *lineReader) readLine(timeout time.Duration) (string, error) {
	var tmp [readChunk]byte

	for {
		if i := bytes.IndexByte(r.buf, '\n'); i >= 0 {
			line := strings.TrimSuffix(string(r.buf[:i]), "\r")
			rest := make([]byte, len(r.buf)-i-1)
			copy(rest, r.buf[i+1:])
			r.buf = rest
			return line, nil
		}

		r.conn.SetReadDeadline(time.Now().Add(timeout))
		n, err := r.conn.Read(tmp[:])
		if n > 0 {
			r.buf = append(r.buf, tmp[:n]...)
		}
		if err != nil {
			if bytes.IndexByte(r.buf, '\n') >= 0 {
				continue
			}
			return "", err
		}
	}
}

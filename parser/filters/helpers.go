package filters

import (
	"bytes"
	"io"
)

// countReader wraps a reader to track exactly how many bytes have been
// pulled through it, so a Skipper can report its EOD position to the
// caller without the caller needing its own counting reader.
type countReader struct {
	src       io.Reader
	totalRead int
}

func newCountReader(src io.Reader) *countReader {
	return &countReader{src: src}
}

func (c *countReader) Read(p []byte) (int, error) {
	n, err := c.src.Read(p)
	c.totalRead += n
	return n, err
}

// reacher reads from src one byte at a time and stops (returning io.EOF)
// as soon as the trailing bytes read equal term, the terminator
// sequence. It never reads past the terminator, which is what lets a
// Skipper locate an inline image's End-Of-Data marker without a
// pre-declared length.
type reacher struct {
	src  io.ByteReader
	term []byte
	buf  []byte
	done bool
}

func newReacher(src io.ByteReader, term []byte) *reacher {
	return &reacher{src: src, term: term}
}

func (r *reacher) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		b, err := r.src.ReadByte()
		if err != nil {
			r.done = true
			if n == 0 {
				return 0, err
			}
			return n, nil
		}
		r.buf = append(r.buf, b)
		if len(r.buf) > len(r.term) {
			r.buf = r.buf[len(r.buf)-len(r.term):]
		}
		if bytes.Equal(r.buf, r.term) {
			r.done = true
			return n + 1, nil
		}
		p[n] = b
		n++
	}
	return n, nil
}

// byteReaderFrom adapts an io.Reader to io.ByteReader when it doesn't
// already implement it (reacher needs one-byte reads).
func byteReaderFrom(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return &singleByteReader{r: r}
}

type singleByteReader struct {
	r   io.Reader
	one [1]byte
}

func (s *singleByteReader) ReadByte() (byte, error) {
	_, err := io.ReadFull(s.r, s.one[:])
	if err != nil {
		return 0, err
	}
	return s.one[0], nil
}

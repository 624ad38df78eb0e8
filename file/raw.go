package file

import (
	"bytes"
	"io"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
)

// ioRawSource implements parser.RawByteSource against the context's
// underlying ReadSeeker. It tracks its own extra-bytes-consumed counter
// on top of the tokenizer's own offset, since raw reads bypass the
// lexer entirely; baseOffset plus p.ByteOffset() plus that counter is
// always the true absolute file position. The single EOL the spec requires right after
// the "stream" keyword (§7.3.8.1) is skipped lazily on first use, since
// the lexer stops right at it without consuming it.
type ioRawSource struct {
	ctx        *context
	p          *parser.Parser
	baseOffset int64
	extra      int64
	skippedEOL bool
}

func (s *ioRawSource) position() int64 {
	return s.baseOffset + s.p.ByteOffset() + s.extra
}

func (s *ioRawSource) skipLeadingEOL() error {
	if s.skippedEOL {
		return nil
	}
	s.skippedEOL = true
	pos := s.position()
	peek, err := s.ctx.readAt(pos, minInt64(2, s.ctx.fileSize-pos))
	if err != nil || len(peek) == 0 {
		return nil
	}
	switch {
	case len(peek) >= 2 && peek[0] == '\r' && peek[1] == '\n':
		s.extra += 2
	case peek[0] == '\n' || peek[0] == '\r':
		s.extra += 1
	}
	return nil
}

func (s *ioRawSource) ReadN(n int64) ([]byte, error) {
	if err := s.skipLeadingEOL(); err != nil {
		return nil, err
	}
	pos := s.position()
	if n < 0 || pos+n > s.ctx.fileSize {
		return nil, perr.New(perr.ParseError, "file.ioRawSource.ReadN", io.ErrUnexpectedEOF)
	}
	buf, err := s.ctx.readAt(pos, n)
	if err != nil {
		return nil, err
	}
	s.extra += n
	return buf, nil
}

// ScanForEndstream reads forward in chunks looking for the literal
// "endstream", used when /Length is missing, wrong, or unresolvable.
func (s *ioRawSource) ScanForEndstream(maxScan int64) ([]byte, error) {
	if err := s.skipLeadingEOL(); err != nil {
		return nil, err
	}
	const chunk = 4096
	marker := []byte("endstream")
	start := s.position()
	var buf []byte
	for int64(len(buf)) < maxScan {
		remaining := s.ctx.fileSize - start - int64(len(buf))
		if remaining <= 0 {
			break
		}
		n := int64(chunk)
		if n > remaining {
			n = remaining
		}
		next, err := s.ctx.readAt(start+int64(len(buf)), n)
		if err != nil {
			return nil, err
		}
		buf = append(buf, next...)
		if idx := bytes.Index(buf, marker); idx >= 0 {
			s.extra += int64(idx) + int64(len(marker))
			return trimStreamTrailingEOL(buf[:idx]), nil
		}
		if n < chunk {
			break
		}
	}
	return nil, perr.New(perr.ParseError, "file.ioRawSource.ScanForEndstream", io.ErrUnexpectedEOF)
}

func trimStreamTrailingEOL(b []byte) []byte {
	b = bytesTrimSuffix(b, []byte("\r\n"))
	b = bytesTrimSuffix(b, []byte("\n"))
	b = bytesTrimSuffix(b, []byte("\r"))
	return b
}

func bytesTrimSuffix(b, suffix []byte) []byte {
	if bytes.HasSuffix(b, suffix) {
		return b[:len(b)-len(suffix)]
	}
	return b
}

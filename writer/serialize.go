package writer

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kilnpdf/core/parser"
	"golang.org/x/text/encoding/unicode"
)

var utf16Enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// encodeTextString encodes a Go string as UTF-16BE with a leading BOM,
// stored as a hex-form parser.String so the serializer emits it as
// <FEFF...> without needing to escape embedded NUL/control bytes.
func encodeTextString(s string) parser.String {
	encoded, err := utf16Enc.NewEncoder().String(s)
	if err != nil {
		// invalid input for the target encoding; fall back to raw bytes
		// rather than fail the whole document.
		return parser.String{Bytes: []byte(s), Encoding: parser.HexEncoding}
	}
	return parser.String{Bytes: []byte(encoded), Encoding: parser.HexEncoding}
}

// formatReal renders a PDF real number: fixed-point, up to 6 fractional
// digits, trailing zeros trimmed, never exponent notation.
func formatReal(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	s := strconv.FormatFloat(f, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

// isPrintableLiteral reports whether b can be written as a PDF literal
// string with only the three mandatory escapes (backslash, parens), i.e.
// with no other non-printable or high bytes that would be ambiguous.
func isPrintableLiteral(b []byte) bool {
	for _, c := range b {
		if c < 0x20 && c != '\n' && c != '\t' {
			return false
		}
		if c >= 0x7F {
			return false
		}
	}
	return true
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", `\r`)

func formatString(s parser.String) []byte {
	if s.Encoding == parser.HexEncoding || !isPrintableLiteral(s.Bytes) {
		return []byte(fmt.Sprintf("<%s>", strings.ToUpper(fmt.Sprintf("%x", s.Bytes))))
	}
	escaped := literalEscaper.Replace(string(s.Bytes))
	return []byte("(" + escaped + ")")
}

// formatName writes a PDF name, escaping any byte that requires a #xx
// sequence per §7.3.5 (whitespace, delimiters, '#' itself, and bytes
// outside the printable-ASCII range).
func formatName(n parser.Name) []byte {
	var buf bytes.Buffer
	buf.WriteByte('/')
	for _, c := range []byte(n) {
		if c <= 0x20 || c >= 0x7F || strings.IndexByte("()<>[]{}/%#", c) >= 0 {
			fmt.Fprintf(&buf, "#%02X", c)
			continue
		}
		buf.WriteByte(c)
	}
	return buf.Bytes()
}

// formatObject renders a non-stream object's PDF token form. Stream
// objects are handled by the caller (they need the dict-then-"stream"
// keyword-then-raw-bytes framing, which doesn't compose with a plain
// byte-slice return here).
func formatObject(o parser.Object) []byte {
	switch v := o.(type) {
	case parser.Null:
		return []byte("null")
	case parser.Boolean:
		if v {
			return []byte("true")
		}
		return []byte("false")
	case parser.Integer:
		return []byte(strconv.FormatInt(int64(v), 10))
	case parser.Real:
		return []byte(formatReal(float64(v)))
	case parser.Name:
		return formatName(v)
	case parser.String:
		return formatString(v)
	case parser.Reference:
		return []byte(fmt.Sprintf("%d %d R", v.Number, v.Generation))
	case parser.Array:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.Write(formatObject(e))
		}
		buf.WriteByte(']')
		return buf.Bytes()
	case parser.Dict:
		return formatDict(v)
	default:
		return []byte("null")
	}
}

// formatDict writes d's entries in whatever order Go's map iteration
// gives: parser.Dict is a plain map[Name]Object throughout this module,
// with no side channel for insertion order, so a dictionary's key order
// is not preserved across a parse/serialize round-trip. This does not
// affect any invariant a conformant reader depends on (object identity
// is resolved by /Type and key name, never position), but it does mean
// byte-for-byte diffing two renders of the same logical document is not
// meaningful unless both went through the same process.
func formatDict(d parser.Dict) []byte {
	var buf bytes.Buffer
	buf.WriteString("<<")
	for k, v := range d {
		buf.Write(formatName(k))
		buf.WriteByte(' ')
		buf.Write(formatObject(v))
		buf.WriteByte(' ')
	}
	buf.WriteString(">>")
	return buf.Bytes()
}

package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/kilnpdf/core/perr"
)

// Lexer reads tokens from a byte stream per ISO 32000-1 §7.2.
type Lexer struct {
	r       *bufio.Reader
	Lenient bool

	// Offset tracks bytes consumed so callers building an object parser
	// can report stream-content offsets relative to the underlying
	// io.ReadSeeker (the Lexer itself never seeks).
	Offset int64
}

func NewLexer(r io.Reader) *Lexer {
	return &Lexer{r: bufio.NewReader(r)}
}

func isWhitespace(b byte) bool {
	switch b {
	case 0x00, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	switch b {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

func (l *Lexer) readByte() (byte, error) {
	b, err := l.r.ReadByte()
	if err == nil {
		l.Offset++
	}
	return b, err
}

func (l *Lexer) unreadByte() {
	_ = l.r.UnreadByte()
	l.Offset--
}

func (l *Lexer) peekByte() (byte, error) {
	bs, err := l.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return bs[0], nil
}

// skipWhitespaceAndComments advances past whitespace and %-comments,
// which are lexically equivalent to whitespace outside of the %PDF- and
// %%EOF markers (those are located by byte-scan elsewhere, not here).
func (l *Lexer) skipWhitespaceAndComments() error {
	for {
		b, err := l.readByte()
		if err != nil {
			return err
		}
		switch {
		case isWhitespace(b):
			continue
		case b == '%':
			for {
				b2, err := l.readByte()
				if err != nil {
					return err
				}
				if b2 == '\n' || b2 == '\r' {
					break
				}
			}
			continue
		default:
			l.unreadByte()
			return nil
		}
	}
}

// Next returns the next token, or a Token{Kind: EOF} at end of stream.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		if err == io.EOF {
			return Token{Kind: EOF}, nil
		}
		return Token{}, perr.New(perr.IoFailure, "tokenizer.Next", err)
	}

	b, err := l.readByte()
	if err != nil {
		if err == io.EOF {
			return Token{Kind: EOF}, nil
		}
		return Token{}, perr.New(perr.IoFailure, "tokenizer.Next", err)
	}

	switch b {
	case '/':
		return l.lexName()
	case '(':
		return l.lexLiteralString()
	case '[':
		return Token{Kind: StartArray}, nil
	case ']':
		return Token{Kind: EndArray}, nil
	case '<':
		b2, err := l.peekByte()
		if err == nil && b2 == '<' {
			_, _ = l.readByte()
			return Token{Kind: StartDic}, nil
		}
		return l.lexHexString()
	case '>':
		b2, err := l.peekByte()
		if err == nil && b2 == '>' {
			_, _ = l.readByte()
			return Token{Kind: EndDic}, nil
		}
		if l.Lenient {
			return Token{Kind: Other, Bytes: []byte(">")}, nil
		}
		return Token{}, perr.New(perr.LexError, "tokenizer.Next", fmt.Errorf("stray '>' "))
	case '{', '}':
		// PostScript calculator function braces; treated as keyword
		// tokens, the object parser for PDF functions (out of scope
		// here) can special-case them.
		return Token{Kind: Other, Bytes: []byte{b}}, nil
	case ')':
		if l.Lenient {
			return Token{Kind: Other, Bytes: []byte(")")}, nil
		}
		return Token{}, perr.New(perr.LexError, "tokenizer.Next", fmt.Errorf("stray ')' "))
	case '+', '-', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		l.unreadByte()
		return l.lexNumberOrKeyword()
	default:
		l.unreadByte()
		return l.lexKeyword()
	}
}

func (l *Lexer) lexName() (Token, error) {
	var out []byte
	for {
		b, err := l.peekByte()
		if err != nil || !isRegular(b) {
			break
		}
		_, _ = l.readByte()
		if b == '#' {
			h, err := l.r.Peek(2)
			if err == nil && isHexDigit(h[0]) && isHexDigit(h[1]) {
				_, _ = l.readByte()
				_, _ = l.readByte()
				v, _ := strconv.ParseUint(string(h), 16, 8)
				out = append(out, byte(v))
				continue
			}
		}
		out = append(out, b)
	}
	return Token{Kind: Name, Bytes: out}, nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexVal(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}

// lexLiteralString reads a (...)-delimited string with balanced nested
// parens and backslash escapes: \n \r \t \b \f \( \) \\ \ddd octal and
// line-continuation (backslash immediately followed by EOL is elided).
func (l *Lexer) lexLiteralString() (Token, error) {
	depth := 1
	var out []byte
	for {
		b, err := l.readByte()
		if err != nil {
			if l.Lenient {
				return Token{Kind: String, Bytes: out}, nil
			}
			return Token{}, perr.New(perr.LexError, "tokenizer.lexLiteralString", fmt.Errorf("unterminated literal string"))
		}
		switch b {
		case '(':
			depth++
			out = append(out, b)
		case ')':
			depth--
			if depth == 0 {
				return Token{Kind: String, Bytes: out}, nil
			}
			out = append(out, b)
		case '\\':
			b2, err := l.readByte()
			if err != nil {
				if l.Lenient {
					return Token{Kind: String, Bytes: out}, nil
				}
				return Token{}, perr.New(perr.LexError, "tokenizer.lexLiteralString", fmt.Errorf("unterminated escape"))
			}
			switch b2 {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '(', ')', '\\':
				out = append(out, b2)
			case '\r':
				// line continuation; a following \n is also swallowed.
				if p, err := l.peekByte(); err == nil && p == '\n' {
					_, _ = l.readByte()
				}
			case '\n':
				// line continuation
			default:
				if b2 >= '0' && b2 <= '7' {
					val := int(b2 - '0')
					for i := 0; i < 2; i++ {
						p, err := l.peekByte()
						if err != nil || p < '0' || p > '7' {
							break
						}
						_, _ = l.readByte()
						val = val*8 + int(p-'0')
					}
					out = append(out, byte(val))
				} else {
					// backslash before unrecognized char: the
					// backslash is ignored and the char is literal.
					out = append(out, b2)
				}
			}
		default:
			out = append(out, b)
		}
	}
}

// lexHexString reads a <...>-delimited hex string; an odd number of hex
// digits gets an implicit trailing 0 nibble.
func (l *Lexer) lexHexString() (Token, error) {
	var digits []byte
	for {
		b, err := l.readByte()
		if err != nil {
			if l.Lenient {
				break
			}
			return Token{}, perr.New(perr.LexError, "tokenizer.lexHexString", fmt.Errorf("unterminated hex string"))
		}
		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		if !isHexDigit(b) {
			if l.Lenient {
				continue
			}
			return Token{}, perr.New(perr.LexError, "tokenizer.lexHexString", fmt.Errorf("invalid hex digit %q", b))
		}
		digits = append(digits, b)
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	for i := range out {
		out[i] = hexVal(digits[2*i])<<4 | hexVal(digits[2*i+1])
	}
	return Token{Kind: StringHex, Bytes: out}, nil
}

// lexNumberOrKeyword handles the ambiguity between numeric tokens and
// bare keywords that happen to start with a digit-like byte (there are
// none in standard PDF, but lenient recovery may hand us garbage).
func (l *Lexer) lexNumberOrKeyword() (Token, error) {
	var raw []byte
	sawDot := false
	for {
		b, err := l.peekByte()
		if err != nil || !isRegular(b) {
			break
		}
		if b == '.' {
			sawDot = true
		} else if !(b == '+' || b == '-' || (b >= '0' && b <= '9')) {
			// non-numeric regular byte folded into the token: treat
			// the whole thing as a keyword (defensive, lenient mode).
			return l.lexKeywordFrom(raw)
		}
		_, _ = l.readByte()
		raw = append(raw, b)
	}
	if len(raw) == 0 {
		return Token{Kind: Other, Bytes: raw}, nil
	}
	if sawDot {
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			if l.Lenient {
				return Token{Kind: Float, Bytes: raw, FloatVal: 0}, nil
			}
			return Token{}, perr.New(perr.LexError, "tokenizer.lexNumberOrKeyword", err)
		}
		return Token{Kind: Float, Bytes: raw, FloatVal: f}, nil
	}
	i, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		// overflow: fall back to real, per spec §4.2 number ambiguity.
		f, ferr := strconv.ParseFloat(string(raw), 64)
		if ferr != nil {
			if l.Lenient {
				return Token{Kind: Integer, Bytes: raw}, nil
			}
			return Token{}, perr.New(perr.LexError, "tokenizer.lexNumberOrKeyword", err)
		}
		return Token{Kind: Float, Bytes: raw, FloatVal: f}, nil
	}
	return Token{Kind: Integer, Bytes: raw, IntegerVal: i}, nil
}

func (l *Lexer) lexKeyword() (Token, error) {
	return l.lexKeywordFrom(nil)
}

func (l *Lexer) lexKeywordFrom(prefix []byte) (Token, error) {
	out := append([]byte{}, prefix...)
	for {
		b, err := l.peekByte()
		if err != nil || !isRegular(b) {
			break
		}
		_, _ = l.readByte()
		out = append(out, b)
	}
	if len(out) == 0 {
		if l.Lenient {
			// swallow one unrecognized byte and keep going, per §4.1.
			_, err := l.readByte()
			if err != nil {
				return Token{Kind: EOF}, nil
			}
			return Token{Kind: Other, Bytes: []byte{'?'}}, nil
		}
		return Token{}, perr.New(perr.LexError, "tokenizer.lexKeyword", fmt.Errorf("invalid token"))
	}
	return Token{Kind: Other, Bytes: out}, nil
}

package parser

import (
	"fmt"

	"github.com/kilnpdf/core/perr"
	"github.com/kilnpdf/core/tokenizer"
)

// LengthResolver lets the parser turn an indirect /Length reference into
// a concrete byte count without owning a whole xref table itself — the
// file package implements it by dereferencing through its object store.
type LengthResolver interface {
	ResolveLength(ref Reference) (int64, bool)
}

// Parser consumes a tokenizer.Lexer and produces Objects. It keeps a
// small pushback buffer so the 3-token lookahead needed for reference
// detection (`N G R`) doesn't require a second pass.
type Parser struct {
	lx       *tokenizer.Lexer
	pushback []tokenizer.Token
	Lenient  bool
	Lengths  LengthResolver
}

func NewParser(lx *tokenizer.Lexer) *Parser {
	lx.Lenient = false
	return &Parser{lx: lx}
}

func NewLenientParser(lx *tokenizer.Lexer) *Parser {
	lx.Lenient = true
	return &Parser{lx: lx, Lenient: true}
}

func (p *Parser) next() (tokenizer.Token, error) {
	if n := len(p.pushback); n > 0 {
		t := p.pushback[n-1]
		p.pushback = p.pushback[:n-1]
		return t, nil
	}
	return p.lx.Next()
}

func (p *Parser) unread(t tokenizer.Token) {
	p.pushback = append(p.pushback, t)
}

// ByteOffset returns the current consumption offset of the underlying
// lexer, useful for error messages and stream-length fallback scanning.
func (p *Parser) ByteOffset() int64 { return p.lx.Offset }

// ParseObject parses exactly one PdfObject starting at the current
// position. It does not consume the "obj"/"endobj" wrapper — see
// ParseObjectHeader, ParseIndirectObjectBody and ConsumeEndobj for that.
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	return p.parseObjectFrom(tok)
}

func (p *Parser) parseObjectFrom(tok tokenizer.Token) (Object, error) {
	switch tok.Kind {
	case tokenizer.EOF:
		return nil, perr.New(perr.ParseError, "parser.ParseObject", fmt.Errorf("unexpected EOF"))
	case tokenizer.Name:
		return Name(tok.Bytes), nil
	case tokenizer.String:
		return String{Bytes: tok.Bytes, Encoding: LiteralEncoding}, nil
	case tokenizer.StringHex:
		return String{Bytes: tok.Bytes, Encoding: HexEncoding}, nil
	case tokenizer.StartArray:
		return p.parseArray()
	case tokenizer.StartDic:
		return p.parseDict()
	case tokenizer.Float:
		return Real(tok.FloatVal), nil
	case tokenizer.Integer:
		return p.parseNumericOrReference(tok)
	case tokenizer.Other:
		return p.parseKeywordObject(tok)
	default:
		if p.Lenient {
			return Null{}, nil
		}
		return nil, perr.New(perr.ParseError, "parser.ParseObject", fmt.Errorf("token %s does not begin any object", tok.Kind))
	}
}

func (p *Parser) parseKeywordObject(tok tokenizer.Token) (Object, error) {
	switch string(tok.Bytes) {
	case "true":
		return Boolean(true), nil
	case "false":
		return Boolean(false), nil
	case "null":
		return Null{}, nil
	default:
		if p.Lenient {
			return Null{}, nil
		}
		return nil, perr.New(perr.ParseError, "parser.ParseObject", fmt.Errorf("unexpected keyword %q", tok.Bytes))
	}
}

// parseNumericOrReference implements the spec's 3-token lookahead: an
// Integer token followed by a second Integer and the keyword "R" forms a
// Reference; anything else just returns the first Integer (or falls back
// to treating it as a Real if the caller already has a decimal, which
// cannot happen here since the lexer would have produced Float).
func (p *Parser) parseNumericOrReference(first tokenizer.Token) (Object, error) {
	second, err := p.next()
	if err != nil {
		return Integer(first.IntegerVal), nil
	}
	if second.Kind != tokenizer.Integer {
		p.unread(second)
		return Integer(first.IntegerVal), nil
	}
	third, err := p.next()
	if err != nil {
		p.unread(second)
		return Integer(first.IntegerVal), nil
	}
	if third.Kind == tokenizer.Other && string(third.Bytes) == "R" {
		return Reference{Number: uint32(first.IntegerVal), Generation: uint16(second.IntegerVal)}, nil
	}
	p.unread(third)
	p.unread(second)
	return Integer(first.IntegerVal), nil
}

func (p *Parser) parseArray() (Object, error) {
	var out Array
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == tokenizer.EndArray {
			return out, nil
		}
		if tok.Kind == tokenizer.EOF {
			if p.Lenient {
				return out, nil
			}
			return nil, perr.New(perr.ParseError, "parser.parseArray", fmt.Errorf("unterminated array"))
		}
		obj, err := p.parseObjectFrom(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
}

// parseDict reads "<< (Name Object)* >>". Duplicate keys: last value
// wins (we simply overwrite), matching spec §4.2's "duplicate keys" rule.
// The duplicate is not reported: no warning is recorded and the caller
// cannot tell that a key appeared twice.
func (p *Parser) parseDict() (Object, error) {
	out := Dict{}
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == tokenizer.EndDic {
			return out, nil
		}
		if tok.Kind == tokenizer.EOF {
			if p.Lenient {
				return out, nil
			}
			return nil, perr.New(perr.ParseError, "parser.parseDict", fmt.Errorf("unterminated dictionary"))
		}
		if tok.Kind != tokenizer.Name {
			if p.Lenient {
				// skip a stray token and keep trying to recover a key.
				continue
			}
			return nil, perr.New(perr.ParseError, "parser.parseDict", fmt.Errorf("expected dictionary key, got %s", tok.Kind))
		}
		key := Name(tok.Bytes)

		valTok, err := p.next()
		if err != nil {
			return nil, err
		}
		if valTok.Kind == tokenizer.EndDic {
			// relaxed tolerance for a dangling key with no value,
			// observed in some malformed producers: treat as Null and
			// stop.
			if p.Lenient {
				out[key] = Null{}
				return out, nil
			}
			return nil, perr.New(perr.ParseError, "parser.parseDict", fmt.Errorf("missing value for key %s", key))
		}
		val, err := p.parseObjectFrom(valTok)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
}

// ParseIndirectObjectBody parses "<object> [stream ... endstream]", the
// body of an indirect object, starting right after the "obj" keyword
// (file package drives this by first consuming "N G obj" with
// ParseObjectHeader, then calling this). It does not read the trailing
// "endobj"; ConsumeEndobj does.
func (p *Parser) ParseIndirectObjectBody(rawReader RawByteSource) (Object, error) {
	obj, err := p.ParseObject()
	if err != nil {
		return nil, err
	}
	tok, err := p.next()
	if err != nil {
		return obj, nil
	}
	if !(tok.Kind == tokenizer.Other && string(tok.Bytes) == "stream") {
		p.unread(tok)
		return obj, nil
	}
	dict, ok := obj.(Dict)
	if !ok {
		return nil, perr.New(perr.ParseError, "parser.ParseIndirectObjectBody", fmt.Errorf("stream keyword following non-dictionary object"))
	}
	raw, err := p.readStreamPayload(dict, rawReader)
	if err != nil {
		return nil, err
	}
	return Stream{Dict: dict, Raw: raw}, nil
}

// RawByteSource lets the parser pull exact bytes (for stream payloads)
// from whatever byte source the file package is reading from, already
// positioned right after the EOL that follows the "stream" keyword.
type RawByteSource interface {
	ReadN(n int64) ([]byte, error)
	// ScanForEndstream reads forward from the current position until it
	// finds the literal "endstream", returning the bytes consumed
	// (trimmed of a single trailing EOL) and advancing past the keyword.
	ScanForEndstream(maxScan int64) ([]byte, error)
}

func (p *Parser) readStreamPayload(dict Dict, src RawByteSource) ([]byte, error) {
	length, resolved := p.streamLength(dict)
	if resolved {
		raw, err := src.ReadN(length)
		if err != nil {
			if p.Lenient {
				raw2, err2 := src.ScanForEndstream(1 << 20)
				if err2 == nil {
					return raw2, nil
				}
			}
			return nil, perr.New(perr.ParseError, "parser.readStreamPayload", err)
		}
		return raw, nil
	}
	raw, err := src.ScanForEndstream(1 << 24)
	if err != nil {
		return nil, perr.New(perr.ParseError, "parser.readStreamPayload", fmt.Errorf("could not locate endstream: %w", err))
	}
	return raw, nil
}

// ParseObjectHeader reads "N G obj" and returns (N, G). Used by the file
// package once it has seeked to a candidate object offset.
func (p *Parser) ParseObjectHeader() (number, generation uint32, err error) {
	t1, err := p.next()
	if err != nil {
		return 0, 0, err
	}
	if t1.Kind != tokenizer.Integer {
		return 0, 0, perr.New(perr.ParseError, "parser.ParseObjectHeader", fmt.Errorf("expected object number, got %s", t1.Kind))
	}
	t2, err := p.next()
	if err != nil {
		return 0, 0, err
	}
	if t2.Kind != tokenizer.Integer {
		return 0, 0, perr.New(perr.ParseError, "parser.ParseObjectHeader", fmt.Errorf("expected generation, got %s", t2.Kind))
	}
	t3, err := p.next()
	if err != nil {
		return 0, 0, err
	}
	if !(t3.Kind == tokenizer.Other && string(t3.Bytes) == "obj") {
		return 0, 0, perr.New(perr.ParseError, "parser.ParseObjectHeader", fmt.Errorf("expected 'obj' keyword, got %s", t3.Kind))
	}
	return uint32(t1.IntegerVal), uint32(t2.IntegerVal), nil
}

// ConsumeEndobj reads and discards the trailing "endobj" keyword, which
// the object parser itself doesn't need semantically but which callers
// use to detect malformed framing.
func (p *Parser) ConsumeEndobj() error {
	t, err := p.next()
	if err != nil {
		return err
	}
	if t.Kind == tokenizer.Other && string(t.Bytes) == "endobj" {
		return nil
	}
	p.unread(t)
	if p.Lenient {
		return nil
	}
	return perr.New(perr.ParseError, "parser.ConsumeEndobj", fmt.Errorf("expected endobj, got %s", t.Kind))
}

func (p *Parser) streamLength(dict Dict) (int64, bool) {
	lv, ok := dict["Length"]
	if !ok {
		return 0, false
	}
	switch v := lv.(type) {
	case Integer:
		return int64(v), true
	case Reference:
		if p.Lengths != nil {
			if n, ok := p.Lengths.ResolveLength(v); ok {
				return n, true
			}
		}
		return 0, false
	default:
		return 0, false
	}
}

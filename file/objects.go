package file

import (
	"fmt"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
	"github.com/kilnpdf/core/tokenizer"
)

// newParserAt returns a Parser positioned at offset, along with the
// parser's LengthResolver wired to this context's object store.
func (ctx *context) newParserAt(offset int64) (*parser.Parser, error) {
	r, err := ctx.bufReaderAt(offset)
	if err != nil {
		return nil, err
	}
	lx := tokenizer.NewLexer(r)
	var p *parser.Parser
	if ctx.conf.Lenient {
		p = parser.NewLenientParser(lx)
	} else {
		p = parser.NewParser(lx)
	}
	p.Lengths = (*lengthResolver)(ctx)
	return p, nil
}

// lengthResolver adapts context.resolve to parser.LengthResolver.
type lengthResolver context

func (r *lengthResolver) ResolveLength(ref parser.Reference) (int64, bool) {
	ctx := (*context)(r)
	obj, err := ctx.resolve(ref, nil)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(parser.Integer)
	if !ok {
		return 0, false
	}
	return int64(n), true
}

// parseIndirectObjectAt parses "N G obj <body> [stream...] endobj" at the
// given absolute file offset, returning its body (decrypting strings and
// stream payloads in place if the document is encrypted).
func (ctx *context) parseIndirectObjectAt(offset int64) (number, generation uint32, body parser.Object, err error) {
	p, err := ctx.newParserAt(offset)
	if err != nil {
		return 0, 0, nil, err
	}
	number, generation, err = p.ParseObjectHeader()
	if err != nil {
		return 0, 0, nil, err
	}
	raw := &ioRawSource{ctx: ctx, p: p, baseOffset: offset}
	body, err = p.ParseIndirectObjectBody(raw)
	if err != nil {
		return 0, 0, nil, err
	}
	_ = p.ConsumeEndobj()

	if ctx.enc != nil {
		body = ctx.decryptObject(body, number, uint16(generation))
	}
	return number, generation, body, nil
}

// resolve dereferences o if it is a parser.Reference, following a chain
// of references until it reaches a value that is not a Reference. P7's
// cycle tolerance is enforced by visited, which resolve passes down to
// itself: an object number seen twice along one chain resolves to Null.
func (ctx *context) resolve(o parser.Object, visited map[uint32]bool) (parser.Object, error) {
	ref, ok := o.(parser.Reference)
	if !ok {
		return o, nil
	}
	if visited == nil {
		visited = map[uint32]bool{}
	}
	if visited[ref.Number] {
		return parser.Null{}, nil
	}
	visited[ref.Number] = true

	obj, err := ctx.objectByNumber(ref.Number)
	if err != nil {
		return nil, err
	}
	return ctx.resolve(obj, visited)
}

// objectByNumber loads the object identified purely by its number,
// regardless of which generation the table recorded -- free/compressed
// objects are handled by the entry's own kind. A direct object is
// parsed at most once per context: the first resolve caches its body,
// so every later reference to the same number is O(1).
func (ctx *context) objectByNumber(number uint32) (parser.Object, error) {
	if cached, ok := ctx.objectCache[number]; ok {
		return cached, nil
	}
	entry, ok := ctx.xref.entries[number]
	if !ok || entry.free {
		return parser.Null{}, nil
	}
	if entry.inStream != nil {
		return ctx.objectFromStream(*entry.inStream)
	}
	_, _, body, err := ctx.parseIndirectObjectAt(entry.offset)
	if err != nil {
		return nil, perr.New(perr.ParseError, "file.objectByNumber", fmt.Errorf("object %d at offset %d: %w", number, entry.offset, err))
	}
	ctx.objectCache[number] = body
	return body, nil
}

// objectFromStream returns one compressed object out of an already (or
// not yet) decoded object stream, decoding and caching it on first use.
func (ctx *context) objectFromStream(ref parser.ObjectStreamRef) (parser.Object, error) {
	objs, err := ctx.decodeObjectStream(ref.Container)
	if err != nil {
		return nil, err
	}
	if ref.Index < 0 || ref.Index >= len(objs) {
		return nil, perr.New(perr.ParseError, "file.objectFromStream", fmt.Errorf("object stream %d has no entry %d", ref.Container, ref.Index))
	}
	return objs[ref.Index].Body, nil
}

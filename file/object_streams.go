package file

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
	"github.com/kilnpdf/core/tokenizer"
)

// decodeObjectStream decodes (and caches) the compressed objects packed
// into the /Type /ObjStm container numbered containerNumber, per §4.3's
// object stream layout: an /N-entry prolog of "objNum offset" pairs
// relative to /First, followed by the objects themselves.
func (ctx *context) decodeObjectStream(containerNumber uint32) ([]parser.IndirectObject, error) {
	if cached, ok := ctx.xref.objectStreams[containerNumber]; ok {
		return cached, nil
	}

	obj, err := ctx.objectByNumber(containerNumber)
	if err != nil {
		return nil, err
	}
	stream, ok := obj.(parser.Stream)
	if !ok {
		return nil, perr.New(perr.ParseError, "file.decodeObjectStream", fmt.Errorf("object %d is not a stream", containerNumber))
	}

	decoded, err := decodedStreamContent(stream)
	if err != nil {
		return nil, err
	}

	n := int(intOf(stream.Dict["N"]))
	first := int(intOf(stream.Dict["First"]))
	if first > len(decoded) {
		return nil, perr.New(perr.ParseError, "file.decodeObjectStream", fmt.Errorf("object stream %d: /First %d exceeds decoded length %d", containerNumber, first, len(decoded)))
	}

	prolog := bytes.ReplaceAll(decoded[:first], []byte{0x00}, []byte{0x20})
	fields := bytes.Fields(prolog)
	if len(fields)%2 != 0 || len(fields)/2 < n {
		return nil, perr.New(perr.ParseError, "file.decodeObjectStream", fmt.Errorf("object stream %d: malformed prolog", containerNumber))
	}

	type entry struct {
		number uint32
		offset int
	}
	entries := make([]entry, n)
	for i := 0; i < n; i++ {
		num, err1 := strconv.Atoi(string(fields[2*i]))
		off, err2 := strconv.Atoi(string(fields[2*i+1]))
		if err1 != nil || err2 != nil {
			return nil, perr.New(perr.ParseError, "file.decodeObjectStream", fmt.Errorf("object stream %d: invalid prolog entry", containerNumber))
		}
		entries[i] = entry{number: uint32(num), offset: first + off}
	}

	out := make([]parser.IndirectObject, n)
	for i, e := range entries {
		start := e.offset
		end := len(decoded)
		if i+1 < n {
			end = entries[i+1].offset
		}
		if start > len(decoded) || end > len(decoded) || start > end {
			return nil, perr.New(perr.ParseError, "file.decodeObjectStream", fmt.Errorf("object stream %d: entry %d offsets out of range", containerNumber, i))
		}
		body, err := parseBareObject(decoded[start:end])
		if err != nil {
			return nil, perr.New(perr.ParseError, "file.decodeObjectStream", fmt.Errorf("object stream %d, member %d: %w", containerNumber, i, err))
		}
		out[i] = parser.IndirectObject{
			Number:         e.number,
			Body:           body,
			InObjectStream: &parser.ObjectStreamRef{Container: containerNumber, Index: i},
		}
		if _, already := ctx.xref.entries[e.number]; !already {
			ctx.xref.entries[e.number] = xrefEntry{inStream: &parser.ObjectStreamRef{Container: containerNumber, Index: i}}
		}
	}

	ctx.xref.objectStreams[containerNumber] = out
	return out, nil
}

// parseBareObject parses a single object with no "N G obj" wrapper and
// no stream payload, as found packed inside an object stream (§4.3
// explicitly disallows streams-within-object-streams).
func parseBareObject(b []byte) (parser.Object, error) {
	lx := tokenizer.NewLexer(bufio.NewReader(bytes.NewReader(b)))
	p := parser.NewParser(lx)
	return p.ParseObject()
}

package file

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
	"github.com/kilnpdf/core/tokenizer"
)

// xrefSection is one classical-table-or-stream section's own entries and
// trailer fields, plus where to continue the /Prev chain from. For a
// classical section carrying a hybrid /XRefStm pointer, xrefStmOffset is
// set so the caller can parse and merge it with precedence over the
// classical entries in the same section (the one deliberate ISO
// 32000-1 §7.5.8.4 compliance fix over a naive "merge with no
// precedence" approach).
type xrefSection struct {
	entries       map[uint32]xrefEntry
	trailer       trailer
	prevOffset    int64
	hasPrev       bool
	xrefStmOffset int64
	hasXRefStm    bool
}

// locateStartXref finds the last "startxref\n<offset>" pair within the
// final 64 KiB of the file, per §4.4: the canonical entry point into the
// xref structure.
func (ctx *context) locateStartXref() (int64, error) {
	tailSize := minInt64(64*1024, ctx.fileSize)
	buf, err := ctx.readAt(ctx.fileSize-tailSize, tailSize)
	if err != nil {
		return 0, perr.New(perr.XRefError, "file.locateStartXref", err)
	}
	idx := lastIndexOf(buf, []byte("startxref"))
	if idx < 0 {
		return 0, perr.New(perr.XRefError, "file.locateStartXref", fmt.Errorf("missing startxref keyword"))
	}
	rest := buf[idx+len("startxref"):]
	lx := tokenizer.NewLexer(bufio.NewReader(bytes.NewReader(rest)))
	tok, err := lx.Next()
	if err != nil || tok.Kind != tokenizer.Integer {
		return 0, perr.New(perr.XRefError, "file.locateStartXref", fmt.Errorf("malformed startxref offset"))
	}
	return tok.IntegerVal, nil
}

func lastIndexOf(haystack, needle []byte) int {
	last := -1
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			last = i
		}
	}
	return last
}

// buildXRefTable walks the /Prev chain starting at the offset named by
// the trailing startxref, merging each section's entries (first-seen,
// i.e. most-recent-section, wins) and its trailer fields. A linearized
// file's chain is followed exactly where /Prev points each time: this
// never re-seeks to the start of the file, satisfying P6.
func (ctx *context) buildXRefTable() error {
	start, err := ctx.locateStartXref()
	if err != nil {
		return err
	}
	ctx.startXRefOffset = start

	visited := map[int64]bool{}
	offset := start
	seenAny := false
	for {
		if visited[offset] {
			break
		}
		visited[offset] = true

		sec, err := ctx.parseXRefSectionAt(offset)
		if err != nil {
			if seenAny {
				ctx.warn("stopped following /Prev chain at offset %d: %s", offset, err)
				break
			}
			return err
		}
		seenAny = true

		if sec.hasXRefStm {
			if stmSec, err := ctx.parseXRefSectionAt(sec.xrefStmOffset); err == nil {
				ctx.mergeEntries(stmSec.entries)
			} else {
				ctx.warn("hybrid /XRefStm at offset %d failed to parse: %s", sec.xrefStmOffset, err)
			}
		}
		ctx.mergeEntries(sec.entries)
		ctx.mergeTrailer(sec.trailer)

		if !sec.hasPrev {
			break
		}
		offset = sec.prevOffset
	}
	return nil
}

func (ctx *context) mergeEntries(entries map[uint32]xrefEntry) {
	for num, e := range entries {
		if _, already := ctx.xref.entries[num]; already {
			continue
		}
		ctx.xref.entries[num] = e
	}
}

func (ctx *context) mergeTrailer(t trailer) {
	if t.sawRoot && !ctx.trailer.sawRoot {
		ctx.trailer.root = t.root
		ctx.trailer.sawRoot = true
	}
	if ctx.trailer.info == nil {
		ctx.trailer.info = t.info
	}
	if ctx.trailer.id0 == nil {
		ctx.trailer.id0 = t.id0
	}
	if ctx.trailer.encrypt == nil {
		ctx.trailer.encrypt = t.encrypt
	}
}

// parseXRefSectionAt dispatches to the classical-table or xref-stream
// parser depending on what it finds at offset.
func (ctx *context) parseXRefSectionAt(offset int64) (xrefSection, error) {
	peek, err := ctx.readAt(offset, minInt64(4, ctx.fileSize-offset))
	if err != nil {
		return xrefSection{}, perr.New(perr.XRefError, "file.parseXRefSectionAt", err)
	}
	if bytes.HasPrefix(peek, []byte("xref")) {
		return ctx.parseClassicalXRefSection(offset)
	}
	return ctx.parseXRefStreamSection(offset)
}

// parseClassicalXRefSection parses one "xref ... trailer <<...>>"
// section per §4.4.1: a sequence of "start count" subsections, each
// followed by count fixed 20-byte entries.
func (ctx *context) parseClassicalXRefSection(offset int64) (xrefSection, error) {
	r, err := ctx.bufReaderAt(offset)
	if err != nil {
		return xrefSection{}, err
	}
	lx := tokenizer.NewLexer(r)
	p := parser.NewLenientParser(lx)

	kw, err := lx.Next()
	if err != nil || !kw.IsOther("xref") {
		return xrefSection{}, perr.New(perr.XRefError, "file.parseClassicalXRefSection", fmt.Errorf("expected 'xref' keyword"))
	}

	entries := map[uint32]xrefEntry{}
	for {
		tok, err := lx.Next()
		if err != nil {
			return xrefSection{}, perr.New(perr.XRefError, "file.parseClassicalXRefSection", err)
		}
		if tok.IsOther("trailer") {
			break
		}
		if tok.Kind != tokenizer.Integer {
			return xrefSection{}, perr.New(perr.XRefError, "file.parseClassicalXRefSection", fmt.Errorf("expected subsection start, got %s", tok.Kind))
		}
		subStart := tok.IntegerVal
		countTok, err := lx.Next()
		if err != nil || countTok.Kind != tokenizer.Integer {
			return xrefSection{}, perr.New(perr.XRefError, "file.parseClassicalXRefSection", fmt.Errorf("expected subsection count"))
		}
		count := countTok.IntegerVal
		for i := int64(0); i < count; i++ {
			offTok, err := lx.Next()
			if err != nil || offTok.Kind != tokenizer.Integer {
				return xrefSection{}, perr.New(perr.XRefError, "file.parseClassicalXRefSection", fmt.Errorf("malformed entry offset"))
			}
			genTok, err := lx.Next()
			if err != nil || genTok.Kind != tokenizer.Integer {
				return xrefSection{}, perr.New(perr.XRefError, "file.parseClassicalXRefSection", fmt.Errorf("malformed entry generation"))
			}
			kindTok, err := lx.Next()
			if err != nil {
				return xrefSection{}, perr.New(perr.XRefError, "file.parseClassicalXRefSection", fmt.Errorf("malformed entry kind"))
			}
			num := uint32(subStart + i)
			free := kindTok.IsOther("f")
			if _, already := entries[num]; !already {
				entries[num] = xrefEntry{free: free, generation: uint16(genTok.IntegerVal), offset: offTok.IntegerVal}
			}
		}
	}

	trailerObj, err := p.ParseObject()
	if err != nil {
		return xrefSection{}, perr.New(perr.XRefError, "file.parseClassicalXRefSection", fmt.Errorf("malformed trailer dictionary: %w", err))
	}
	dict, ok := trailerObj.(parser.Dict)
	if !ok {
		return xrefSection{}, perr.New(perr.XRefError, "file.parseClassicalXRefSection", fmt.Errorf("trailer is not a dictionary"))
	}

	sec := xrefSection{entries: entries, trailer: trailerFromDict(dict)}
	if prev, ok := dict["Prev"].(parser.Integer); ok {
		sec.hasPrev, sec.prevOffset = true, int64(prev)
	}
	if stm, ok := dict["XRefStm"].(parser.Integer); ok {
		sec.hasXRefStm, sec.xrefStmOffset = true, int64(stm)
	}
	return sec, nil
}

func trailerFromDict(dict parser.Dict) trailer {
	var t trailer
	if ref, ok := dict["Root"].(parser.Reference); ok {
		t.root = &ref
		t.sawRoot = true
	}
	if ref, ok := dict["Info"].(parser.Reference); ok {
		t.info = &ref
	}
	if idArr, ok := dict["ID"].(parser.Array); ok && len(idArr) > 0 {
		if s, ok := idArr[0].(parser.String); ok {
			t.id0 = s.Bytes
		}
	}
	if enc, ok := dict["Encrypt"]; ok {
		t.encrypt = enc
	}
	return t
}

// parseXRefStreamSection parses a cross-reference stream (§7.5.8): an
// indirect object "N G obj <</Type /XRef /W [...] ...>> stream ...
// endstream endobj" whose decoded body packs fixed-width binary
// records instead of the classical table's fixed-text rows.
func (ctx *context) parseXRefStreamSection(offset int64) (xrefSection, error) {
	_, _, body, err := ctx.parseIndirectObjectAt(offset)
	if err != nil {
		return xrefSection{}, perr.New(perr.XRefError, "file.parseXRefStreamSection", err)
	}
	stream, ok := body.(parser.Stream)
	if !ok {
		return xrefSection{}, perr.New(perr.XRefError, "file.parseXRefStreamSection", fmt.Errorf("xref stream object is not a stream"))
	}
	dict := stream.Dict
	if name, _ := dict["Type"].(parser.Name); string(name) != "XRef" {
		return xrefSection{}, perr.New(perr.XRefError, "file.parseXRefStreamSection", fmt.Errorf("expected /Type /XRef"))
	}

	wArr, ok := dict["W"].(parser.Array)
	if !ok || len(wArr) < 3 {
		return xrefSection{}, perr.New(perr.XRefError, "file.parseXRefStreamSection", fmt.Errorf("missing or malformed /W"))
	}
	w := [3]int{int(intOf(wArr[0])), int(intOf(wArr[1])), int(intOf(wArr[2]))}
	recordLen := w[0] + w[1] + w[2]
	if recordLen <= 0 {
		return xrefSection{}, perr.New(perr.XRefError, "file.parseXRefStreamSection", fmt.Errorf("empty /W record width"))
	}

	size := int(intOf(dict["Size"]))
	var index []int64
	if idxArr, ok := dict["Index"].(parser.Array); ok {
		for _, v := range idxArr {
			index = append(index, intOf(v))
		}
	} else {
		index = []int64{0, int64(size)}
	}

	decoded, err := decodedStreamContent(stream)
	if err != nil {
		return xrefSection{}, perr.New(perr.XRefError, "file.parseXRefStreamSection", err)
	}

	entries := map[uint32]xrefEntry{}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		subStart, count := index[i], index[i+1]
		for j := int64(0); j < count; j++ {
			if pos+recordLen > len(decoded) {
				return xrefSection{}, perr.New(perr.XRefError, "file.parseXRefStreamSection", fmt.Errorf("xref stream truncated"))
			}
			record := decoded[pos : pos+recordLen]
			pos += recordLen

			fieldType := int64(1)
			if w[0] > 0 {
				fieldType = beInt(record[:w[0]])
			}
			f2 := beInt(record[w[0] : w[0]+w[1]])
			f3 := beInt(record[w[0]+w[1] : recordLen])

			num := uint32(subStart + j)
			if _, already := entries[num]; already {
				continue
			}
			switch fieldType {
			case 0:
				entries[num] = xrefEntry{free: true}
			case 1:
				entries[num] = xrefEntry{offset: f2, generation: uint16(f3)}
			case 2:
				entries[num] = xrefEntry{inStream: &parser.ObjectStreamRef{Container: uint32(f2), Index: int(f3)}}
			default:
				entries[num] = xrefEntry{free: true}
			}
		}
	}

	sec := xrefSection{entries: entries, trailer: trailerFromDict(dict)}
	if prev, ok := dict["Prev"].(parser.Integer); ok {
		sec.hasPrev, sec.prevOffset = true, int64(prev)
	}
	return sec, nil
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}


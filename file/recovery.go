package file

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
)

// objHeaderPattern finds "N G obj" markers anywhere in the file, the
// byte-scan recovery primitive used when the xref structure cannot be
// trusted (P8).
var objHeaderPattern = regexp.MustCompile(`(?:^|[^0-9])(\d+)[ \t]+(\d+)[ \t]+obj\b`)

// recover rebuilds the xref table from scratch by scanning the whole
// file for "N G obj" markers, discarding every entry the normal xref
// walk had already produced: later matches in the file win, since a later definition of the same
// object number supersedes an earlier one exactly as incremental
// updates intend.
func (ctx *context) recover() error {
	whole, err := ctx.readAt(0, ctx.fileSize)
	if err != nil {
		return perr.New(perr.RecoveryExhausted, "file.recover", err)
	}

	ctx.xref = newXRefTable()
	matches := objHeaderPattern.FindAllSubmatchIndex(whole, -1)
	if len(matches) == 0 {
		return perr.New(perr.RecoveryExhausted, "file.recover", fmt.Errorf("no 'N G obj' markers found"))
	}

	for _, m := range matches {
		numStart, numEnd := m[2], m[3]
		genStart, genEnd := m[4], m[5]
		headerStart := m[0]
		// back up to the start of the object number if the pattern's
		// leading non-digit guard consumed a preceding byte.
		for headerStart < numStart && !isDigitByte(whole[headerStart]) {
			headerStart++
		}
		number := atoiBytes(whole[numStart:numEnd])
		generation := atoiBytes(whole[genStart:genEnd])
		if number < 0 || generation < 0 {
			continue
		}
		ctx.xref.entries[uint32(number)] = xrefEntry{offset: int64(headerStart), generation: uint16(generation)}
	}

	// locate the most recent "trailer" dictionary to recover /Root. Files
	// without one (stream-based files) are left to recoverRootFromScan,
	// which open calls when no /Root was found.
	if idx := bytes.LastIndex(whole, []byte("trailer")); idx >= 0 {
		if dict, err := ctx.parseTrailerDictAt(int64(idx) + int64(len("trailer"))); err == nil {
			ctx.mergeTrailer(trailerFromDict(dict))
		}
	}
	return nil
}

func (ctx *context) parseTrailerDictAt(offset int64) (parser.Dict, error) {
	p, err := ctx.newParserAt(offset)
	if err != nil {
		return nil, err
	}
	obj, err := p.ParseObject()
	if err != nil {
		return nil, err
	}
	dict, ok := obj.(parser.Dict)
	if !ok {
		return nil, fmt.Errorf("not a dictionary")
	}
	return dict, nil
}

// recoverRootFromScan is used when even the recovered trailer lacks a
// /Root: every recovered object number is loaded and the first
// dictionary found with /Type /Catalog is adopted as the root.
func (ctx *context) recoverRootFromScan() error {
	for number := range ctx.xref.entries {
		obj, err := ctx.objectByNumber(number)
		if err != nil {
			continue
		}
		dict, ok := obj.(parser.Dict)
		if !ok {
			continue
		}
		if name, _ := dict["Type"].(parser.Name); string(name) == "Catalog" {
			ref := parser.Reference{Number: number, Generation: ctx.xref.entries[number].generation}
			ctx.trailer.root = &ref
			ctx.trailer.sawRoot = true
			return nil
		}
	}
	return fmt.Errorf("no /Type /Catalog object found during recovery scan")
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }

func atoiBytes(b []byte) int {
	n := 0
	for _, c := range b {
		if !isDigitByte(c) {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

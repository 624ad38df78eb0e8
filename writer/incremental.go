package writer

import (
	"bytes"
	"fmt"

	"github.com/kilnpdf/core/file"
	"github.com/kilnpdf/core/parser"
)

// Delta is the set of changes an incremental update appends to an
// existing document: objects either fresh (object numbers above
// whatever the base file already used) or overwriting an existing
// number in place, plus a set of object numbers to mark free.
type Delta struct {
	objects    map[uint32]parser.Object
	deleted    map[uint32]bool
	nextNumber uint32
}

// NewDelta starts a delta whose freshly allocated object numbers begin
// above every number base's xref table already addresses.
func NewDelta(base *file.Document) *Delta {
	return &Delta{
		objects:    map[uint32]parser.Object{},
		deleted:    map[uint32]bool{},
		nextNumber: base.MaxObjectNumber() + 1,
	}
}

// AllocateObject reserves a fresh object number for a new object.
func (d *Delta) AllocateObject() uint32 {
	n := d.nextNumber
	d.nextNumber++
	return n
}

// SetObject defines (or redefines, for an existing number) one object's
// body. Redefining an existing page dictionary with a higher-level
// /Contents array is the usual way to implement an overlay (§4.9).
func (d *Delta) SetObject(number uint32, body parser.Object) {
	d.objects[number] = body
	delete(d.deleted, number)
}

// AddObject allocates a fresh number and defines it in one step.
func (d *Delta) AddObject(body parser.Object) uint32 {
	n := d.AllocateObject()
	d.SetObject(n, body)
	return n
}

// DeleteObject marks number free in the appended xref section.
func (d *Delta) DeleteObject(number uint32) {
	d.deleted[number] = true
	delete(d.objects, number)
}

type xrefLine struct {
	number     uint32
	offset     int64
	free       bool
	generation uint16
}

// SaveIncremental appends delta's changes to baseData, producing bytes
// whose [0, len(baseData)) prefix is byte-identical to baseData (P3).
// The appended trailer's /Prev points at base's own startxref offset and
// its /ID preserves base's first ID entry. Encryption is intentionally
// out of scope here: re-keying mid-chain would require the base file's
// live security.Handler, which package file does not expose through its
// public surface, and leaving existing objects' bytes untouched (as P3
// requires) means an already-encrypted base's objects stay correctly
// encrypted under its original /Encrypt dictionary regardless.
func SaveIncremental(baseData []byte, base *file.Document, delta *Delta) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(baseData)

	numbers := make([]uint32, 0, len(delta.objects))
	for n := range delta.objects {
		numbers = append(numbers, n)
	}
	sortUint32s(numbers)

	var lines []xrefLine
	for _, n := range numbers {
		offset := int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", n)
		body := delta.objects[n]
		if s, ok := body.(parser.Stream); ok {
			buf.Write(formatDict(s.Dict))
			buf.WriteString("\nstream\n")
			buf.Write(s.Raw)
			buf.WriteString("\nendstream")
		} else {
			buf.Write(formatObject(body))
		}
		buf.WriteString("\nendobj\n")
		lines = append(lines, xrefLine{number: n, offset: offset})
	}
	for n := range delta.deleted {
		lines = append(lines, xrefLine{number: n, free: true, generation: 1})
	}
	sortXRefLines(lines)

	maxNumber := base.MaxObjectNumber()
	for _, l := range lines {
		if l.number > maxNumber {
			maxNumber = l.number
		}
	}
	size := maxNumber + 1

	xrefOffset := buf.Len()
	buf.WriteString("xref\n")
	for i := 0; i < len(lines); {
		start := lines[i].number
		j := i
		for j < len(lines) && lines[j].number == start+uint32(j-i) {
			j++
		}
		fmt.Fprintf(&buf, "%d %d\n", start, j-i)
		for k := i; k < j; k++ {
			l := lines[k]
			if l.free {
				fmt.Fprintf(&buf, "%010d %05d f \n", 0, l.generation)
			} else {
				fmt.Fprintf(&buf, "%010d %05d n \n", l.offset, l.generation)
			}
		}
		i = j
	}

	trailerDict := parser.Dict{
		"Size": parser.Integer(size),
		"Root": base.Root,
		"Prev": parser.Integer(base.StartXRefOffset),
	}
	if base.Info != nil {
		trailerDict["Info"] = *base.Info
	}
	if len(base.ID0) > 0 {
		trailerDict["ID"] = parser.Array{
			parser.String{Bytes: base.ID0, Encoding: parser.HexEncoding},
			parser.String{Bytes: randomID(), Encoding: parser.HexEncoding},
		}
	}
	buf.WriteString("trailer\n")
	buf.Write(formatDict(trailerDict))
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

func sortXRefLines(lines []xrefLine) {
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j-1].number > lines[j].number; j-- {
			lines[j-1], lines[j] = lines[j], lines[j-1]
		}
	}
}

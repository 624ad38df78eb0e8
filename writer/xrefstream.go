package writer

import (
	"bytes"
	"fmt"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/parser/filters"
)

// writeXRefStream emits a single cross-reference stream object (§7.5.8)
// in place of a classical table + separate trailer dictionary. xrefRef
// is its own object number; its entry (type 1, offset = where this
// object begins) is folded into the same stream being built.
func writeXRefStream(buf *bytes.Buffer, xrefRef, size uint32, bodies []bodyEntry, compressed []compressedEntry, catalogRef, infoRef uint32, id0 []byte, encRef uint32, encrypted bool) error {
	selfOffset := buf.Len()

	byNumber := map[uint32][3]int64{} // type, field2, field3
	for _, b := range bodies {
		byNumber[b.number] = [3]int64{1, int64(b.offset), 0}
	}
	byNumber[xrefRef] = [3]int64{1, int64(selfOffset), 0}
	for _, c := range compressed {
		byNumber[c.number] = [3]int64{2, int64(c.container), int64(c.index)}
	}

	var maxField2, maxField3 int64
	for n := uint32(0); n < size; n++ {
		r, ok := byNumber[n]
		if !ok {
			r = [3]int64{0, 0, 65535}
		}
		if r[1] > maxField2 {
			maxField2 = r[1]
		}
		if r[2] > maxField3 {
			maxField3 = r[2]
		}
	}
	w1 := byteWidth(maxField2)
	w2 := byteWidth(maxField3)
	recordLen := 1 + w1 + w2

	raw := make([]byte, 0, int(size)*recordLen)
	for n := uint32(0); n < size; n++ {
		r, ok := byNumber[n]
		if !ok {
			r = [3]int64{0, 0, 65535}
		}
		raw = append(raw, byte(r[0]))
		raw = appendBE(raw, r[1], w1)
		raw = appendBE(raw, r[2], w2)
	}

	encoded, err := filters.EncodeFlate(raw, filters.Params{
		Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: int64(recordLen),
	})
	if err != nil {
		return err
	}

	dict := parser.Dict{
		"Type": parser.Name("XRef"),
		"Size": parser.Integer(size),
		"W":    parser.Array{parser.Integer(1), parser.Integer(w1), parser.Integer(w2)},
		"Root": parser.Reference{Number: catalogRef},
		"Length": parser.Integer(len(encoded)),
		"Filter": parser.Name("FlateDecode"),
		"DecodeParms": parser.Dict{
			"Predictor": parser.Integer(12), "Colors": parser.Integer(1),
			"BitsPerComponent": parser.Integer(8), "Columns": parser.Integer(int64(recordLen)),
		},
		"ID": parser.Array{
			parser.String{Bytes: id0, Encoding: parser.HexEncoding},
			parser.String{Bytes: id0, Encoding: parser.HexEncoding},
		},
	}
	if infoRef != 0 {
		dict["Info"] = parser.Reference{Number: infoRef}
	}
	if encrypted {
		dict["Encrypt"] = parser.Reference{Number: encRef}
	}

	fmt.Fprintf(buf, "%d 0 obj\n", xrefRef)
	buf.Write(formatDict(dict))
	buf.WriteString("\nstream\n")
	buf.Write(encoded)
	buf.WriteString("\nendstream\nendobj\n")
	return nil
}

// byteWidth returns the minimum number of bytes needed to hold v
// big-endian, at least 1.
func byteWidth(v int64) int {
	n := 1
	for v >= 1<<(8*n) {
		n++
	}
	return n
}

func appendBE(dst []byte, v int64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

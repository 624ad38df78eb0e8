package writer

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/parser/filters"
	"github.com/kilnpdf/core/perr"
)

// bodyEntry is one object actually written as its own "N G obj...endobj"
// on disk (as opposed to one packed inside an object stream).
type bodyEntry struct {
	number uint32
	offset int
}

// compressedEntry is one object packed inside an object stream.
type compressedEntry struct {
	number    uint32
	container uint32
	index     int
}

// Save serializes d as a complete PDF per cfg and writes it to dst.
func (d *Document) Save(dst io.Writer, cfg Config) error {
	data, err := d.SaveBytes(cfg)
	if err != nil {
		return err
	}
	_, err = dst.Write(data)
	return err
}

// SaveBytes serializes d as a complete PDF and returns its bytes.
func (d *Document) SaveBytes(cfg Config) ([]byte, error) {
	if cfg.UseObjectStreams && !cfg.UseXRefStreams {
		return nil, perr.New(perr.InvariantViolation, "writer.SaveBytes", fmt.Errorf("UseObjectStreams requires UseXRefStreams: a classical table cannot address compressed objects"))
	}

	id0 := randomID()
	d.ensureInfoObject()

	var enc *preparedEncryption
	var encRef uint32
	if cfg.Encryption != nil {
		prepared, err := prepareEncryption(cfg.Encryption, id0)
		if err != nil {
			return nil, err
		}
		enc = prepared
		encRef = d.AddObject(enc.dict)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-" + cfg.pdfVersion() + "\n")
	buf.Write([]byte{'%', 0xE2, 0xE3, 0xCF, 0xD3, '\n'})

	bodies, compressed, err := d.writeBody(&buf, cfg, enc, encRef)
	if err != nil {
		return nil, err
	}

	size := d.nextNumber
	xrefOffset := buf.Len()

	if cfg.UseXRefStreams {
		xrefRef := d.AllocateObject()
		size = d.nextNumber
		if err := writeXRefStream(&buf, xrefRef, size, bodies, compressed, d.catalogRef, d.infoRef, id0, encRef, cfg.Encryption != nil); err != nil {
			return nil, err
		}
	} else {
		writeClassicalXRefTable(&buf, size, bodies)
		writeTrailer(&buf, size, d.catalogRef, d.infoRef, id0, encRef, cfg.Encryption != nil)
	}

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

// writeBody emits every object in numeric order, packing non-stream
// objects into ObjStm containers first when cfg.UseObjectStreams is set.
// It returns the byte-offset entries for directly-written objects and
// the container/index entries for compressed ones.
func (d *Document) writeBody(buf *bytes.Buffer, cfg Config, enc *preparedEncryption, encRef uint32) ([]bodyEntry, []compressedEntry, error) {
	numbers := make([]uint32, 0, len(d.objects))
	for n := range d.objects {
		numbers = append(numbers, n)
	}
	sortUint32s(numbers)

	if cfg.CompressStreams {
		for _, n := range numbers {
			if s, ok := d.objects[n].(parser.Stream); ok {
				compressedStream, err := compressStream(s)
				if err != nil {
					return nil, nil, err
				}
				d.objects[n] = compressedStream
			}
		}
	}

	var toPack []uint32
	direct := map[uint32]bool{}
	if encRef != 0 {
		direct[encRef] = true
	}
	for _, n := range numbers {
		if _, isStream := d.objects[n].(parser.Stream); isStream {
			direct[n] = true
			continue
		}
		if cfg.UseObjectStreams && n != encRef {
			toPack = append(toPack, n)
		} else {
			direct[n] = true
		}
	}

	var bodies []bodyEntry
	var compressed []compressedEntry

	if len(toPack) > 0 {
		containers, entries, err := d.packObjectStreams(toPack, cfg)
		if err != nil {
			return nil, nil, err
		}
		containerRefs := make([]uint32, len(containers))
		for i, c := range containers {
			ref := d.AddObject(c)
			containerRefs[i] = ref
			offset := buf.Len()
			// an ObjStm container's raw bytes are encrypted as a whole
			// (it carries no strings of its own to encrypt individually).
			if err := writeIndirectObject(buf, ref, 0, c, enc, true); err != nil {
				return nil, nil, err
			}
			bodies = append(bodies, bodyEntry{number: ref, offset: offset})
		}
		for _, e := range entries {
			compressed = append(compressed, compressedEntry{
				number: e.number, container: containerRefs[e.containerIndex], index: e.index,
			})
		}
	}

	for _, n := range numbers {
		if !direct[n] {
			continue
		}
		offset := buf.Len()
		body := d.objects[n]
		// the /Encrypt dictionary's own strings are never encrypted.
		if err := writeIndirectObject(buf, n, 0, body, enc, n != encRef); err != nil {
			return nil, nil, err
		}
		bodies = append(bodies, bodyEntry{number: n, offset: offset})
	}
	return bodies, compressed, nil
}

// writeIndirectObject serializes one "N G obj ... endobj", encrypting
// the body first when enc is non-nil and shouldEncrypt is true.
func writeIndirectObject(buf *bytes.Buffer, number uint32, generation uint16, body parser.Object, enc *preparedEncryption, shouldEncrypt bool) error {
	if enc != nil && shouldEncrypt {
		encrypted, err := encryptObject(enc.handler, body, number, generation)
		if err != nil {
			return err
		}
		body = encrypted
	}
	fmt.Fprintf(buf, "%d %d obj\n", number, generation)
	if s, ok := body.(parser.Stream); ok {
		buf.Write(formatDict(s.Dict))
		buf.WriteString("\nstream\n")
		buf.Write(s.Raw)
		buf.WriteString("\nendstream")
	} else {
		buf.Write(formatObject(body))
	}
	buf.WriteString("\nendobj\n")
	return nil
}

// writeClassicalXRefTable writes a classical table; it is only ever
// called when UseObjectStreams is off (enforced in SaveBytes), so every
// object number below size has a direct byte offset in bodies.
func writeClassicalXRefTable(buf *bytes.Buffer, size uint32, bodies []bodyEntry) {
	byNumber := map[uint32]int{}
	for _, b := range bodies {
		byNumber[b.number] = b.offset
	}
	buf.WriteString("xref\n")
	fmt.Fprintf(buf, "0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for n := uint32(1); n < size; n++ {
		fmt.Fprintf(buf, "%010d %05d n \n", byNumber[n], 0)
	}
}

func writeTrailer(buf *bytes.Buffer, size uint32, catalogRef, infoRef uint32, id0 []byte, encRef uint32, encrypted bool) {
	buf.WriteString("trailer\n")
	dict := parser.Dict{
		"Size": parser.Integer(size),
		"Root": parser.Reference{Number: catalogRef},
	}
	if infoRef != 0 {
		dict["Info"] = parser.Reference{Number: infoRef}
	}
	dict["ID"] = parser.Array{
		parser.String{Bytes: id0, Encoding: parser.HexEncoding},
		parser.String{Bytes: id0, Encoding: parser.HexEncoding},
	}
	if encrypted {
		dict["Encrypt"] = parser.Reference{Number: encRef}
	}
	buf.Write(formatDict(dict))
	buf.WriteString("\n")
}

// compressStream applies FlateDecode to a stream added without its own
// filter, leaving streams that already declare /Filter untouched (double
// filtering would need a filter array and isn't worth the risk of
// compressing already-compressed data, e.g. a JPEG XObject).
func compressStream(s parser.Stream) (parser.Stream, error) {
	if _, ok := s.Dict["Filter"]; ok {
		return s, nil
	}
	encoded, err := filters.EncodeFlate(s.Raw, filters.Params{})
	if err != nil {
		return parser.Stream{}, err
	}
	dict := make(parser.Dict, len(s.Dict)+1)
	for k, v := range s.Dict {
		dict[k] = v
	}
	dict["Filter"] = parser.Name("FlateDecode")
	dict["Length"] = parser.Integer(len(encoded))
	return parser.Stream{Dict: dict, Raw: encoded}, nil
}

func randomID() []byte {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return b
}

func sortUint32s(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

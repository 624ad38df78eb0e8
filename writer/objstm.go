package writer

import (
	"bytes"
	"fmt"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/parser/filters"
)

// maxObjectsPerStream caps how many objects one /Type /ObjStm container
// packs, mirroring common producers' batch size (§4.8).
const maxObjectsPerStream = 200

// packedEntry is one object assigned to a container, before the
// container's own object number has been allocated: containerIndex is
// an index into the slice packObjectStreams returns, resolved by the
// caller once it knows each container's real object number.
type packedEntry struct {
	number         uint32
	containerIndex int
	index          int
}

// packObjectStreams groups numbers' bodies into one or more ObjStm
// containers of at most maxObjectsPerStream objects each. Members must
// not themselves be streams (callers filter those out beforehand, since
// §7.5.7 forbids packing a stream into an object stream).
func (d *Document) packObjectStreams(numbers []uint32, cfg Config) ([]parser.Stream, []packedEntry, error) {
	var containers []parser.Stream
	var entries []packedEntry

	for start := 0; start < len(numbers); start += maxObjectsPerStream {
		end := start + maxObjectsPerStream
		if end > len(numbers) {
			end = len(numbers)
		}
		batch := numbers[start:end]

		var prolog bytes.Buffer
		var data bytes.Buffer
		containerIndex := len(containers)
		for i, n := range batch {
			offset := data.Len()
			data.Write(formatObject(d.objects[n]))
			data.WriteByte(' ')
			fmt.Fprintf(&prolog, "%d %d ", n, offset)
			entries = append(entries, packedEntry{number: n, containerIndex: containerIndex, index: i})
		}

		first := prolog.Len()
		raw := append([]byte(prolog.String()), data.Bytes()...)
		encoded, err := filters.EncodeFlate(raw, filters.Params{})
		if err != nil {
			return nil, nil, err
		}

		dict := parser.Dict{
			"Type":  parser.Name("ObjStm"),
			"N":     parser.Integer(len(batch)),
			"First": parser.Integer(first),
			"Length": parser.Integer(len(encoded)),
			"Filter": parser.Name("FlateDecode"),
		}
		containers = append(containers, parser.Stream{Dict: dict, Raw: encoded})
	}
	return containers, entries, nil
}

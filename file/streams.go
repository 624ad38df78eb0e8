package file

import (
	"fmt"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/parser/filters"
	"github.com/kilnpdf/core/perr"
)

// filterStackFrom reads a stream dictionary's /Filter and /DecodeParms
// (scalar or array form, per §4.5) into parallel slices for
// filters.DecodeStack.
func filterStackFrom(dict parser.Dict) ([]string, []filters.Params, error) {
	filterNames, err := namesFrom(dict["Filter"])
	if err != nil {
		return nil, nil, err
	}
	var paramDicts []parser.Dict
	switch v := dict["DecodeParms"].(type) {
	case nil:
		paramDicts = make([]parser.Dict, len(filterNames))
	case parser.Dict:
		paramDicts = []parser.Dict{v}
	case parser.Array:
		for _, item := range v {
			d, _ := item.(parser.Dict)
			paramDicts = append(paramDicts, d)
		}
	}
	for len(paramDicts) < len(filterNames) {
		paramDicts = append(paramDicts, nil)
	}

	params := make([]filters.Params, len(filterNames))
	for i, d := range paramDicts {
		params[i] = paramsFromDict(d)
	}
	return filterNames, params, nil
}

func namesFrom(o parser.Object) ([]string, error) {
	switch v := o.(type) {
	case nil:
		return nil, nil
	case parser.Name:
		return []string{string(v)}, nil
	case parser.Array:
		out := make([]string, 0, len(v))
		for _, item := range v {
			n, ok := item.(parser.Name)
			if !ok {
				return nil, perr.New(perr.FilterError, "file.namesFrom", fmt.Errorf("non-Name entry in /Filter array"))
			}
			out = append(out, string(n))
		}
		return out, nil
	default:
		return nil, perr.New(perr.FilterError, "file.namesFrom", fmt.Errorf("unexpected /Filter type %T", o))
	}
}

func paramsFromDict(d parser.Dict) filters.Params {
	var p filters.Params
	if d == nil {
		return p
	}
	p.Predictor = intOf(d["Predictor"])
	p.Colors = intOf(d["Colors"])
	if p.Colors == 0 {
		p.Colors = 1
	}
	p.BitsPerComponent = intOf(d["BitsPerComponent"])
	if p.BitsPerComponent == 0 {
		p.BitsPerComponent = 8
	}
	p.Columns = intOf(d["Columns"])
	if p.Columns == 0 {
		p.Columns = 1
	}
	if _, has := d["EarlyChange"]; has {
		p.HasEarlyChange = true
		p.EarlyChange = intOf(d["EarlyChange"])
	}
	return p
}

func intOf(o parser.Object) int64 {
	switch v := o.(type) {
	case parser.Integer:
		return int64(v)
	case parser.Real:
		return int64(v)
	default:
		return 0
	}
}

// decodedStreamContent runs a stream's raw (already-decrypted) bytes
// through its full filter stack.
func decodedStreamContent(s parser.Stream) ([]byte, error) {
	names, params, err := filterStackFrom(s.Dict)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return s.Raw, nil
	}
	out, err := filters.DecodeStack(names, params, s.Raw)
	if err != nil {
		return nil, perr.New(perr.FilterError, "file.decodedStreamContent", err)
	}
	return out, nil
}

// DecodedStream resolves ref, which must point to a Stream object, and
// returns its fully decoded (decrypted + filter-decoded) content.
func (doc *Document) DecodedStream(ref parser.Reference) ([]byte, error) {
	obj, err := doc.ctx.resolve(ref, nil)
	if err != nil {
		return nil, err
	}
	s, ok := obj.(parser.Stream)
	if !ok {
		return nil, perr.New(perr.ParseError, "file.DecodedStream", fmt.Errorf("object %d is not a stream", ref.Number))
	}
	return decodedStreamContent(s)
}

// Resolve dereferences o through the document's object store, tolerating
// reference cycles (P7) by returning Null on a repeated visit.
func (doc *Document) Resolve(o parser.Object) (parser.Object, error) {
	return doc.ctx.resolve(o, nil)
}

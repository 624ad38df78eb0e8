// Package filters implements the stream codec pipeline: decoders for
// every filter named in ISO 32000-1 §7.4, composable into a stack driven
// by a stream's /Filter and /DecodeParms entries.
package filters

import (
	"fmt"
	"io"

	"github.com/kilnpdf/core/perr"
)

// Filter names as they appear in /Filter.
const (
	ASCII85   = "ASCII85Decode"
	ASCIIHex  = "ASCIIHexDecode"
	RunLength = "RunLengthDecode"
	LZW       = "LZWDecode"
	Flate     = "FlateDecode"
	DCT       = "DCTDecode"
	CCITTFax  = "CCITTFaxDecode"
	JBIG2     = "JBIG2Decode"
	Crypt     = "Crypt"
)

// Params is the flattened /DecodeParms dictionary for one filter in a
// stack; callers (package file) extract it from a parser.Dict before
// calling into this package, keeping this package free of a dependency
// on the object model.
type Params struct {
	Predictor        int64
	Colors           int64
	BitsPerComponent int64
	Columns          int64
	EarlyChange      int64 // LZWDecode only; default 1 (true)
	HasEarlyChange   bool
}

// Skipper reads encoded data and stops exactly after the filter's
// End-Of-Data marker, reporting the number of encoded bytes consumed.
// This is what lets an inline image (which has no /Length) be
// delimited.
type Skipper interface {
	Skip(encoded io.Reader) (int, error)
}

// SkipperFromFilter returns the Skipper for a named filter. Filters with
// no natural EOD marker (Flate, pass-through codecs) are not
// represented; their content must come with a declared /Length.
func SkipperFromFilter(name string, params Params) (Skipper, error) {
	switch name {
	case ASCII85:
		return SkipperAscii85{}, nil
	case ASCIIHex:
		return SkipperAsciiHex{}, nil
	case RunLength:
		return SkipperRunLength{}, nil
	case LZW:
		return SkipperLZW{EarlyChange: earlyChangeOf(params)}, nil
	default:
		return nil, perr.New(perr.FilterError, "filters.SkipperFromFilter", fmt.Errorf("no EOD skipper for filter %s", name))
	}
}

func earlyChangeOf(p Params) bool {
	if !p.HasEarlyChange {
		return true
	}
	return p.EarlyChange != 0
}

// Decode runs encoded through the single named filter, applying any PNG
// predictor post-processing declared in params. Pass-through codecs
// (DCTDecode, CCITTFaxDecode, JBIG2Decode) return encoded unchanged: the
// spec treats their payload as opaque, left for an external rasterizer.
// Crypt is also pass-through here: the stream's bytes are already
// plaintext by the time they reach the filter pipeline (package file
// decrypts a stream's raw payload via its security handler before
// handing it to DecodeStack), so /Crypt in a /Filter array is purely
// declarative at this layer.
func Decode(name string, params Params, encoded []byte) ([]byte, error) {
	switch name {
	case Flate:
		r, err := flateDecoder(encoded)
		if err != nil {
			return nil, perr.New(perr.FilterError, "filters.Decode", err)
		}
		out, err := applyPredictor(r, params)
		if err != nil {
			return nil, perr.New(perr.FilterError, "filters.Decode", err)
		}
		return out, nil
	case LZW:
		r := lzwDecoder(earlyChangeOf(params), newByteSliceReader(encoded))
		defer r.Close()
		out, err := applyPredictor(r, params)
		if err != nil {
			return nil, perr.New(perr.FilterError, "filters.Decode", err)
		}
		return out, nil
	case ASCII85:
		return decodeASCII85(encoded)
	case ASCIIHex:
		return decodeASCIIHex(encoded)
	case RunLength:
		return decodeRunLength(encoded)
	case DCT, CCITTFax, JBIG2:
		// Pass-through: the codec does not decode pixel data, per the
		// filter pipeline's stated contract for image codecs.
		return encoded, nil
	case Crypt:
		// Pass-through: decryption already happened upstream of the
		// filter pipeline (see the comment above).
		return encoded, nil
	default:
		return nil, perr.New(perr.FilterError, "filters.Decode", fmt.Errorf("unknown filter %s", name))
	}
}

// DecodeStack applies a sequence of filters in order (the stack named by
// an array-valued /Filter), threading each codec's output into the next.
func DecodeStack(names []string, params []Params, encoded []byte) ([]byte, error) {
	data := encoded
	for i, name := range names {
		var p Params
		if i < len(params) {
			p = params[i]
		}
		var err error
		data, err = Decode(name, p, data)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func newByteSliceReader(b []byte) io.Reader {
	return &sliceReader{b: b}
}

type sliceReader struct {
	b []byte
	i int
}

func (s *sliceReader) Read(p []byte) (int, error) {
	if s.i >= len(s.b) {
		return 0, io.EOF
	}
	n := copy(p, s.b[s.i:])
	s.i += n
	return n, nil
}

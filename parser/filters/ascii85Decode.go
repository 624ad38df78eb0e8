package filters

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
)

type SkipperAscii85 struct{}

const eodASCII85 = "~>"

// Skip implements Skipper for an ASCII85Decode filter.
func (f SkipperAscii85) Skip(encoded io.Reader) (int, error) {
	r := newCountReader(encoded)
	reacher := newReacher(byteReaderFrom(r), []byte(eodASCII85))
	_, err := ioutil.ReadAll(reacher)
	return r.totalRead, err
}

// decodeASCII85 decodes a base-85 encoded stream terminated by "~>"
// (whitespace tolerated anywhere in the input, per §4.5).
func decodeASCII85(encoded []byte) ([]byte, error) {
	var out bytes.Buffer
	var group [5]byte
	n := 0
	i := 0
	flush := func(count int) error {
		for ; n < 5; n++ {
			group[n] = 'u'
		}
		var v uint32
		for _, c := range group {
			if c < '!' || c > 'u' {
				return fmt.Errorf("ascii85: invalid byte %q", c)
			}
			v = v*85 + uint32(c-'!')
		}
		buf := [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
		out.Write(buf[:count])
		return nil
	}
	for i < len(encoded) {
		c := encoded[i]
		i++
		switch {
		case c == '~':
			// terminator "~>"
			if n > 0 {
				if err := flush(n - 1); err != nil {
					return nil, err
				}
			}
			return out.Bytes(), nil
		case c == 'z' && n == 0:
			out.Write([]byte{0, 0, 0, 0})
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0:
			continue
		default:
			group[n] = c
			n++
			if n == 5 {
				if err := flush(4); err != nil {
					return nil, err
				}
				n = 0
			}
		}
	}
	if n > 0 {
		if err := flush(n - 1); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

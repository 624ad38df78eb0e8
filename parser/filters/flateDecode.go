package filters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"io/ioutil"
)

// SkipperFlate implements Skipper for a Flate filter. Flate has no
// natural EOD marker of its own; this exists for completeness (inline
// images rarely use it) by fully consuming the zlib stream.
type SkipperFlate struct{}

func (f SkipperFlate) Skip(encoded io.Reader) (int, error) {
	r := newCountReader(encoded)
	rc, err := zlib.NewReader(r)
	if err != nil {
		return 0, err
	}
	_, err = ioutil.ReadAll(rc)
	if err != nil {
		return 0, err
	}
	err = rc.Close()
	return r.totalRead, err
}

func flateDecoder(encoded []byte) (io.Reader, error) {
	rc, err := zlib.NewReader(bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var out bytes.Buffer
	if _, err := io.Copy(&out, rc); err != nil {
		return nil, err
	}
	return &out, nil
}

// applyPredictor inverts the PNG/TIFF predictor declared in params (if
// any) on the already-inflated bytes read from r, per §4.5.
func applyPredictor(r io.Reader, params Params) ([]byte, error) {
	fp := predictorParamsFrom(params)
	if fp.predictor == 0 || fp.predictor == 1 {
		out, err := ioutil.ReadAll(r)
		return out, err
	}
	return fp.decodePostProcess(r)
}

func predictorParamsFrom(p Params) flateDecodeParams {
	colors := p.Colors
	if colors == 0 {
		colors = 1
	}
	bpc := p.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}
	columns := p.Columns
	if columns == 0 {
		columns = 1
	}
	return flateDecodeParams{predictor: int(p.Predictor), colors: int(colors), bpc: int(bpc), columns: int(columns)}
}

type flateDecodeParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func (f flateDecodeParams) rowSize() int {
	return f.bpc * f.colors * f.columns / 8
}

func (f flateDecodeParams) decodePostProcess(r io.Reader) ([]byte, error) {
	bytesPerPixel := (f.bpc*f.colors + 7) / 8

	rowSize := f.rowSize()
	if f.predictor != 2 {
		// PNG prediction uses a row filter byte prefixing the pixel
		// bytes of a row.
		rowSize++
	}

	cr := make([]byte, rowSize)
	pr := make([]byte, rowSize)

	var out []byte
	for {
		_, err := io.ReadFull(r, cr)
		if err != nil {
			if err != io.EOF {
				return nil, err
			}
			break
		}

		d, err := processRow(pr, cr, f.predictor, f.colors, bytesPerPixel)
		if err != nil {
			return nil, err
		}
		out = append(out, d...)

		pr, cr = cr, pr
	}

	if rs := f.rowSize(); rs != 0 && len(out)%rs != 0 {
		return nil, fmt.Errorf("flate predictor: postprocessing produced %d bytes, not a multiple of row size %d", len(out), rs)
	}
	return out, nil
}

func processRow(pr, cr []byte, p, colors, bytesPerPixel int) ([]byte, error) {
	if p == 2 { // TIFF
		return applyHorDiff(cr, colors)
	}

	cdat := cr[1:]
	pdat := pr[1:]
	f := int(cr[0])

	// Predictor 15 lets each row's tag byte choose its PNG filter;
	// predictors 10-14 apply one filter (None, Sub, Up, Average, Paeth)
	// to every row, whatever the tag byte says.
	if p >= 10 && p <= 14 {
		f = p - 10
	}
	switch f {
	case 0:
		// no-op
	case 1:
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += cdat[i-bytesPerPixel]
		}
	case 2:
		for i, p := range pdat {
			cdat[i] += p
		}
	case 3:
		for i := 0; i < bytesPerPixel; i++ {
			cdat[i] += pdat[i] / 2
		}
		for i := bytesPerPixel; i < len(cdat); i++ {
			cdat[i] += uint8((int(cdat[i-bytesPerPixel]) + int(pdat[i])) / 2)
		}
	case 4:
		filterPaeth(cdat, pdat, bytesPerPixel)
	}

	return cdat, nil
}

func applyHorDiff(row []byte, colors int) ([]byte, error) {
	// 8 bits per component only.
	for i := 1; i < len(row)/colors; i++ {
		for j := 0; j < colors; j++ {
			row[i*colors+j] += row[(i-1)*colors+j]
		}
	}
	return row, nil
}

func abs(x int32) int32 {
	const intSize = 32
	m := x >> (intSize - 1)
	return (x ^ m) - m
}

// filterPaeth applies the Paeth predictor filter to cdat in place; pdat
// is the previous row's (already-unfiltered) data.
func filterPaeth(cdat, pdat []byte, bytesPerPixel int) {
	var a, b, c, pa, pb, pc int32
	for i := 0; i < bytesPerPixel; i++ {
		a, c = 0, 0
		for j := i; j < len(cdat); j += bytesPerPixel {
			b = int32(pdat[j])
			pa = b - c
			pb = a - c
			pc = abs(pa + pb)
			pa = abs(pa)
			pb = abs(pb)
			switch {
			case pa <= pb && pa <= pc:
				// a stays
			case pb <= pc:
				a = b
			default:
				a = c
			}
			a += int32(cdat[j])
			a &= 0xff
			cdat[j] = uint8(a)
			c = b
		}
	}
}

// EncodeFlate compresses plain with zlib and, if predictor is Up (12),
// applies the PNG Up-predictor row-by-row first. Used by the writer for
// xref-stream and content-stream compression.
func EncodeFlate(plain []byte, params Params) ([]byte, error) {
	data := plain
	if params.Predictor == 12 {
		data = encodeUpPredictor(plain, predictorParamsFrom(params))
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeUpPredictor(plain []byte, fp flateDecodeParams) []byte {
	row := fp.rowSize()
	if row == 0 {
		return plain
	}
	var out []byte
	prev := make([]byte, row)
	for off := 0; off < len(plain); off += row {
		end := off + row
		if end > len(plain) {
			end = len(plain)
		}
		cur := plain[off:end]
		out = append(out, 2) // Up
		for i, b := range cur {
			var p byte
			if i < len(prev) {
				p = prev[i]
			}
			out = append(out, b-p)
		}
		prev = make([]byte, row)
		copy(prev, cur)
	}
	return out
}

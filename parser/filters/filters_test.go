package filters

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestASCIIHexRoundTrip(t *testing.T) {
	out, err := decodeASCIIHex([]byte("48656C6C6F>"))
	require.NoError(t, err)
	require.Equal(t, "Hello", string(out))
}

func TestASCIIHexOddDigits(t *testing.T) {
	out, err := decodeASCIIHex([]byte("901FA>"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x90, 0x1f, 0xa0}, out)
}

func TestASCII85RoundTrip(t *testing.T) {
	// "Man " encodes to "9jqo^" per the canonical ascii85 example.
	out, err := decodeASCII85([]byte("9jqo^~>"))
	require.NoError(t, err)
	require.Equal(t, "Man ", string(out))
}

func TestASCII85ZShortcut(t *testing.T) {
	out, err := decodeASCII85([]byte("z~>"))
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0}, out)
}

func TestRunLengthLiteralAndRepeat(t *testing.T) {
	// 2 literal bytes "AB", then repeat 'C' 3 times, then EOD.
	encoded := []byte{1, 'A', 'B', 257 - 3, 'C', 0x80}
	out, err := decodeRunLength(encoded)
	require.NoError(t, err)
	require.Equal(t, "ABCCC", string(out))
}

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestFlateDecodeNoPredictor(t *testing.T) {
	plain := []byte("Hello, PDF world! Hello, PDF world!")
	encoded := zlibCompress(t, plain)
	out, err := Decode(Flate, Params{}, encoded)
	require.NoError(t, err)
	require.Equal(t, plain, out)
}

func TestFlateUpPredictorRoundTrip(t *testing.T) {
	// Property P5 in miniature for the Up predictor specifically: a
	// 3-row, 4-byte-wide matrix survives encode+decode.
	matrix := []byte{
		1, 2, 3, 4,
		5, 4, 3, 2,
		9, 8, 7, 6,
	}
	params := Params{Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: 4}
	encoded, err := EncodeFlate(matrix, params)
	require.NoError(t, err)
	out, err := Decode(Flate, params, encoded)
	require.NoError(t, err)
	require.Equal(t, matrix, out)
}

func TestLZWDecodeEmptyInput(t *testing.T) {
	// A short, known-good LZW-encoded payload is awkward to hand-construct
	// without a reference encoder; the one input safe to assert on
	// without one is the empty stream, which must decode to empty.
	out, err := Decode(LZW, Params{}, []byte{})
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestUnknownFilterErrors(t *testing.T) {
	_, err := Decode("BogusDecode", Params{}, []byte("x"))
	require.Error(t, err)
}

func TestDCTIsPassThrough(t *testing.T) {
	data := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	out, err := Decode(DCT, Params{}, data)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestDecodeStackComposition(t *testing.T) {
	plain := []byte("abcabcabcabcabc")
	flateEncoded := zlibCompress(t, plain)
	hexEncoded := []byte{}
	for _, b := range flateEncoded {
		hexEncoded = append(hexEncoded, []byte(hexString(b))...)
	}
	hexEncoded = append(hexEncoded, '>')
	out, err := DecodeStack([]string{ASCIIHex, Flate}, []Params{{}, {}}, hexEncoded)
	require.NoError(t, err)
	require.Equal(t, plain, out)
}

func hexString(b byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0xF]})
}

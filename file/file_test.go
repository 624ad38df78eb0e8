package file

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/kilnpdf/core/parser"
	"github.com/stretchr/testify/require"
)

// buildClassicalPDF assembles a well-formed PDF with a classical xref
// table and trailer, computing every byte offset from the buffer as it
// grows so the fixture is correct by construction rather than by
// hand-counted arithmetic.
func buildClassicalPDF(t *testing.T, objects []string) ([]byte, []int64) {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	offsets := make([]int64, len(objects)+1) // 1-indexed; offsets[0] unused
	for i, body := range objects {
		offsets[i+1] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xrefOffset := int64(buf.Len())
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefOffset)

	return buf.Bytes(), offsets
}

func TestOpenStrictClassicalXRef(t *testing.T) {
	data, _ := buildClassicalPDF(t, []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R >>",
	})

	doc, err := OpenStrict(bytes.NewReader(data), nil)
	require.NoError(t, err)
	require.Equal(t, uint32(1), doc.Root.Number)

	cat, err := doc.Catalog()
	require.NoError(t, err)
	require.Equal(t, parser.Name("Catalog"), cat["Type"])
}

func TestIncrementalPrevChainPrecedence(t *testing.T) {
	// base revision: two objects.
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	obj1Offset := int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R /Marker (base) >>\nendobj\n")
	obj2Offset := int64(buf.Len())
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")
	xref1Offset := int64(buf.Len())
	buf.WriteString("xref\n0 3\n")
	buf.WriteString("0000000000 65535 f \n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", obj1Offset)
	fmt.Fprintf(&buf, "%010d 00000 n \n", obj2Offset)
	fmt.Fprintf(&buf, "trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref1Offset)

	// incremental update: redefine object 1 only, with a new xref
	// section whose /Prev points back at the base section.
	updateStart := int64(buf.Len())
	newObj1Offset := int64(buf.Len())
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R /Marker (updated) >>\nendobj\n")
	xref2Offset := int64(buf.Len())
	buf.WriteString("xref\n1 1\n")
	fmt.Fprintf(&buf, "%010d 00000 n \n", newObj1Offset)
	fmt.Fprintf(&buf, "trailer\n<< /Size 3 /Root 1 0 R /Prev %d >>\nstartxref\n%d\n%%%%EOF\n", xref1Offset, xref2Offset)
	_ = updateStart

	doc, err := OpenStrict(bytes.NewReader(buf.Bytes()), nil)
	require.NoError(t, err)

	cat, err := doc.Catalog()
	require.NoError(t, err)
	marker, ok := cat["Marker"].(parser.String)
	require.True(t, ok)
	require.Equal(t, "updated", string(marker.Bytes))

	// object 2 was only ever defined in the base section and must still
	// resolve through the /Prev chain.
	obj2, err := doc.Object(parser.Reference{Number: 2})
	require.NoError(t, err)
	dict, ok := obj2.(parser.Dict)
	require.True(t, ok)
	require.Equal(t, parser.Name("Pages"), dict["Type"])
}

func TestRecoveryScanRebuildsXRef(t *testing.T) {
	data := []byte("%PDF-1.7\n" +
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n" +
		"2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n" +
		"%%EOF\n")

	doc, err := OpenLenient(bytes.NewReader(data), nil)
	require.NoError(t, err)
	require.NotEmpty(t, doc.Warnings)

	cat, err := doc.Catalog()
	require.NoError(t, err)
	require.Equal(t, parser.Name("Catalog"), cat["Type"])
}

func TestCycleTolerantResolve(t *testing.T) {
	// object 3 references itself through /Self; resolving it must
	// terminate rather than loop forever (P7).
	data, _ := buildClassicalPDF(t, []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /Self 3 0 R >>",
	})

	doc, err := OpenStrict(bytes.NewReader(data), nil)
	require.NoError(t, err)

	obj, err := doc.Object(parser.Reference{Number: 3})
	require.NoError(t, err)
	dict, ok := obj.(parser.Dict)
	require.True(t, ok)
	require.Equal(t, parser.Name("Page"), dict["Type"])
}

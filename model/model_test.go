package model

import (
	"bytes"
	"testing"

	"github.com/kilnpdf/core/file"
	"github.com/stretchr/testify/require"
)

// minimalTwoPagePDF has no xref table or trailer at all, forcing
// OpenLenient through the full recovery path (byte-scan for "N G obj"
// plus catalog-by-scan), which sidesteps the need to hand-compute exact
// byte offsets for a hand-written fixture.
const minimalTwoPagePDF = `%PDF-1.7
1 0 obj
<< /Type /Catalog /Pages 2 0 R >>
endobj
2 0 obj
<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 612 792] >>
endobj
3 0 obj
<< /Type /Page /Parent 2 0 R >>
endobj
4 0 obj
<< /Type /Page /Parent 2 0 R /Rotate 90 >>
endobj
%%EOF
`

func openFixture(t *testing.T) *Document {
	t.Helper()
	doc, err := file.OpenLenient(bytes.NewReader([]byte(minimalTwoPagePDF)), nil)
	require.NoError(t, err)
	m, err := New(doc)
	require.NoError(t, err)
	return m
}

func TestPageCountAndInheritance(t *testing.T) {
	m := openFixture(t)

	n, err := m.PageCount()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	p0, err := m.Page(0)
	require.NoError(t, err)
	mediaBox, ok := p0["MediaBox"].(interface{ String() string })
	require.True(t, ok)
	require.Equal(t, "[0 0 612 792]", mediaBox.String())
	_, hasRotate := p0["Rotate"]
	require.False(t, hasRotate, "page 0 has no own /Rotate and none to inherit")

	p1, err := m.Page(1)
	require.NoError(t, err)
	require.Equal(t, "[0 0 612 792]", p1["MediaBox"].(interface{ String() string }).String())
	require.NotNil(t, p1["Rotate"], "page 1 declares its own /Rotate")
}

func TestOutlineEmptyWhenAbsent(t *testing.T) {
	m := openFixture(t)
	require.Empty(t, m.Outline())
}

func TestNamedDestinationsEmptyWhenAbsent(t *testing.T) {
	m := openFixture(t)
	require.Empty(t, m.NamedDestinations())
}

package writer

import (
	"bytes"
	"testing"

	"github.com/kilnpdf/core/file"
	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/security"
	"github.com/stretchr/testify/require"
)

func contentStream(text string) parser.Stream {
	raw := []byte("BT /F1 12 Tf 72 720 Td (" + text + ") Tj ET")
	return parser.Stream{Dict: parser.Dict{"Length": parser.Integer(len(raw))}, Raw: raw}
}

func TestSaveBytesClassicalXRefRoundTrip(t *testing.T) {
	doc := NewDocument()
	contentsRef := doc.AddObject(contentStream("hello"))
	doc.AddPage(parser.Array{parser.Integer(0), parser.Integer(0), parser.Integer(612), parser.Integer(792)}, nil, parser.Reference{Number: contentsRef})
	doc.SetInfo("Title", "Round Trip")

	data, err := doc.SaveBytes(Config{})
	require.NoError(t, err)

	opened, err := file.OpenStrict(bytes.NewReader(data), file.NewDefaultConfiguration())
	require.NoError(t, err)

	cat, err := opened.Catalog()
	require.NoError(t, err)
	require.Equal(t, parser.Name("Catalog"), cat["Type"])

	pagesObj, err := opened.Object(cat["Pages"].(parser.Reference))
	require.NoError(t, err)
	pages := pagesObj.(parser.Dict)
	require.Equal(t, parser.Integer(1), pages["Count"])

	require.NotNil(t, opened.Info)
	infoObj, err := opened.Object(*opened.Info)
	require.NoError(t, err)
	info := infoObj.(parser.Dict)
	require.Contains(t, info, parser.Name("Title"))
}

func TestSaveBytesXRefStreamAndObjectStreamsRoundTrip(t *testing.T) {
	doc := NewDocument()
	contentsRef := doc.AddObject(contentStream("packed"))
	doc.AddPage(parser.Array{parser.Integer(0), parser.Integer(0), parser.Integer(612), parser.Integer(792)}, nil, parser.Reference{Number: contentsRef})

	data, err := doc.SaveBytes(Config{UseXRefStreams: true, UseObjectStreams: true})
	require.NoError(t, err)

	opened, err := file.OpenStrict(bytes.NewReader(data), file.NewDefaultConfiguration())
	require.NoError(t, err)

	cat, err := opened.Catalog()
	require.NoError(t, err)
	pagesObj, err := opened.Object(cat["Pages"].(parser.Reference))
	require.NoError(t, err)
	pages := pagesObj.(parser.Dict)
	kids := pages["Kids"].(parser.Array)
	require.Len(t, kids, 1)

	pageObj, err := opened.Object(kids[0].(parser.Reference))
	require.NoError(t, err)
	page := pageObj.(parser.Dict)
	require.Equal(t, parser.Name("Page"), page["Type"])
}

func TestSaveBytesRejectsObjectStreamsWithoutXRefStreams(t *testing.T) {
	doc := NewDocument()
	_, err := doc.SaveBytes(Config{UseObjectStreams: true})
	require.Error(t, err)
}

func TestSaveBytesCompressStreams(t *testing.T) {
	doc := NewDocument()
	doc.AddObject(contentStream("shrink me shrink me shrink me"))

	data, err := doc.SaveBytes(Config{CompressStreams: true})
	require.NoError(t, err)

	opened, err := file.OpenStrict(bytes.NewReader(data), file.NewDefaultConfiguration())
	require.NoError(t, err)
	obj, err := opened.Object(parser.Reference{Number: 3})
	require.NoError(t, err)
	stream := obj.(parser.Stream)
	require.Equal(t, parser.Name("FlateDecode"), stream.Dict["Filter"])
}

func TestSaveBytesEncryptedRC4128RoundTrip(t *testing.T) {
	doc := NewDocument()
	contentsRef := doc.AddObject(contentStream("secret"))
	doc.AddPage(parser.Array{parser.Integer(0), parser.Integer(0), parser.Integer(612), parser.Integer(792)}, nil, parser.Reference{Number: contentsRef})
	doc.SetInfo("Author", "confidential author")

	data, err := doc.SaveBytes(Config{
		Encryption: &EncryptionConfig{
			UserPassword:  "user",
			OwnerPassword: "owner",
			Algorithm:     security.RC4_128,
			Permissions:   security.PermPrint | security.PermCopy,
		},
	})
	require.NoError(t, err)

	_, err = file.OpenStrict(bytes.NewReader(data), file.NewDefaultConfiguration())
	require.Error(t, err, "an unvalidated password must be rejected")

	opened, err := file.OpenStrict(bytes.NewReader(data), &file.Configuration{Password: "user"})
	require.NoError(t, err)
	require.True(t, opened.Encrypted)

	infoObj, err := opened.Object(*opened.Info)
	require.NoError(t, err)
	info := infoObj.(parser.Dict)
	author := info["Author"].(parser.String)
	require.Contains(t, decodeUTF16BE(t, author.Bytes), "confidential author")
}

func TestSaveBytesEncryptedAES256RoundTrip(t *testing.T) {
	doc := NewDocument()
	doc.AddObject(contentStream("aes256"))

	data, err := doc.SaveBytes(Config{
		UseXRefStreams: true,
		Encryption: &EncryptionConfig{
			UserPassword:  "user",
			OwnerPassword: "owner",
			Algorithm:     security.AES256,
		},
	})
	require.NoError(t, err)

	opened, err := file.OpenStrict(bytes.NewReader(data), &file.Configuration{Password: "owner"})
	require.NoError(t, err)
	require.True(t, opened.Encrypted)

	cat, err := opened.Catalog()
	require.NoError(t, err)
	require.Equal(t, parser.Name("Catalog"), cat["Type"])
}

// decodeUTF16BE strips a leading BOM and decodes big-endian UTF-16 back
// to a Go string, for asserting on round-tripped text-string fields.
func decodeUTF16BE(t *testing.T, b []byte) string {
	t.Helper()
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
	}
	runes := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		runes = append(runes, uint16(b[i])<<8|uint16(b[i+1]))
	}
	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		out = append(out, rune(r))
	}
	return string(out)
}

func TestSaveIncrementalByteIdenticalPrefix(t *testing.T) {
	base := NewDocument()
	contentsRef := base.AddObject(contentStream("base page"))
	base.AddPage(parser.Array{parser.Integer(0), parser.Integer(0), parser.Integer(612), parser.Integer(792)}, nil, parser.Reference{Number: contentsRef})

	baseData, err := base.SaveBytes(Config{})
	require.NoError(t, err)

	baseDoc, err := file.OpenStrict(bytes.NewReader(baseData), file.NewDefaultConfiguration())
	require.NoError(t, err)

	delta := NewDelta(baseDoc)
	newContentsRef := delta.AddObject(contentStream("overlay page"))

	cat, err := baseDoc.Catalog()
	require.NoError(t, err)
	pagesObj, err := baseDoc.Object(cat["Pages"].(parser.Reference))
	require.NoError(t, err)
	pages := pagesObj.(parser.Dict)
	pageRef := pages["Kids"].(parser.Array)[0].(parser.Reference)

	pageObj, err := baseDoc.Object(pageRef)
	require.NoError(t, err)
	page := pageObj.(parser.Dict)
	page["Contents"] = parser.Reference{Number: newContentsRef}
	delta.SetObject(pageRef.Number, page)

	updated, err := SaveIncremental(baseData, baseDoc, delta)
	require.NoError(t, err)

	require.True(t, len(updated) > len(baseData))
	require.Equal(t, baseData, updated[:len(baseData)], "incremental update must preserve the base file's bytes byte-for-byte")

	reopened, err := file.OpenStrict(bytes.NewReader(updated), file.NewDefaultConfiguration())
	require.NoError(t, err)

	reopenedCat, err := reopened.Catalog()
	require.NoError(t, err)
	reopenedPagesObj, err := reopened.Object(reopenedCat["Pages"].(parser.Reference))
	require.NoError(t, err)
	reopenedPages := reopenedPagesObj.(parser.Dict)
	reopenedPageRef := reopenedPages["Kids"].(parser.Array)[0].(parser.Reference)

	reopenedPageObj, err := reopened.Object(reopenedPageRef)
	require.NoError(t, err)
	reopenedPage := reopenedPageObj.(parser.Dict)
	contentsObj, err := reopened.Object(reopenedPage["Contents"].(parser.Reference))
	require.NoError(t, err)
	require.Equal(t, []byte("BT /F1 12 Tf 72 720 Td (overlay page) Tj ET"), contentsObj.(parser.Stream).Raw)
}

func TestSaveIncrementalDeletesObject(t *testing.T) {
	base := NewDocument()
	extraRef := base.AddObject(parser.Dict{"Marker": parser.Integer(1)})

	baseData, err := base.SaveBytes(Config{})
	require.NoError(t, err)

	baseDoc, err := file.OpenStrict(bytes.NewReader(baseData), file.NewDefaultConfiguration())
	require.NoError(t, err)

	delta := NewDelta(baseDoc)
	delta.DeleteObject(extraRef)

	updated, err := SaveIncremental(baseData, baseDoc, delta)
	require.NoError(t, err)

	reopened, err := file.OpenStrict(bytes.NewReader(updated), file.NewDefaultConfiguration())
	require.NoError(t, err)
	obj, err := reopened.Object(parser.Reference{Number: extraRef})
	require.NoError(t, err)
	require.Equal(t, parser.Null{}, obj, "a freed object must resolve to null, per the indirect-reference contract")
}

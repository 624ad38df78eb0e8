// Package writer serializes an in-memory object graph to PDF bytes,
// either as a fresh file or as an incremental update appended to an
// existing one, wiring the filter pipeline (compression) and the
// security package (encryption) in on the way out.
package writer

import (
	"fmt"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
)

// Document is a document under construction: a set of indirect objects
// addressed by object number, with helpers for building the page tree
// and document-level dictionaries a conformant writer must emit.
type Document struct {
	objects    map[uint32]parser.Object
	nextNumber uint32

	catalogRef uint32
	pagesRef   uint32
	pageRefs   []uint32

	infoRef uint32
	info    map[parser.Name]string
}

// NewDocument starts an empty document: object 0 is reserved (the
// classical xref's free-list head), so numbering begins at 1.
func NewDocument() *Document {
	d := &Document{objects: map[uint32]parser.Object{}, nextNumber: 1}
	d.pagesRef = d.AddObject(parser.Dict{
		"Type":  parser.Name("Pages"),
		"Kids":  parser.Array{},
		"Count": parser.Integer(0),
	})
	d.catalogRef = d.AddObject(parser.Dict{
		"Type":  parser.Name("Catalog"),
		"Pages": parser.Reference{Number: d.pagesRef},
	})
	d.info = map[parser.Name]string{}
	return d
}

// AllocateObject reserves a fresh object number without defining its
// body yet, so objects can reference each other regardless of
// construction order.
func (d *Document) AllocateObject() uint32 {
	n := d.nextNumber
	d.nextNumber++
	return n
}

// AddObject allocates a fresh object number and stores body at it.
func (d *Document) AddObject(body parser.Object) uint32 {
	n := d.AllocateObject()
	d.objects[n] = body
	return n
}

// SetObject stores body at a number obtained from AllocateObject,
// completing a forward reference.
func (d *Document) SetObject(number uint32, body parser.Object) {
	d.objects[number] = body
}

// AddPage appends a page dictionary as a child of the root page tree and
// returns its object number. contents and resources are typically
// references to a content-stream object and a resources dictionary the
// caller has already added.
func (d *Document) AddPage(mediaBox parser.Array, resources parser.Dict, contents parser.Object) uint32 {
	pageDict := parser.Dict{
		"Type":     parser.Name("Page"),
		"Parent":   parser.Reference{Number: d.pagesRef},
		"MediaBox": mediaBox,
	}
	if resources != nil {
		pageDict["Resources"] = resources
	}
	if contents != nil {
		pageDict["Contents"] = contents
	}
	ref := d.AddObject(pageDict)
	d.pageRefs = append(d.pageRefs, ref)

	pages := d.objects[d.pagesRef].(parser.Dict)
	kids := pages["Kids"].(parser.Array)
	pages["Kids"] = append(kids, parser.Reference{Number: ref})
	pages["Count"] = parser.Integer(len(d.pageRefs))
	d.objects[d.pagesRef] = pages
	return ref
}

// SetCatalogEntry adds or overwrites a key on the document catalog
// (e.g. /PageLabels, /Outlines, /Names, /ViewerPreferences).
func (d *Document) SetCatalogEntry(key parser.Name, value parser.Object) {
	cat := d.objects[d.catalogRef].(parser.Dict)
	cat[key] = value
	d.objects[d.catalogRef] = cat
}

// SetInfo sets one Info dictionary entry (/Title, /Author, /Producer, …).
// Values are plain Go strings; the writer encodes them as UTF-16BE text
// strings on output.
func (d *Document) SetInfo(key parser.Name, value string) {
	if d.info == nil {
		d.info = map[parser.Name]string{}
	}
	d.info[key] = value
}

// ensureInfoObject materializes the accumulated /Info entries as a real
// indirect Dict object the first time it is needed, with text strings
// pre-encoded as UTF-16BE so the regular object serializer can treat
// them like any other parser.String.
func (d *Document) ensureInfoObject() uint32 {
	if d.infoRef != 0 || len(d.info) == 0 {
		return d.infoRef
	}
	dict := parser.Dict{}
	for k, v := range d.info {
		dict[k] = encodeTextString(v)
	}
	d.infoRef = d.AddObject(dict)
	return d.infoRef
}

// Object returns a previously added object's current body, for callers
// that need to mutate a dictionary they already hold a reference to
// (e.g. page replacement during an incremental update).
func (d *Document) Object(number uint32) (parser.Object, error) {
	o, ok := d.objects[number]
	if !ok {
		return nil, perr.New(perr.InvariantViolation, "writer.Document.Object", fmt.Errorf("no such object number %d", number))
	}
	return o, nil
}

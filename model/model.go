// Package model is a thin, demand-paged façade over an opened document:
// catalog access, page tree walk with inheritable attributes, outline
// flattening, and name/number tree lookup. It never force-loads every
// object in the file; each accessor resolves exactly the references it
// needs through the underlying object store.
package model

import (
	"fmt"

	"github.com/kilnpdf/core/file"
	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
)

// Document wraps an opened file.Document with the semantic façade.
type Document struct {
	src *file.Document

	catalog parser.Dict
	pages   []pageEntry // populated lazily by ensurePages
}

type pageEntry struct {
	ref    parser.Reference
	dict   parser.Dict
	parent parser.Reference
}

// New builds a façade over an already-opened document.
func New(doc *file.Document) (*Document, error) {
	cat, err := doc.Catalog()
	if err != nil {
		return nil, perr.New(perr.InvariantViolation, "model.New", err)
	}
	if cat == nil {
		return nil, perr.New(perr.InvariantViolation, "model.New", fmt.Errorf("document has no Catalog"))
	}
	return &Document{src: doc, catalog: cat}, nil
}

// Catalog returns the root dictionary.
func (d *Document) Catalog() parser.Dict { return d.catalog }

// Metadata resolves the catalog's /Metadata XMP stream, if present, and
// returns its raw (decoded) bytes.
func (d *Document) Metadata() ([]byte, error) {
	ref, ok := d.catalog["Metadata"].(parser.Reference)
	if !ok {
		return nil, nil
	}
	return d.src.DecodedStream(ref)
}

// resolveDict resolves o and type-asserts it to a Dict, returning nil if
// it is absent or not a dictionary.
func (d *Document) resolveDict(o parser.Object) parser.Dict {
	if o == nil {
		return nil
	}
	v, err := d.src.Resolve(o)
	if err != nil {
		return nil
	}
	dict, _ := v.(parser.Dict)
	return dict
}

func (d *Document) resolveArray(o parser.Object) parser.Array {
	if o == nil {
		return nil
	}
	v, err := d.src.Resolve(o)
	if err != nil {
		return nil
	}
	arr, _ := v.(parser.Array)
	return arr
}

package file

import (
	"os"

	"github.com/kilnpdf/core/parser"
)

// ReadFile opens path strictly; callers wanting lenient/recovery
// behavior should use ReadFileLenient.
func ReadFile(path string, conf *Configuration) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return OpenStrict(f, conf)
}

// ReadFileLenient opens path, falling back to a full recovery scan on
// any structural failure.
func ReadFileLenient(path string, conf *Configuration) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return OpenLenient(f, conf)
}

// Object resolves a reference to its object body, tolerating reference
// cycles (P7).
func (doc *Document) Object(ref parser.Reference) (parser.Object, error) {
	return doc.ctx.resolve(ref, nil)
}

// ObjectCount reports how many objects the merged xref table currently
// addresses (free slots included), useful for diagnostics and for the
// writer package picking the next fresh object number on incremental
// update.
func (doc *Document) ObjectCount() int {
	return len(doc.ctx.xref.entries)
}

// MaxObjectNumber returns the highest object number recorded in the
// xref table, or 0 if the table is empty.
func (doc *Document) MaxObjectNumber() uint32 {
	var max uint32
	for n := range doc.ctx.xref.entries {
		if n > max {
			max = n
		}
	}
	return max
}

// Catalog resolves the trailer's /Root entry to its dictionary.
func (doc *Document) Catalog() (parser.Dict, error) {
	obj, err := doc.Object(doc.Root)
	if err != nil {
		return nil, err
	}
	dict, _ := obj.(parser.Dict)
	return dict, nil
}

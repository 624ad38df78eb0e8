package model

import (
	"fmt"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
)

// inheritableKeys are looked up on the page leaf first, then walked up
// through /Parent until a defined value is found, per §7.7.3.4.
var inheritableKeys = []parser.Name{"Resources", "MediaBox", "CropBox", "Rotate"}

func (d *Document) ensurePages() error {
	if d.pages != nil {
		return nil
	}
	root, ok := d.catalog["Pages"].(parser.Reference)
	if !ok {
		return perr.New(perr.InvariantViolation, "model.ensurePages", fmt.Errorf("catalog has no /Pages"))
	}
	var out []pageEntry
	visited := map[uint32]bool{}
	if err := d.walkPageTree(root, &out, visited); err != nil {
		return err
	}
	d.pages = out
	return nil
}

// walkPageTree performs the depth-first /Kids walk; visited guards
// against a malformed cyclic tree.
func (d *Document) walkPageTree(ref parser.Reference, out *[]pageEntry, visited map[uint32]bool) error {
	if visited[ref.Number] {
		return nil
	}
	visited[ref.Number] = true

	dict := d.resolveDict(ref)
	if dict == nil {
		return nil
	}
	typeName, _ := dict["Type"].(parser.Name)
	switch typeName {
	case "Page":
		*out = append(*out, pageEntry{ref: ref, dict: dict})
		return nil
	default: // "Pages" or untyped intermediate node, tolerated leniently
		kids := d.resolveArray(dict["Kids"])
		for _, k := range kids {
			kidRef, ok := k.(parser.Reference)
			if !ok {
				continue
			}
			if err := d.walkPageTree(kidRef, out, visited); err != nil {
				return err
			}
		}
		return nil
	}
}

// PageCount returns the number of page leaves in the document.
func (d *Document) PageCount() (int, error) {
	if err := d.ensurePages(); err != nil {
		return 0, err
	}
	return len(d.pages), nil
}

// Page returns the i'th page (0-based) with its inheritable attributes
// already resolved and merged in.
func (d *Document) Page(i int) (parser.Dict, error) {
	if err := d.ensurePages(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(d.pages) {
		return nil, perr.New(perr.InvariantViolation, "model.Page", fmt.Errorf("page index %d out of range [0,%d)", i, len(d.pages)))
	}
	return d.pageWithInheritance(d.pages[i].ref, d.pages[i].dict)
}

func (d *Document) pageWithInheritance(leafRef parser.Reference, leaf parser.Dict) (parser.Dict, error) {
	out := make(parser.Dict, len(leaf))
	for k, v := range leaf {
		out[k] = v
	}
	for _, key := range inheritableKeys {
		if _, has := out[key]; has {
			continue
		}
		val, err := d.lookupInheritable(leaf, key, map[uint32]bool{leafRef.Number: true})
		if err != nil {
			return nil, err
		}
		if val != nil {
			out[key] = val
		}
	}
	return out, nil
}

func (d *Document) lookupInheritable(node parser.Dict, key parser.Name, visited map[uint32]bool) (parser.Object, error) {
	if v, has := node[key]; has {
		return v, nil
	}
	parentRef, ok := node["Parent"].(parser.Reference)
	if !ok {
		return nil, nil
	}
	if visited[parentRef.Number] {
		return nil, nil
	}
	visited[parentRef.Number] = true
	parent := d.resolveDict(parentRef)
	if parent == nil {
		return nil, nil
	}
	return d.lookupInheritable(parent, key, visited)
}

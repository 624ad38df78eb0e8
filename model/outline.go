package model

import "github.com/kilnpdf/core/parser"

// OutlineEntry is one flattened bookmark: its title, an optional
// resolved destination, and its nesting depth (root entries are depth 0).
type OutlineEntry struct {
	Title       string
	Destination *Destination
	Depth       int
}

// Outline walks /Root/Outlines' /First-/Next sibling chain (descending
// into /First for children) per §12.3.3, returning a flat, pre-order
// list annotated with nesting depth.
func (d *Document) Outline() []OutlineEntry {
	root := d.resolveDict(d.catalog["Outlines"])
	if root == nil {
		return nil
	}
	first, ok := root["First"].(parser.Reference)
	if !ok {
		return nil
	}
	var out []OutlineEntry
	visited := map[uint32]bool{}
	d.walkOutlineSiblings(first, 0, &out, visited)
	return out
}

func (d *Document) walkOutlineSiblings(ref parser.Reference, depth int, out *[]OutlineEntry, visited map[uint32]bool) {
	for {
		if visited[ref.Number] {
			return
		}
		visited[ref.Number] = true

		node := d.resolveDict(ref)
		if node == nil {
			return
		}

		entry := OutlineEntry{Title: titleOf(node), Depth: depth}
		if destObj, has := node["Dest"]; has {
			resolved, err := d.src.Resolve(destObj)
			if err == nil {
				if dest, ok := destinationFromObject(resolved); ok {
					entry.Destination = &dest
				}
			}
		}
		*out = append(*out, entry)

		if firstChild, ok := node["First"].(parser.Reference); ok {
			d.walkOutlineSiblings(firstChild, depth+1, out, visited)
		}

		next, ok := node["Next"].(parser.Reference)
		if !ok {
			return
		}
		ref = next
	}
}

func titleOf(node parser.Dict) string {
	s, ok := node["Title"].(parser.String)
	if !ok {
		return ""
	}
	return string(s.Bytes)
}

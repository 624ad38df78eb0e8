package model

import "github.com/kilnpdf/core/parser"

// nameTreeLookup finds the value associated with key in a /Names-style
// name tree (ISO 32000-1 §7.9.6): a node is either a leaf carrying a
// flat /Names array of (key, value) pairs, or an internal node carrying
// /Kids plus a /Limits range used to prune the search without loading
// every leaf.
func (d *Document) nameTreeLookup(root parser.Dict, key string) (parser.Object, bool) {
	if root == nil {
		return nil, false
	}
	if names := d.resolveArray(root["Names"]); names != nil {
		for i := 0; i+1 < len(names); i += 2 {
			k, ok := stringValue(names[i])
			if ok && k == key {
				return names[i+1], true
			}
		}
		return nil, false
	}
	kids := d.resolveArray(root["Kids"])
	for _, k := range kids {
		kidRef, ok := k.(parser.Reference)
		if !ok {
			continue
		}
		kidDict := d.resolveDict(kidRef)
		if kidDict == nil {
			continue
		}
		if limits := d.resolveArray(kidDict["Limits"]); len(limits) == 2 {
			lo, loOK := stringValue(limits[0])
			hi, hiOK := stringValue(limits[1])
			if loOK && hiOK && (key < lo || key > hi) {
				continue
			}
		}
		if v, ok := d.nameTreeLookup(kidDict, key); ok {
			return v, true
		}
	}
	return nil, false
}

// allNameTreeEntries flattens an entire name tree into a map, used by
// NamedDestinations since it needs every entry rather than a single
// lookup.
func (d *Document) allNameTreeEntries(root parser.Dict, out map[string]parser.Object) {
	if root == nil {
		return
	}
	if names := d.resolveArray(root["Names"]); names != nil {
		for i := 0; i+1 < len(names); i += 2 {
			if k, ok := stringValue(names[i]); ok {
				out[k] = names[i+1]
			}
		}
		return
	}
	for _, k := range d.resolveArray(root["Kids"]) {
		kidRef, ok := k.(parser.Reference)
		if !ok {
			continue
		}
		d.allNameTreeEntries(d.resolveDict(kidRef), out)
	}
}

func stringValue(o parser.Object) (string, bool) {
	s, ok := o.(parser.String)
	if !ok {
		return "", false
	}
	return string(s.Bytes), true
}

// Destination is a resolved named destination: a page reference plus
// the remaining /Dests-array fit parameters (e.g. /XYZ left top zoom),
// kept opaque since interpreting the fit mode is a rendering concern.
type Destination struct {
	Page   parser.Reference
	Params parser.Array
}

func destinationFromObject(o parser.Object) (Destination, bool) {
	switch v := o.(type) {
	case parser.Array:
		if len(v) == 0 {
			return Destination{}, false
		}
		page, ok := v[0].(parser.Reference)
		if !ok {
			return Destination{}, false
		}
		return Destination{Page: page, Params: v[1:]}, true
	case parser.Dict:
		d, ok := v["D"].(parser.Array)
		if !ok || len(d) == 0 {
			return Destination{}, false
		}
		page, ok := d[0].(parser.Reference)
		if !ok {
			return Destination{}, false
		}
		return Destination{Page: page, Params: d[1:]}, true
	default:
		return Destination{}, false
	}
}

// NamedDestinations resolves either a PDF-1.2+ /Names/Dests name tree
// or a PDF-1.1 direct /Dests dictionary into one flat map.
func (d *Document) NamedDestinations() map[string]Destination {
	out := map[string]Destination{}

	if namesDict := d.resolveDict(d.catalog["Names"]); namesDict != nil {
		if destsRoot := d.resolveDict(namesDict["Dests"]); destsRoot != nil {
			flat := map[string]parser.Object{}
			d.allNameTreeEntries(destsRoot, flat)
			for k, v := range flat {
				resolved, err := d.src.Resolve(v)
				if err != nil {
					continue
				}
				if dest, ok := destinationFromObject(resolved); ok {
					out[k] = dest
				}
			}
		}
	}

	if legacy := d.resolveDict(d.catalog["Dests"]); legacy != nil {
		for k, v := range legacy {
			resolved, err := d.src.Resolve(v)
			if err != nil {
				continue
			}
			if dest, ok := destinationFromObject(resolved); ok {
				out[string(k)] = dest
			}
		}
	}

	return out
}

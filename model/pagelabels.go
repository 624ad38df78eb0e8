package model

import "github.com/kilnpdf/core/parser"

// numberTreeLookup mirrors nameTreeLookup for the /Nums-keyed number
// tree variant used by /PageLabels (§7.9.7).
func (d *Document) numberTreeLookup(root parser.Dict, key int64) (parser.Object, bool) {
	if root == nil {
		return nil, false
	}
	if nums := d.resolveArray(root["Nums"]); nums != nil {
		for i := 0; i+1 < len(nums); i += 2 {
			n, ok := nums[i].(parser.Integer)
			if ok && int64(n) == key {
				return nums[i+1], true
			}
		}
		return nil, false
	}
	for _, k := range d.resolveArray(root["Kids"]) {
		kidRef, ok := k.(parser.Reference)
		if !ok {
			continue
		}
		kidDict := d.resolveDict(kidRef)
		if kidDict == nil {
			continue
		}
		if limits := d.resolveArray(kidDict["Limits"]); len(limits) == 2 {
			lo, loOK := limits[0].(parser.Integer)
			hi, hiOK := limits[1].(parser.Integer)
			if loOK && hiOK && (key < int64(lo) || key > int64(hi)) {
				continue
			}
		}
		if v, ok := d.numberTreeLookup(kidDict, key); ok {
			return v, true
		}
	}
	return nil, false
}

// PageLabel returns the /PageLabels entry governing the given 0-based
// page index, i.e. the nearest defined entry at or before that index,
// per the number tree's "applies until superseded" semantics.
func (d *Document) PageLabel(pageIndex int) (parser.Dict, bool) {
	root := d.resolveDict(d.catalog["PageLabels"])
	if root == nil {
		return nil, false
	}
	// Walk downward from pageIndex to find the nearest defined key,
	// since /PageLabels entries are sparse (only transition points are
	// recorded).
	for k := int64(pageIndex); k >= 0; k-- {
		if v, ok := d.numberTreeLookup(root, k); ok {
			dict, ok := v.(parser.Dict)
			if !ok {
				return nil, false
			}
			return dict, true
		}
	}
	return nil, false
}

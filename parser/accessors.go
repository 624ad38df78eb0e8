package parser

// Clone returns a deep copy of obj. Dict and Array are copied
// recursively, a Stream gets a cloned Dict and a copied payload, a
// String gets a copied byte slice; everything else is already a value
// type.
func Clone(obj Object) Object {
	switch v := obj.(type) {
	case Array:
		out := make(Array, len(v))
		for i, e := range v {
			out[i] = Clone(e)
		}
		return out
	case Dict:
		out := make(Dict, len(v))
		for k, e := range v {
			out[k] = Clone(e)
		}
		return out
	case Stream:
		raw := make([]byte, len(v.Raw))
		copy(raw, v.Raw)
		return Stream{Dict: Clone(v.Dict).(Dict), Raw: raw}
	case String:
		b := make([]byte, len(v.Bytes))
		copy(b, v.Bytes)
		return String{Bytes: b, Encoding: v.Encoding}
	default:
		return obj
	}
}

// AsDict returns (d, true) if obj is a Dict, or the dictionary of obj if
// it is a Stream (streams are dict-like with a payload attached).
func AsDict(obj Object) (Dict, bool) {
	switch v := obj.(type) {
	case Dict:
		return v, true
	case Stream:
		return v.Dict, true
	default:
		return nil, false
	}
}

func AsArray(obj Object) (Array, bool) {
	a, ok := obj.(Array)
	return a, ok
}

func AsName(obj Object) (Name, bool) {
	n, ok := obj.(Name)
	return n, ok
}

func AsInteger(obj Object) (int64, bool) {
	switch v := obj.(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	default:
		return 0, false
	}
}

func AsReal(obj Object) (float64, bool) {
	switch v := obj.(type) {
	case Real:
		return float64(v), true
	case Integer:
		return float64(v), true
	default:
		return 0, false
	}
}

func AsBool(obj Object) (bool, bool) {
	b, ok := obj.(Boolean)
	return bool(b), ok
}

func AsReference(obj Object) (Reference, bool) {
	r, ok := obj.(Reference)
	return r, ok
}

func AsStream(obj Object) (Stream, bool) {
	s, ok := obj.(Stream)
	return s, ok
}

// DictGet is a convenience that returns (Null{}, false) rather than a nil
// Object when the key is absent, so callers can safely type-switch the
// result without a nil check.
func DictGet(d Dict, key Name) (Object, bool) {
	v, ok := d[key]
	if !ok {
		return Null{}, false
	}
	return v, true
}

// Package parser turns tokenizer output into PDF objects: the tagged
// union Null/Boolean/Integer/Real/Name/String/Array/Dictionary/Stream/
// Reference described in the data model, plus the indirect-object framing
// (`N G obj ... endobj`) that wraps them on disk.
package parser

import "fmt"

// Object is the tagged sum of every PDF value kind. Concrete types below
// all implement it; callers type-switch to inspect one.
type Object interface {
	fmt.Stringer
	isObject()
}

type Null struct{}

func (Null) isObject()        {}
func (Null) String() string   { return "null" }

type Boolean bool

func (Boolean) isObject() {}
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

type Integer int64

func (Integer) isObject()        {}
func (i Integer) String() string { return fmt.Sprintf("%d", int64(i)) }

type Real float64

func (Real) isObject()        {}
func (r Real) String() string { return fmt.Sprintf("%v", float64(r)) }

// Name is PDF's atom type. The stored value is already un-escaped
// (no #xx sequences); Name.String() re-adds the leading slash for
// display but callers should use the writer package to serialize.
type Name string

func (Name) isObject()        {}
func (n Name) String() string { return "/" + string(n) }

// StringEncoding records how a String value was spelled on disk, so a
// round-trip write can reproduce the same form where the writer's own
// heuristic would otherwise differ.
type StringEncoding uint8

const (
	// LiteralEncoding: parenthesized form, e.g. (Hello).
	LiteralEncoding StringEncoding = iota
	// HexEncoding: angle-bracket form, e.g. <48656C6C6F>.
	HexEncoding
)

// String is an opaque byte string with an encoding hint. Decoding
// (PDFDocEncoding vs UTF-16BE) is left to the consumer; the parser never
// eagerly decodes.
type String struct {
	Bytes    []byte
	Encoding StringEncoding
}

func (String) isObject() {}
func (s String) String() string {
	return fmt.Sprintf("(%s)", string(s.Bytes))
}

// Array is an ordered sequence of objects.
type Array []Object

func (Array) isObject() {}
func (a Array) String() string {
	out := "["
	for i, o := range a {
		if i > 0 {
			out += " "
		}
		out += o.String()
	}
	return out + "]"
}

// Dict is a mapping from Name to Object. Go maps do not preserve
// insertion order; per the data model that order is irrelevant to
// semantics, so this is not a round-trip-fidelity problem for P1 (only
// byte-for-byte re-serialization of an unmodified file cares about key
// order, and that path goes through the incremental updater which copies
// bytes verbatim rather than re-serializing dictionaries it didn't
// touch).
type Dict map[Name]Object

func (Dict) isObject() {}
func (d Dict) String() string {
	out := "<<"
	for k, v := range d {
		out += k.String() + " " + v.String() + " "
	}
	return out + ">>"
}

// Reference is an indirect reference "N G R".
type Reference struct {
	Number     uint32
	Generation uint16
}

func (Reference) isObject() {}
func (r Reference) String() string { return fmt.Sprintf("%d %d R", r.Number, r.Generation) }

// Stream is a dictionary plus raw (still filter-encoded) payload bytes.
// Decoding through the filter pipeline is a separate step (package
// parser/filters); the parser only extracts the exact on-disk bytes
// between "stream\n" and "\nendstream".
type Stream struct {
	Dict Dict
	Raw  []byte
}

func (Stream) isObject() {}
func (s Stream) String() string {
	return fmt.Sprintf("%s stream(%d bytes)", Dict(s.Dict).String(), len(s.Raw))
}

// IndirectObject pairs an object identity with its body. InObjectStream
// is set when the object was unpacked from a /Type /ObjStm container
// (implicit generation 0; never itself a Stream).
type IndirectObject struct {
	Number, Generation uint32
	Body               Object
	InObjectStream      *ObjectStreamRef
}

type ObjectStreamRef struct {
	Container uint32
	Index     int
}

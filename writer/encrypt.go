package writer

import (
	"fmt"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
	"github.com/kilnpdf/core/security"
)

// preparedEncryption bundles the live crypt handler with the /Encrypt
// dictionary object to emit in the trailer.
type preparedEncryption struct {
	handler *security.Handler
	dict    parser.Dict
}

// prepareEncryption derives a fresh file key and /Encrypt dictionary
// fields for ec, using id0 as the document's first ID entry (Algorithm
// 2 folds the ID into key derivation for revisions below 5; the AES-256
// path does not use it at all, but the ID entry is still written for
// reader compatibility).
func prepareEncryption(ec *EncryptionConfig, id0 []byte) (*preparedEncryption, error) {
	r := ec.revision()
	if ec.Algorithm == security.AES256 {
		fields, fileKey, err := security.GenerateAES256(ec.UserPassword, ec.OwnerPassword, ec.Permissions, r)
		if err != nil {
			return nil, perr.New(perr.SecurityError, "writer.prepareEncryption", err)
		}
		dict := parser.Dict{
			"Filter": parser.Name("Standard"),
			"V":      parser.Integer(5),
			"R":      parser.Integer(r),
			"Length": parser.Integer(256),
			"O":      parser.String{Bytes: fields.O[:], Encoding: parser.HexEncoding},
			"U":      parser.String{Bytes: fields.U[:], Encoding: parser.HexEncoding},
			"OE":     parser.String{Bytes: fields.OE[:], Encoding: parser.HexEncoding},
			"UE":     parser.String{Bytes: fields.UE[:], Encoding: parser.HexEncoding},
			"P":      parser.Integer(fields.P),
		}
		handler := &security.Handler{Algorithm: security.AES256, FileKey: fileKey}
		return &preparedEncryption{handler: handler, dict: dict}, nil
	}

	d, handler := security.GenerateR2R4(ec.UserPassword, ec.OwnerPassword, ec.Permissions, ec.Algorithm, r, id0)
	dict := parser.Dict{
		"Filter": parser.Name("Standard"),
		"V":      parser.Integer(d.V),
		"R":      parser.Integer(d.R),
		"Length": parser.Integer(d.Length),
		"O":      parser.String{Bytes: d.O[:], Encoding: parser.HexEncoding},
		"U":      parser.String{Bytes: d.U[:], Encoding: parser.HexEncoding},
		"P":      parser.Integer(d.P),
	}
	if ec.Algorithm == security.AES128 {
		// a V 4 dictionary names its AES crypt filter; without /CF a
		// reader falls back to RC4.
		dict["CF"] = parser.Dict{"StdCF": parser.Dict{
			"CFM": parser.Name("AESV2"), "Length": parser.Integer(16), "AuthEvent": parser.Name("DocOpen"),
		}}
		dict["StmF"] = parser.Name("StdCF")
		dict["StrF"] = parser.Name("StdCF")
	}
	return &preparedEncryption{handler: handler, dict: dict}, nil
}

// encryptObject recursively encrypts every String and Stream payload
// reachable from body, mirroring file.decryptObject's traversal exactly
// so the same document re-opened through package file decrypts back to
// the plaintext that was serialized.
func encryptObject(h *security.Handler, o parser.Object, number uint32, generation uint16) (parser.Object, error) {
	switch v := o.(type) {
	case parser.String:
		enc, err := h.EncryptString(v.Bytes, number, generation)
		if err != nil {
			return nil, err
		}
		return parser.String{Bytes: enc, Encoding: parser.HexEncoding}, nil
	case parser.Array:
		out := make(parser.Array, len(v))
		for i, e := range v {
			enc, err := encryptObject(h, e, number, generation)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	case parser.Dict:
		out := make(parser.Dict, len(v))
		for k, e := range v {
			enc, err := encryptObject(h, e, number, generation)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	case parser.Stream:
		encDict, err := encryptObject(h, v.Dict, number, generation)
		if err != nil {
			return nil, err
		}
		encRaw, err := h.EncryptStream(v.Raw, number, generation)
		if err != nil {
			return nil, err
		}
		dict, ok := encDict.(parser.Dict)
		if !ok {
			return nil, perr.New(perr.InvariantViolation, "writer.encryptObject", fmt.Errorf("stream dict encryption changed type"))
		}
		// AES crypt prepends a 16-byte IV and PKCS#7-pads the payload, so
		// /Length must reflect the encrypted byte count, not the plaintext's.
		dict["Length"] = parser.Integer(len(encRaw))
		return parser.Stream{Dict: dict, Raw: encRaw}, nil
	default:
		return o, nil
	}
}

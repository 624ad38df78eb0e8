package file

import (
	"fmt"

	"github.com/kilnpdf/core/parser"
	"github.com/kilnpdf/core/perr"
	"github.com/kilnpdf/core/security"
)

// setupEncryption reads the trailer's /Encrypt entry, if any, validates
// the configured password against it, and installs ctx.enc so every
// subsequent object load decrypts strings and stream payloads.
func (ctx *context) setupEncryption() error {
	if ctx.trailer.encrypt == nil {
		return nil
	}
	encObj, err := ctx.resolve(ctx.trailer.encrypt, nil)
	if err != nil {
		return perr.New(perr.SecurityError, "file.setupEncryption", err)
	}
	dict, ok := encObj.(parser.Dict)
	if !ok {
		return perr.New(perr.SecurityError, "file.setupEncryption", fmt.Errorf("/Encrypt is not a dictionary"))
	}
	if name, _ := dict["Filter"].(parser.Name); string(name) != "Standard" {
		return perr.New(perr.SecurityError, "file.setupEncryption", fmt.Errorf("unsupported security handler %q", dict["Filter"]))
	}

	v := intField(dict, "V", 0)
	r := intField(dict, "R", 2)

	if r >= 5 {
		handler, err := ctx.openAES256Handler(dict, r)
		if err != nil {
			return err
		}
		ctx.enc = handler
		ctx.invalidateObjectCache()
		return nil
	}

	sd := security.Dict{
		V: v, R: r,
		P:               int32(intField(dict, "P", 0)),
		ID0:             ctx.trailer.id0,
		EncryptMetadata: boolField(dict, "EncryptMetadata", true),
		Length:          intField(dict, "Length", 40),
	}
	copy(sd.O[:], stringField(dict, "O"))
	copy(sd.U[:], stringField(dict, "U"))

	alg := security.RC4_40
	switch {
	case v == 4 && isAESCF(dict):
		alg = security.AES128
	case sd.Length > 40 || v >= 2:
		alg = security.RC4_128
	}

	password := ctx.conf.Password
	if !security.ValidateUserPassword(password, sd, alg) {
		userPassword, ok := security.ValidateOwnerPassword(password, sd, alg)
		if !ok {
			return perr.New(perr.SecurityError, "file.setupEncryption", fmt.Errorf("wrong password"))
		}
		// the file key derives from the user password recovered from /O.
		password = userPassword
	}
	ctx.enc = security.NewHandlerFromPassword(password, sd, alg)
	ctx.invalidateObjectCache()
	return nil
}

// invalidateObjectCache drops every object cached before ctx.enc was
// installed: recovery scanning (recoverRootFromScan) can load objects
// by number before setupEncryption runs, and those bodies would
// otherwise sit in the cache undecrypted for the rest of the session.
func (ctx *context) invalidateObjectCache() {
	ctx.objectCache = map[uint32]parser.Object{}
}

func (ctx *context) openAES256Handler(dict parser.Dict, r int) (*security.Handler, error) {
	var f security.AES256Fields
	f.R = r
	copy(f.U[:], stringField(dict, "U"))
	copy(f.O[:], stringField(dict, "O"))
	copy(f.UE[:], stringField(dict, "UE"))
	copy(f.OE[:], stringField(dict, "OE"))

	if security.ValidateUserPasswordAES256(f, ctx.conf.Password) {
		key, err := security.FileKeyFromUserPasswordAES256(f, ctx.conf.Password)
		if err != nil {
			return nil, perr.New(perr.SecurityError, "file.openAES256Handler", err)
		}
		return &security.Handler{Algorithm: security.AES256, FileKey: key}, nil
	}
	if security.ValidateOwnerPasswordAES256(f, ctx.conf.Password) {
		key, err := security.FileKeyFromOwnerPasswordAES256(f, ctx.conf.Password)
		if err != nil {
			return nil, perr.New(perr.SecurityError, "file.openAES256Handler", err)
		}
		return &security.Handler{Algorithm: security.AES256, FileKey: key}, nil
	}
	return nil, perr.New(perr.SecurityError, "file.openAES256Handler", fmt.Errorf("wrong password"))
}

func isAESCF(dict parser.Dict) bool {
	cf, _ := dict["CF"].(parser.Dict)
	stdCF, _ := cf["StdCF"].(parser.Dict)
	name, _ := stdCF["CFM"].(parser.Name)
	return string(name) == "AESV2" || string(name) == "AESV3"
}

func intField(dict parser.Dict, key string, def int) int {
	if n, ok := dict[parser.Name(key)].(parser.Integer); ok {
		return int(n)
	}
	return def
}

func boolField(dict parser.Dict, key string, def bool) bool {
	if b, ok := dict[parser.Name(key)].(parser.Boolean); ok {
		return bool(b)
	}
	return def
}

func stringField(dict parser.Dict, key string) []byte {
	if s, ok := dict[parser.Name(key)].(parser.String); ok {
		return s.Bytes
	}
	return nil
}

// decryptObject walks obj recursively, decrypting every String and
// Stream payload found, per §4.6. The members of an object stream and
// the /Encrypt dictionary itself are never passed through here: an
// object stream container is decrypted here as a whole when it is
// loaded and its members are then parsed from the decrypted bytes, and
// /Encrypt is read via ctx.resolve before ctx.enc exists.
func (ctx *context) decryptObject(obj parser.Object, number uint32, generation uint16) parser.Object {
	switch o := obj.(type) {
	case parser.String:
		dec, err := ctx.enc.DecryptString(o.Bytes, number, generation)
		if err != nil {
			return o
		}
		return parser.String{Bytes: dec, Encoding: o.Encoding}
	case parser.Array:
		out := make(parser.Array, len(o))
		for i, v := range o {
			out[i] = ctx.decryptObject(v, number, generation)
		}
		return out
	case parser.Dict:
		out := make(parser.Dict, len(o))
		for k, v := range o {
			out[k] = ctx.decryptObject(v, number, generation)
		}
		return out
	case parser.Stream:
		if isIdentityCrypt(o.Dict) {
			return o
		}
		dec, err := ctx.enc.DecryptStream(o.Raw, number, generation)
		if err != nil {
			return o
		}
		return parser.Stream{Dict: ctx.decryptObject(o.Dict, number, generation).(parser.Dict), Raw: dec}
	default:
		return obj
	}
}

func isIdentityCrypt(dict parser.Dict) bool {
	name, _ := dict["Filter"].(parser.Name)
	return string(name) == "Crypt"
}

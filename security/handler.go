// Package security implements the Standard Security Handler: file-key
// derivation from a password (Algorithm 2), per-object keys (Algorithm
// 1), owner/user hash validation (Algorithms 3-6), and the RC4/AES
// stream and string crypt operations built on top of them.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rc4"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/kilnpdf/core/perr"
)

// Algorithm names a combination of cipher and key length.
type Algorithm int

const (
	RC4_40 Algorithm = iota
	RC4_128
	AES128
	AES256
)

// padding is the fixed 32-byte password padding string from ISO 32000-1
// Algorithm 2, step (a).
var padding = [32]byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// Permissions is the 32-bit /P permissions bitfield.
type Permissions uint32

const (
	PermPrint Permissions = 1 << 2
	PermModify Permissions = 1 << 3
	PermCopy   Permissions = 1 << 4
	PermAnnotate Permissions = 1 << 5
	PermFillForms Permissions = 1 << 8
	PermExtractAccessibility Permissions = 1 << 9
	PermAssemble Permissions = 1 << 10
	PermPrintHighRes Permissions = 1 << 11
	// reserved bits per spec must be set to 1.
	allReservedBits Permissions = 0xFFFFF0C0
)

func (p Permissions) bytes() [4]byte {
	v := uint32(p) | uint32(allReservedBits)
	return [4]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// Value returns the /P integer to store in the Encrypt dictionary, with
// the reserved bits forced to 1 as every revision requires.
func (p Permissions) Value() int32 {
	return int32(uint32(p) | uint32(allReservedBits))
}

// Dict is the parsed /Encrypt dictionary's fields needed by the handler.
type Dict struct {
	V, R        int
	O, U        [32]byte
	OE, UE      [32]byte // AES-256 (R=5,6) only
	Perms       [16]byte // AES-256 (R=5,6) /Perms, encrypted
	P           int32
	Length      int // key length in bits, default 40
	ID0         []byte
	EncryptMetadata bool
}

// Handler derives keys and performs crypt operations for one opened or
// about-to-be-written document.
type Handler struct {
	Algorithm Algorithm
	FileKey   []byte
	dict      Dict
}

func keyLengthBytes(alg Algorithm, dictLength int) int {
	switch alg {
	case RC4_40:
		return 5
	case AES128:
		return 16
	case AES256:
		return 32
	default: // RC4_128, variable-length RC4/AES-128 handlers
		if dictLength == 0 {
			return 16
		}
		return dictLength / 8
	}
}

func padPassword(pw string) [32]byte {
	var out [32]byte
	n := copy(out[:], pw)
	copy(out[n:], padding[:])
	return out
}

// deriveFileKeyR2R4 implements Algorithm 2 for revisions 2-4
// (RC4-40/128, AES-128).
func deriveFileKeyR2R4(userPassword string, d Dict, alg Algorithm) []byte {
	padded := padPassword(userPassword)
	h := md5.New()
	h.Write(padded[:])
	h.Write(d.O[:])
	pb := Permissions(uint32(d.P)).bytes()
	h.Write(pb[:])
	if len(d.ID0) > 0 {
		h.Write(d.ID0)
	}
	if d.R >= 4 && !d.EncryptMetadata {
		h.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	sum := h.Sum(nil)

	n := keyLengthBytes(alg, d.Length)
	if n > len(sum) {
		n = len(sum)
	}
	key := sum[:n]
	if d.R >= 3 {
		for i := 0; i < 50; i++ {
			s := md5.Sum(key)
			key = s[:n]
		}
	}
	out := make([]byte, n)
	copy(out, key)
	return out
}

// objectKey implements Algorithm 1: per-object key derivation for
// RC4/AES-128. AES-256 (R=5,6) skips this step entirely and uses the
// file key directly (see §4.6).
func objectKey(fileKey []byte, objNumber uint32, generation uint16, aesVariant bool) []byte {
	h := md5.New()
	h.Write(fileKey)
	h.Write([]byte{byte(objNumber), byte(objNumber >> 8), byte(objNumber >> 16)})
	h.Write([]byte{byte(generation), byte(generation >> 8)})
	if aesVariant {
		h.Write([]byte{0x73, 0x41, 0x6C, 0x54}) // "sAlT"
	}
	sum := h.Sum(nil)
	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return sum[:n]
}

// NewHandlerFromPassword derives a Handler's file key given a candidate
// password and the document's encryption dictionary, per revisions 2-4.
// AES-256 handlers are built directly from the file key returned by
// FileKeyFromUserPasswordAES256 or FileKeyFromOwnerPasswordAES256.
func NewHandlerFromPassword(password string, d Dict, alg Algorithm) *Handler {
	return &Handler{Algorithm: alg, FileKey: deriveFileKeyR2R4(password, d, alg), dict: d}
}

// EncryptString applies this handler's cipher to a plaintext string
// belonging to object (objNumber, generation). Strings inside the
// /Encrypt dictionary itself and the /ID array are never passed through
// here (caller responsibility, per §4.6 invariants).
func (h *Handler) EncryptString(plain []byte, objNumber uint32, generation uint16) ([]byte, error) {
	return h.crypt(plain, objNumber, generation, true)
}

func (h *Handler) DecryptString(cipherText []byte, objNumber uint32, generation uint16) ([]byte, error) {
	return h.crypt(cipherText, objNumber, generation, false)
}

func (h *Handler) EncryptStream(plain []byte, objNumber uint32, generation uint16) ([]byte, error) {
	return h.crypt(plain, objNumber, generation, true)
}

func (h *Handler) DecryptStream(cipherText []byte, objNumber uint32, generation uint16) ([]byte, error) {
	return h.crypt(cipherText, objNumber, generation, false)
}

func (h *Handler) crypt(data []byte, objNumber uint32, generation uint16, encrypting bool) ([]byte, error) {
	switch h.Algorithm {
	case RC4_40, RC4_128:
		key := objectKey(h.FileKey, objNumber, generation, false)
		return rc4Crypt(key, data)
	case AES128:
		key := objectKey(h.FileKey, objNumber, generation, true)
		if encrypting {
			return aesCBCEncrypt(key, data)
		}
		return aesCBCDecrypt(key, data)
	case AES256:
		// no per-object derivation step for revision 5/6.
		if encrypting {
			return aesCBCEncrypt(h.FileKey, data)
		}
		return aesCBCDecrypt(h.FileKey, data)
	default:
		return nil, perr.New(perr.SecurityError, "security.crypt", fmt.Errorf("unsupported algorithm"))
	}
}

// rc4Crypt is self-inverse: the same call encrypts or decrypts.
func rc4Crypt(key, data []byte) ([]byte, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, perr.New(perr.SecurityError, "security.rc4Crypt", err)
	}
	out := make([]byte, len(data))
	c.XORKeyStream(out, data)
	return out, nil
}

// aesCBCEncrypt prepends a random 16-byte IV and PKCS#7-pads the
// plaintext, per §4.6.
func aesCBCEncrypt(key, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, perr.New(perr.SecurityError, "security.aesCBCEncrypt", err)
	}
	padLen := aes.BlockSize - len(plain)%aes.BlockSize
	padded := make([]byte, len(plain)+padLen)
	copy(padded, plain)
	for i := len(plain); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, perr.New(perr.SecurityError, "security.aesCBCEncrypt", err)
	}
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

func aesCBCDecrypt(key, cipherText []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, perr.New(perr.SecurityError, "security.aesCBCDecrypt", err)
	}
	if len(cipherText) < aes.BlockSize || len(cipherText)%aes.BlockSize != 0 {
		return nil, perr.New(perr.SecurityError, "security.aesCBCDecrypt", fmt.Errorf("ciphertext length %d invalid for AES-CBC", len(cipherText)))
	}
	iv := cipherText[:aes.BlockSize]
	body := cipherText[aes.BlockSize:]
	out := make([]byte, len(body))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, body)
	if len(out) == 0 {
		return out, nil
	}
	padLen := int(out[len(out)-1])
	if padLen < 1 || padLen > aes.BlockSize || padLen > len(out) {
		// malformed padding: return as-is rather than truncating wrong.
		return out, nil
	}
	return out[:len(out)-padLen], nil
}

// The revision 5/6 file key is recovered by unwrapping /UE or /OE with a
// key hashed from the password: see FileKeyFromUserPasswordAES256 and
// FileKeyFromOwnerPasswordAES256 in aes256.go.

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"

	"errors"

	"github.com/kilnpdf/core/perr"
)

var errInvalidAESLength = errors.New("ciphertext length not a multiple of the AES block size")

// AES256Fields holds the revision 5/6 password-related fields of the
// /Encrypt dictionary: 48-byte U/O (32-byte hash + 8-byte validation
// salt + 8-byte key salt) and the 32-byte UE/OE key-wrap blobs.
type AES256Fields struct {
	R int // 5 or 6
	P int32

	U  [48]byte
	O  [48]byte
	UE [32]byte
	OE [32]byte
}

// hardenedHash implements ISO 32000-2 Algorithm 2.B, used for revision 6.
// Revision 5 uses a single SHA-256 round instead (see computeHash).
func hardenedHash(password, salt, udata []byte) []byte {
	input := append(append(append([]byte{}, password...), salt...), udata...)
	k := sha256Sum(input)
	round := 0
	for {
		k1 := make([]byte, 0, 64*(len(password)+len(k)+len(udata)))
		for i := 0; i < 64; i++ {
			k1 = append(k1, password...)
			k1 = append(k1, k...)
			k1 = append(k1, udata...)
		}
		e := aesCBCEncryptNoIVPrefix(k[:16], k[16:32], k1)
		mod := sum16Mod3(e)
		switch mod {
		case 0:
			s := sha256.Sum256(e)
			k = s[:]
		case 1:
			s := sha512.Sum384(e)
			k = s[:]
		default:
			s := sha512.Sum512(e)
			k = s[:]
		}
		round++
		if round >= 64 && int(e[len(e)-1]) <= round-32 {
			break
		}
	}
	return k[:32]
}

func sha256Sum(b []byte) []byte {
	s := sha256.Sum256(b)
	return s[:]
}

func sum16Mod3(e []byte) int {
	sum := 0
	n := 16
	if len(e) < n {
		n = len(e)
	}
	for i := 0; i < n; i++ {
		sum += int(e[i])
	}
	return sum % 3
}

// aesCBCEncryptNoIVPrefix encrypts with an explicit key+IV and no
// PKCS#7 padding, no IV prefix on the output -- used inside the
// revision 6 hardened-hash loop and for wrapping the file key into
// /UE and /OE (GenerateAES256), never for document string/stream data.
func aesCBCEncryptNoIVPrefix(key, iv, plain []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err) // key is always 16 or 32 bytes here; a aes.NewCipher failure is a programmer error
	}
	out := make([]byte, len(plain))
	mode := cipher.NewCBCEncrypter(block, iv)
	mode.CryptBlocks(out, plain)
	return out
}

func aesCBCDecryptNoIVPrefixNoPad(key, iv, cipherText []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, perr.New(perr.SecurityError, "security.aesCBCDecryptNoIVPrefixNoPad", err)
	}
	if len(cipherText)%aes.BlockSize != 0 {
		return nil, perr.New(perr.SecurityError, "security.aesCBCDecryptNoIVPrefixNoPad", errInvalidAESLength)
	}
	out := make([]byte, len(cipherText))
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out, cipherText)
	return out, nil
}

var zeroIV = make([]byte, 16)

// computeHash dispatches revision 5 (plain SHA-256) vs revision 6
// (hardened hash) per ISO 32000-2 §7.6.4.3.4.
func computeHash(r int, password, salt, udata []byte) []byte {
	if r >= 6 {
		return hardenedHash(password, salt, udata)
	}
	input := append(append(append([]byte{}, password...), salt...), udata...)
	return sha256Sum(input)
}

// ValidateUserPasswordAES256 checks a candidate user password against
// U's stored hash (bytes 0-31), using its validation salt (bytes 32-39).
func ValidateUserPasswordAES256(f AES256Fields, password string) bool {
	validationSalt := f.U[32:40]
	want := f.U[:32]
	got := computeHash(f.R, []byte(password), validationSalt, nil)
	return constantTimeEqual(got, want[:])
}

// ValidateOwnerPasswordAES256 checks a candidate owner password against
// O's stored hash, salted additionally with the full 48-byte U string.
func ValidateOwnerPasswordAES256(f AES256Fields, password string) bool {
	validationSalt := f.O[32:40]
	want := f.O[:32]
	got := computeHash(f.R, []byte(password), validationSalt, f.U[:])
	return constantTimeEqual(got, want[:])
}

// FileKeyFromUserPasswordAES256 recovers the file encryption key by
// unwrapping UE with a key derived from the user password and U's key
// salt (bytes 40-47).
func FileKeyFromUserPasswordAES256(f AES256Fields, password string) ([]byte, error) {
	keySalt := f.U[40:48]
	intermediate := computeHash(f.R, []byte(password), keySalt, nil)
	return aesCBCDecryptNoIVPrefixNoPad(intermediate, zeroIV, f.UE[:])
}

// FileKeyFromOwnerPasswordAES256 recovers the file encryption key by
// unwrapping OE with a key derived from the owner password, O's key
// salt, and the full U string.
func FileKeyFromOwnerPasswordAES256(f AES256Fields, password string) ([]byte, error) {
	keySalt := f.O[40:48]
	intermediate := computeHash(f.R, []byte(password), keySalt, f.U[:])
	return aesCBCDecryptNoIVPrefixNoPad(intermediate, zeroIV, f.OE[:])
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

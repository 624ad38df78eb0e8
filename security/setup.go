package security

import "crypto/rand"

// GenerateR2R4 derives a fresh /Encrypt dictionary and Handler for
// revisions 2-4 (RC4-40, RC4-128, AES-128) from a pair of passwords, the
// permission bits to grant, and the document's first ID entry. It runs
// the same Algorithm 2/3/4/5 steps a reader would run to validate the
// result, so a handler opened later with either password reproduces
// this file key exactly.
func GenerateR2R4(userPassword, ownerPassword string, perms Permissions, alg Algorithm, r int, id0 []byte) (Dict, *Handler) {
	d := Dict{
		V:               algV(alg, r),
		R:               r,
		P:               perms.Value(),
		Length:          keyLengthBytes(alg, 0) * 8,
		ID0:             id0,
		EncryptMetadata: true,
	}
	d.O = ComputeOwnerHash(ownerPassword, userPassword, r)
	fileKey := deriveFileKeyR2R4(userPassword, d, alg)
	d.U = computeU(fileKey, d)
	return d, &Handler{Algorithm: alg, FileKey: fileKey, dict: d}
}

func algV(alg Algorithm, r int) int {
	switch alg {
	case RC4_40:
		return 1
	case RC4_128:
		if r >= 3 {
			return 2
		}
		return 1
	case AES128:
		return 4
	default:
		return 5
	}
}

// GenerateAES256 derives fresh revision 5/6 password fields (U/O 48-byte
// hash+salts, UE/OE key-wrap blobs) and a random 32-byte file key,
// following ISO 32000-2 Algorithm 8 (owner) / Algorithm 9 reversed for
// generation rather than validation.
func GenerateAES256(userPassword, ownerPassword string, perms Permissions, r int) (AES256Fields, []byte, error) {
	fileKey := make([]byte, 32)
	if _, err := rand.Read(fileKey); err != nil {
		return AES256Fields{}, nil, err
	}

	uValidationSalt := randomBytes(8)
	uKeySalt := randomBytes(8)
	uHash := computeHash(r, []byte(userPassword), uValidationSalt, nil)
	var u [48]byte
	copy(u[0:32], uHash)
	copy(u[32:40], uValidationSalt)
	copy(u[40:48], uKeySalt)

	uIntermediate := computeHash(r, []byte(userPassword), uKeySalt, nil)
	ue := aesCBCEncryptNoIVPrefix(uIntermediate, zeroIV, fileKey)

	oValidationSalt := randomBytes(8)
	oKeySalt := randomBytes(8)
	oHash := computeHash(r, []byte(ownerPassword), oValidationSalt, u[:])
	var o [48]byte
	copy(o[0:32], oHash)
	copy(o[32:40], oValidationSalt)
	copy(o[40:48], oKeySalt)

	oIntermediate := computeHash(r, []byte(ownerPassword), oKeySalt, u[:])
	oe := aesCBCEncryptNoIVPrefix(oIntermediate, zeroIV, fileKey)

	f := AES256Fields{R: r, U: u, O: o, P: perms.Value()}
	copy(f.UE[:], ue)
	copy(f.OE[:], oe)
	return f, fileKey, nil
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

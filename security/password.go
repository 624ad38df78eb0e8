package security

import "crypto/md5"

// xor19 XORs key with round index 0..19 (20 applications: the initial
// RC4 pass with the base key, then 19 more with the key XORed against
// each round counter) and RC4-crypts data through each round, per
// Algorithm 3.4/3.5 step (c)/(d): used both to compute the owner hash
// on write and to recover the user password on read.
func xor19(key, data []byte) ([]byte, error) {
	out := append([]byte{}, data...)
	for round := 0; round <= 19; round++ {
		roundKey := make([]byte, len(key))
		for i, k := range key {
			roundKey[i] = k ^ byte(round)
		}
		ciphered, err := rc4Crypt(roundKey, out)
		if err != nil {
			return nil, err
		}
		out = ciphered
	}
	return out, nil
}

// ComputeOwnerHash implements Algorithm 3: the /O entry for revisions
// 2-4, derived from the owner password (or the user password, if no
// owner password is set) RC4-encrypted under a key derived from the
// padded owner password.
func ComputeOwnerHash(ownerPassword, userPassword string, r int) [32]byte {
	padded := padPassword(ownerPassword)
	sum := md5.Sum(padded[:])
	key := sum[:]
	if r >= 3 {
		for i := 0; i < 50; i++ {
			s := md5.Sum(key)
			key = s[:]
		}
	}
	n := 5
	if r >= 3 {
		n = 16
	}
	key = key[:n]

	paddedUser := padPassword(userPassword)
	var out [32]byte
	if r == 2 {
		enc, _ := rc4Crypt(key, paddedUser[:])
		copy(out[:], enc)
		return out
	}
	enc, _ := xor19(key, paddedUser[:])
	copy(out[:], enc)
	return out
}

// ValidateUserPassword implements Algorithm 6/4/5 for revisions 2-4: it
// recomputes /U from the candidate password and file key and compares.
func ValidateUserPassword(candidatePassword string, d Dict, alg Algorithm) bool {
	fileKey := deriveFileKeyR2R4(candidatePassword, d, alg)
	computed := computeU(fileKey, d)
	return constantTimeEqual(computed[:16], d.U[:16])
}

// computeU implements Algorithm 4 (R=2) / Algorithm 5 (R>=3).
func computeU(fileKey []byte, d Dict) [32]byte {
	var out [32]byte
	if d.R == 2 {
		enc, _ := rc4Crypt(fileKey, padding[:])
		copy(out[:], enc)
		return out
	}
	h := md5.New()
	h.Write(padding[:])
	if len(d.ID0) > 0 {
		h.Write(d.ID0)
	}
	sum := h.Sum(nil)
	enc, _ := xor19(fileKey, sum)
	copy(out[:], enc)
	return out
}

// ValidateOwnerPassword implements Algorithm 7 for revisions 2-4: it
// recovers the candidate user password from /O and the owner password,
// then validates that recovered password against /U.
func ValidateOwnerPassword(candidateOwnerPassword string, d Dict, alg Algorithm) (userPassword string, ok bool) {
	padded := padPassword(candidateOwnerPassword)
	sum := md5.Sum(padded[:])
	key := sum[:]
	if d.R >= 3 {
		for i := 0; i < 50; i++ {
			s := md5.Sum(key)
			key = s[:]
		}
	}
	n := 5
	if d.R >= 3 {
		n = 16
	}
	key = key[:n]

	var decrypted []byte
	if d.R == 2 {
		decrypted, _ = rc4Crypt(key, d.O[:])
	} else {
		decrypted, _ = xor19(key, d.O[:])
	}
	// decrypted is the padded user password; strip the fixed padding tail.
	userPassword = stripPadding(decrypted)
	return userPassword, ValidateUserPassword(userPassword, d, alg)
}

func stripPadding(padded []byte) string {
	for i := 0; i < len(padded); i++ {
		if matchesPaddingFrom(padded, i) {
			return string(padded[:i])
		}
	}
	return string(padded)
}

func matchesPaddingFrom(padded []byte, i int) bool {
	if i >= len(padded) {
		return false
	}
	for j := 0; i+j < len(padded); j++ {
		if padded[i+j] != padding[j] {
			return false
		}
	}
	return true
}

// Package cryptox implements the password handling shared by client and
// server: an argon2id-derived key never leaves the client, only its SHA-256
// verifier does.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"github.com/dmitrijs2005/possync/internal/common"
	"golang.org/x/crypto/argon2"
)

const SaltSize = 16

func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// VerifierFor derives the key for password and returns its verifier. The
// intermediate key is wiped.
func VerifierFor(password []byte, salt []byte) []byte {
	key := DeriveMasterKey(password, salt)
	defer common.WipeByteArray(key)
	return MakeVerifier(key)
}

// VerifierMatches compares two verifiers in constant time.
func VerifierMatches(a, b []byte) bool {
	return len(a) > 0 && subtle.ConstantTimeCompare(a, b) == 1
}

func NewSalt() []byte {
	return common.GenerateRandByteArray(SaltSize)
}

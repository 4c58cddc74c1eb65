package authn

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
)

const verifierLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateCodeVerifier produces a 128 character PKCE code verifier.
func GenerateCodeVerifier() string {
	n := 128
	ret := make([]byte, n)
	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(verifierLetters))))
		if err != nil {
			panic("Random number generation failed")
		}
		ret[i] = verifierLetters[num.Int64()]
	}
	return string(ret)
}

// S256ChallengeFromVerifier derives the S256 code challenge of a
// verifier.
func S256ChallengeFromVerifier(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(hash[:])
}

package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ineffectivecoder/smolder/internal/crypto"
	"github.com/ineffectivecoder/smolder/internal/encoding"
)

const (
	// HashSize is the size of an LM or NT hash.
	HashSize = 16
	// ChallengeSize is the size of a server challenge.
	ChallengeSize = 8
	// ResponseSize is the size of an LM or NTLM v1 challenge response.
	ResponseSize = 24

	lmPasswordLen = 14
)

// lmMagic is the constant both LM hash halves encrypt.
var lmMagic = [8]byte{'K', 'G', 'S', '!', '@', '#', '$', '%'}

var (
	errHashSize      = errors.New("hash must be 16 bytes")
	errChallengeSize = errors.New("server challenge must be 8 bytes")
)

// LMHash computes the LM hash of a password.
// The password is uppercased and cut to 14 OEM bytes; longer passwords lose
// their tail, as every LM implementation does.
func LMHash(password string) []byte {
	var pw [lmPasswordLen]byte
	copy(pw[:], encoding.ToOEM(strings.ToUpper(password)))

	var k1, k2 [7]byte
	copy(k1[:], pw[:7])
	copy(k2[:], pw[7:])

	h1 := crypto.DESEncrypt(k1, lmMagic)
	h2 := crypto.DESEncrypt(k2, lmMagic)

	return append(h1[:], h2[:]...)
}

// NTHash computes the NT hash from a password
// NT Hash = MD4(UTF-16LE(password))
func NTHash(password string) []byte {
	return crypto.MD4Hash(encoding.ToUTF16LE(password))
}

// LMResponse computes the 24-byte LM challenge response.
func LMResponse(lmHash, challenge []byte) ([]byte, error) {
	return desl(lmHash, challenge)
}

// NTLMResponse computes the 24-byte NTLM v1 challenge response.
func NTLMResponse(ntHash, challenge []byte) ([]byte, error) {
	return desl(ntHash, challenge)
}

// SessionBaseKey computes the NTLM v1 user session key, MD4(NT hash).
func SessionBaseKey(ntHash []byte) ([]byte, error) {
	if len(ntHash) != HashSize {
		return nil, errHashSize
	}
	return crypto.MD4Hash(ntHash), nil
}

// desl encrypts the challenge under three keys cut from the hash padded to 21 bytes.
func desl(hash, challenge []byte) ([]byte, error) {
	if len(hash) != HashSize {
		return nil, errHashSize
	}
	if len(challenge) != ChallengeSize {
		return nil, fmt.Errorf("%w, got %d", errChallengeSize, len(challenge))
	}

	var padded [21]byte
	copy(padded[:], hash)

	var block [8]byte
	copy(block[:], challenge)

	resp := make([]byte, 0, ResponseSize)
	for i := 0; i < 3; i++ {
		var key [7]byte
		copy(key[:], padded[i*7:(i+1)*7])
		out := crypto.DESEncrypt(key, block)
		resp = append(resp, out[:]...)
	}
	return resp, nil
}

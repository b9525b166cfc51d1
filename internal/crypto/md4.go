// Package crypto provides the legacy primitives behind LM and NTLM authentication.
package crypto

import (
	"golang.org/x/crypto/md4"
)

// MD4Hash computes the MD4 hash of data
func MD4Hash(data []byte) []byte {
	h := md4.New()
	h.Write(data)
	return h.Sum(nil)
}

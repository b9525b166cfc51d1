package auth

import (
	"errors"

	"github.com/ineffectivecoder/smolder/internal/encoding"
)

// NTLM message signatures and types
var ntlmSignature = [8]byte{'N', 'T', 'L', 'M', 'S', 'S', 'P', 0}

const (
	NtLmNegotiate    = 0x00000001 // Type 1
	NtLmChallenge    = 0x00000002 // Type 2
	NtLmAuthenticate = 0x00000003 // Type 3
)

// NTLMSSP negotiate flags
const (
	NtlmsspNegotiateUnicode                 uint32 = 0x00000001
	NtlmsspNegotiateOEM                     uint32 = 0x00000002
	NtlmsspRequestTarget                    uint32 = 0x00000004
	NtlmsspNegotiateSign                    uint32 = 0x00000010
	NtlmsspNegotiateSeal                    uint32 = 0x00000020
	NtlmsspNegotiateLmKey                   uint32 = 0x00000080
	NtlmsspNegotiateNTLM                    uint32 = 0x00000200
	NtlmsspNegotiateAnonymous               uint32 = 0x00000800
	NtlmsspNegotiateAlwaysSign              uint32 = 0x00008000
	NtlmsspTargetTypeDomain                 uint32 = 0x00010000
	NtlmsspTargetTypeServer                 uint32 = 0x00020000
	NtlmsspNegotiateExtendedSessionSecurity uint32 = 0x00080000
	NtlmsspNegotiateTargetInfo              uint32 = 0x00800000
	NtlmsspNegotiateVersion                 uint32 = 0x02000000
	NtlmsspNegotiate128                     uint32 = 0x20000000
	NtlmsspNegotiateKeyExchange             uint32 = 0x40000000
	NtlmsspNegotiate56                      uint32 = 0x80000000
)

// DefaultNegotiateFlags asks for plain NTLM v1 responses. Extended session
// security is left out so the server keeps its challenge usable as-is.
var DefaultNegotiateFlags = NtlmsspNegotiateUnicode |
	NtlmsspNegotiateOEM |
	NtlmsspRequestTarget |
	NtlmsspNegotiateNTLM |
	NtlmsspNegotiateAlwaysSign

// ErrExtendedSessionSecurity is returned for a challenge that insists on
// NTLM2 session responses, which this package does not produce.
var ErrExtendedSessionSecurity = errors.New("server requires NTLM extended session security")

// SecurityBuffer represents the Len/MaxLen/Offset structure
type SecurityBuffer struct {
	Len    uint16
	MaxLen uint16
	Offset uint32
}

func (b SecurityBuffer) put(buf []byte) {
	encoding.PutUint16LE(buf[0:2], b.Len)
	encoding.PutUint16LE(buf[2:4], b.MaxLen)
	encoding.PutUint32LE(buf[4:8], b.Offset)
}

func readSecurityBuffer(buf []byte) SecurityBuffer {
	return SecurityBuffer{
		Len:    encoding.Uint16LE(buf[0:2]),
		MaxLen: encoding.Uint16LE(buf[2:4]),
		Offset: encoding.Uint32LE(buf[4:8]),
	}
}

// slice returns the payload the buffer points at, or nil if it is out of range.
func (b SecurityBuffer) slice(data []byte) []byte {
	start := int(b.Offset)
	end := start + int(b.Len)
	if b.Len == 0 || end > len(data) {
		return nil
	}
	out := make([]byte, b.Len)
	copy(out, data[start:end])
	return out
}

// IsNTLMSSP checks if the buffer starts with the NTLMSSP signature.
func IsNTLMSSP(buf []byte) bool {
	if len(buf) < 12 {
		return false
	}
	var sig [8]byte
	copy(sig[:], buf[:8])
	return sig == ntlmSignature
}

package auth

import (
	"github.com/ineffectivecoder/smolder/internal/encoding"
)

// NegotiateMessage represents NTLMSSP Type 1 message (NEGOTIATE_MESSAGE)
type NegotiateMessage struct {
	Signature      [8]byte
	MessageType    uint32 // Always 1
	NegotiateFlags uint32
}

// NewNegotiateMessage creates a Type 1 message
func NewNegotiateMessage() *NegotiateMessage {
	return &NegotiateMessage{
		Signature:      ntlmSignature,
		MessageType:    NtLmNegotiate,
		NegotiateFlags: DefaultNegotiateFlags,
	}
}

// Marshal serializes the Type 1 message
func (m *NegotiateMessage) Marshal() []byte {
	// Domain and workstation fields stay empty; no version block.
	buf := make([]byte, 32)

	copy(buf[0:8], m.Signature[:])
	encoding.PutUint32LE(buf[8:12], m.MessageType)
	encoding.PutUint32LE(buf[12:16], m.NegotiateFlags)
	SecurityBuffer{}.put(buf[16:24])
	SecurityBuffer{}.put(buf[24:32])

	return buf
}

package auth

import (
	"errors"

	"github.com/ineffectivecoder/smolder/internal/encoding"
)

// ChallengeMessage represents NTLMSSP Type 2 message (CHALLENGE_MESSAGE)
type ChallengeMessage struct {
	TargetNameFields SecurityBuffer
	NegotiateFlags   uint32
	ServerChallenge  [8]byte
	TargetName       []byte // From payload
}

// ParseChallengeMessage parses a Type 2 message
func ParseChallengeMessage(data []byte) (*ChallengeMessage, error) {
	if len(data) < 32 {
		return nil, errors.New("challenge message too short")
	}
	if !IsNTLMSSP(data) {
		return nil, errors.New("invalid NTLMSSP signature")
	}
	if encoding.Uint32LE(data[8:12]) != NtLmChallenge {
		return nil, errors.New("not a challenge message")
	}

	m := &ChallengeMessage{
		TargetNameFields: readSecurityBuffer(data[12:20]),
		NegotiateFlags:   encoding.Uint32LE(data[20:24]),
	}
	copy(m.ServerChallenge[:], data[24:32])
	m.TargetName = m.TargetNameFields.slice(data)

	return m, nil
}

// Unicode reports whether the server chose Unicode strings.
func (m *ChallengeMessage) Unicode() bool {
	return m.NegotiateFlags&NtlmsspNegotiateUnicode != 0
}

// GetTargetNameString returns the target name as string
func (m *ChallengeMessage) GetTargetNameString() string {
	if m.Unicode() {
		return encoding.FromUTF16LE(m.TargetName)
	}
	return encoding.FromOEM(m.TargetName)
}

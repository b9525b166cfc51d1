package auth

import (
	"github.com/ineffectivecoder/smolder/internal/encoding"
)

const authenticateFixedLen = 64

// AuthenticateMessage represents NTLMSSP Type 3 message (AUTHENTICATE_MESSAGE)
type AuthenticateMessage struct {
	NegotiateFlags uint32

	LmChallengeResponse []byte
	NtChallengeResponse []byte
	DomainName          []byte
	UserName            []byte
	Workstation         []byte

	// Not serialized
	SessionBaseKey []byte
}

// NewAuthenticateMessage answers a Type 2 challenge with LM and NTLM v1 responses.
func NewAuthenticateMessage(challenge *ChallengeMessage, creds Credentials, hasher Hasher, workstation string) (*AuthenticateMessage, error) {
	if challenge.NegotiateFlags&NtlmsspNegotiateExtendedSessionSecurity != 0 {
		return nil, ErrExtendedSessionSecurity
	}

	resp, err := hasher.ChallengeResponse(creds, challenge.ServerChallenge[:])
	if err != nil {
		return nil, err
	}

	m := &AuthenticateMessage{
		NegotiateFlags:      challenge.NegotiateFlags & DefaultNegotiateFlags,
		LmChallengeResponse: resp.LM,
		NtChallengeResponse: resp.NT,
		SessionBaseKey:      resp.SessionKey,
	}
	if _, ok := creds.(*AnonymousCredentials); ok {
		m.NegotiateFlags |= NtlmsspNegotiateAnonymous
	}

	str := encoding.ToOEM
	if challenge.Unicode() {
		m.NegotiateFlags &^= NtlmsspNegotiateOEM
		str = encoding.ToUTF16LE
	}
	m.DomainName = str(creds.Domain())
	m.UserName = str(creds.Username())
	m.Workstation = str(workstation)

	return m, nil
}

// Marshal serializes the Type 3 message
func (m *AuthenticateMessage) Marshal() []byte {
	fields := [][]byte{
		m.LmChallengeResponse,
		m.NtChallengeResponse,
		m.DomainName,
		m.UserName,
		m.Workstation,
		nil, // EncryptedRandomSessionKey, no key exchange
	}

	total := authenticateFixedLen
	for _, f := range fields {
		total += len(f)
	}
	buf := make([]byte, total)

	copy(buf[0:8], ntlmSignature[:])
	encoding.PutUint32LE(buf[8:12], NtLmAuthenticate)

	offset := uint32(authenticateFixedLen)
	for i, f := range fields {
		sb := SecurityBuffer{Len: uint16(len(f)), MaxLen: uint16(len(f)), Offset: offset}
		sb.put(buf[12+i*8 : 20+i*8])
		copy(buf[offset:], f)
		offset += uint32(len(f))
	}

	encoding.PutUint32LE(buf[60:64], m.NegotiateFlags)

	return buf
}

package auth

import (
	"fmt"
)

// Responses carries the challenge responses for one session setup.
type Responses struct {
	LM         []byte
	NT         []byte
	SessionKey []byte
}

// Hasher turns credentials and a server challenge into challenge responses.
type Hasher interface {
	ChallengeResponse(creds Credentials, challenge []byte) (*Responses, error)
}

// NTLMv1 computes LM and NTLM v1 responses.
type NTLMv1 struct{}

// ChallengeResponse implements Hasher.
func (NTLMv1) ChallengeResponse(creds Credentials, challenge []byte) (*Responses, error) {
	switch c := creds.(type) {
	case *PasswordCredentials:
		ntHash := NTHash(c.password)
		return respond(LMHash(c.password), ntHash, challenge)
	case *HashCredentials:
		// Without the password there is no LM hash; the NT response fills both slots.
		return respond(c.ntHash, c.ntHash, challenge)
	case *AnonymousCredentials:
		return &Responses{LM: []byte{}, NT: []byte{}}, nil
	default:
		return nil, fmt.Errorf("unsupported credentials type %T", creds)
	}
}

func respond(lmHash, ntHash, challenge []byte) (*Responses, error) {
	lm, err := LMResponse(lmHash, challenge)
	if err != nil {
		return nil, fmt.Errorf("LM response: %w", err)
	}
	nt, err := NTLMResponse(ntHash, challenge)
	if err != nil {
		return nil, fmt.Errorf("NTLM response: %w", err)
	}
	key, err := SessionBaseKey(ntHash)
	if err != nil {
		return nil, err
	}
	return &Responses{LM: lm, NT: nt, SessionKey: key}, nil
}

package auth

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/ineffectivecoder/smolder/internal/encoding"
)

func TestNegotiateMessage(t *testing.T) {
	buf := NewNegotiateMessage().Marshal()

	want := "4e544c4d53535000" + "01000000" + "07820000" + "0000000000000000" + "0000000000000000"
	if got := hex.EncodeToString(buf); got != want {
		t.Errorf("negotiate = %s\nwant       %s", got, want)
	}
	if !IsNTLMSSP(buf) {
		t.Error("IsNTLMSSP false for own message")
	}
}

// buildChallenge assembles a Type 2 message with a Unicode target name.
func buildChallenge(flags uint32, challenge []byte, target string) []byte {
	name := encoding.ToUTF16LE(target)
	buf := make([]byte, 48+len(name))
	copy(buf, ntlmSignature[:])
	encoding.PutUint32LE(buf[8:12], NtLmChallenge)
	SecurityBuffer{Len: uint16(len(name)), MaxLen: uint16(len(name)), Offset: 48}.put(buf[12:20])
	encoding.PutUint32LE(buf[20:24], flags)
	copy(buf[24:32], challenge)
	copy(buf[48:], name)
	return buf
}

func TestParseChallengeMessage(t *testing.T) {
	raw := buildChallenge(NtlmsspNegotiateUnicode|NtlmsspNegotiateNTLM, unhex(t, "1122334455667788"), "CORP")

	msg, err := ParseChallengeMessage(raw)
	if err != nil {
		t.Fatalf("ParseChallengeMessage: %v", err)
	}
	if hex.EncodeToString(msg.ServerChallenge[:]) != "1122334455667788" {
		t.Errorf("challenge = %x", msg.ServerChallenge)
	}
	if got := msg.GetTargetNameString(); got != "CORP" {
		t.Errorf("target = %q", got)
	}
}

func TestParseChallengeMessageErrors(t *testing.T) {
	good := buildChallenge(NtlmsspNegotiateUnicode, make([]byte, 8), "X")

	wrongType := append([]byte(nil), good...)
	encoding.PutUint32LE(wrongType[8:12], NtLmAuthenticate)

	badSig := append([]byte(nil), good...)
	badSig[0] = 'X'

	tests := map[string][]byte{
		"short":      good[:20],
		"wrong type": wrongType,
		"signature":  badSig,
	}
	for name, raw := range tests {
		if _, err := ParseChallengeMessage(raw); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestAuthenticateMessage(t *testing.T) {
	raw := buildChallenge(NtlmsspNegotiateUnicode|NtlmsspNegotiateNTLM, unhex(t, "1122334455667788"), "CORP")
	challenge, err := ParseChallengeMessage(raw)
	if err != nil {
		t.Fatal(err)
	}

	creds := NewPasswordCredentials("CORP", "alice", "secret")
	msg, err := NewAuthenticateMessage(challenge, creds, NTLMv1{}, "WS")
	if err != nil {
		t.Fatalf("NewAuthenticateMessage: %v", err)
	}
	buf := msg.Marshal()

	if !IsNTLMSSP(buf) || encoding.Uint32LE(buf[8:12]) != NtLmAuthenticate {
		t.Fatal("bad header")
	}

	field := func(i int) []byte {
		sb := readSecurityBuffer(buf[12+i*8 : 20+i*8])
		return buf[sb.Offset : sb.Offset+uint32(sb.Len)]
	}
	if !bytes.Equal(field(0), unhex(t, "c111c2a66ed3958252305236d23c74292f85252cc731bb25")) {
		t.Errorf("LM field = %x", field(0))
	}
	if !bytes.Equal(field(1), unhex(t, "11ac21950b4d6a3ad07257471579c60a1ae5996fdaf65663")) {
		t.Errorf("NT field = %x", field(1))
	}
	if got := encoding.FromUTF16LE(field(2)); got != "CORP" {
		t.Errorf("domain = %q", got)
	}
	if got := encoding.FromUTF16LE(field(3)); got != "alice" {
		t.Errorf("user = %q", got)
	}
	if got := encoding.FromUTF16LE(field(4)); got != "WS" {
		t.Errorf("workstation = %q", got)
	}
	if len(field(5)) != 0 {
		t.Error("unexpected session key field")
	}
	if bytes.Contains(buf, []byte("secret")) || bytes.Contains(buf, encoding.ToUTF16LE("secret")) {
		t.Error("password present in token")
	}
}

func TestAuthenticateRefusesExtendedSessionSecurity(t *testing.T) {
	raw := buildChallenge(NtlmsspNegotiateUnicode|NtlmsspNegotiateExtendedSessionSecurity, make([]byte, 8), "")
	challenge, err := ParseChallengeMessage(raw)
	if err != nil {
		t.Fatal(err)
	}

	_, err = NewAuthenticateMessage(challenge, NewAnonymousCredentials(), NTLMv1{}, "")
	if !errors.Is(err, ErrExtendedSessionSecurity) {
		t.Errorf("got %v, want ErrExtendedSessionSecurity", err)
	}
}

// Session implements SMB1 session setup, plain LM/NTLM and NTLMSSP
package smb1

import (
	"fmt"

	"github.com/ineffectivecoder/smolder/internal/encoding"
)

const (
	andxNone = 0xFF

	sessionSetupWordCount    = 13
	sessionSetupExtWordCount = 12

	// ActionGuest is set in the response Action field for guest logons.
	ActionGuest uint16 = 0x0001
)

// putAndX writes an empty AndX chain header.
func putAndX(params []byte) {
	params[0] = andxNone
	params[1] = 0
	encoding.PutUint16LE(params[2:4], 0)
}

// SessionSetupRequest carries LM and NTLM challenge responses (13 words).
type SessionSetupRequest struct {
	MaxBufferSize uint16
	MaxMpxCount   uint16
	VcNumber      uint16
	SessionKey    uint32
	Capabilities  uint32
	LMResponse    []byte // OEM password field
	NTResponse    []byte // Unicode password field
	Account       string
	PrimaryDomain string
	NativeOS      string
	NativeLanMan  string
	Unicode       bool
}

// Marshal serializes the session setup request
func (r *SessionSetupRequest) Marshal() ([]byte, error) {
	params := make([]byte, sessionSetupWordCount*2)
	putAndX(params)
	encoding.PutUint16LE(params[4:], r.MaxBufferSize)
	encoding.PutUint16LE(params[6:], r.MaxMpxCount)
	encoding.PutUint16LE(params[8:], r.VcNumber)
	encoding.PutUint32LE(params[10:], r.SessionKey)
	encoding.PutUint16LE(params[14:], uint16(len(r.LMResponse)))
	encoding.PutUint16LE(params[16:], uint16(len(r.NTResponse)))
	// params[18:22] reserved
	encoding.PutUint32LE(params[22:], r.Capabilities)

	data := newByteBlock(sessionSetupWordCount, r.Unicode)
	data.bytes(r.LMResponse)
	data.bytes(r.NTResponse)
	data.str(r.Account)
	data.str(r.PrimaryDomain)
	data.str(r.NativeOS)
	data.str(r.NativeLanMan)

	return encodeBody(params, data.buf)
}

// SessionSetupExtRequest carries a security blob (12 words).
type SessionSetupExtRequest struct {
	MaxBufferSize uint16
	MaxMpxCount   uint16
	VcNumber      uint16
	SessionKey    uint32
	Capabilities  uint32
	SecurityBlob  []byte
	NativeOS      string
	NativeLanMan  string
	Unicode       bool
}

// Marshal serializes the session setup request
func (r *SessionSetupExtRequest) Marshal() ([]byte, error) {
	params := make([]byte, sessionSetupExtWordCount*2)
	putAndX(params)
	encoding.PutUint16LE(params[4:], r.MaxBufferSize)
	encoding.PutUint16LE(params[6:], r.MaxMpxCount)
	encoding.PutUint16LE(params[8:], r.VcNumber)
	encoding.PutUint32LE(params[10:], r.SessionKey)
	encoding.PutUint16LE(params[14:], uint16(len(r.SecurityBlob)))
	// params[16:20] reserved
	encoding.PutUint32LE(params[20:], r.Capabilities)

	data := newByteBlock(sessionSetupExtWordCount, r.Unicode)
	data.bytes(r.SecurityBlob)
	data.str(r.NativeOS)
	data.str(r.NativeLanMan)

	return encodeBody(params, data.buf)
}

// SessionSetupResponse represents a SESSION_SETUP_ANDX response, either the
// 3-word form or the 4-word extended security form.
type SessionSetupResponse struct {
	AndXCommand   uint8
	AndXOffset    uint16
	Action        uint16
	SecurityBlob  []byte
	NativeOS      string
	NativeLanMan  string
	PrimaryDomain string
}

// Command implements Response
func (r *SessionSetupResponse) Command() Command { return CommandSessionSetupAndX }

func (r *SessionSetupResponse) unmarshal(m *Message, unicode bool) error {
	wc := m.WordCount()
	if wc != 3 && wc != 4 {
		return fmt.Errorf("%w: session setup word count %d", ErrInvalidResponse, wc)
	}

	p := m.Params
	r.AndXCommand = p[0]
	r.AndXOffset = encoding.Uint16LE(p[2:])
	r.Action = encoding.Uint16LE(p[4:])

	br := newByteReader(m, unicode)
	if wc == 4 {
		blob, err := br.next(int(encoding.Uint16LE(p[6:])))
		if err != nil {
			return fmt.Errorf("security blob: %w", err)
		}
		r.SecurityBlob = blob
	}

	r.NativeOS = br.str(true)
	r.NativeLanMan = br.str(true)
	r.PrimaryDomain = br.str(true)

	return nil
}

// IsGuestLogon returns true if this is a guest logon
func (r *SessionSetupResponse) IsGuestLogon() bool {
	return r.Action&ActionGuest != 0
}

// LogoffRequest represents a LOGOFF_ANDX request
type LogoffRequest struct{}

// Marshal serializes the logoff request
func (r *LogoffRequest) Marshal() ([]byte, error) {
	params := make([]byte, 4)
	putAndX(params)
	return encodeBody(params, nil)
}

// LogoffResponse represents a LOGOFF_ANDX response
type LogoffResponse struct{}

// Command implements Response
func (r *LogoffResponse) Command() Command { return CommandLogoffAndX }

func (r *LogoffResponse) unmarshal(m *Message) error {
	if m.WordCount() != 2 {
		return fmt.Errorf("%w: logoff word count %d", ErrInvalidResponse, m.WordCount())
	}
	return nil
}

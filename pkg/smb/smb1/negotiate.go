// Negotiate implements SMB1 dialect negotiation
package smb1

import (
	"fmt"
	"time"

	"github.com/ineffectivecoder/smolder/internal/encoding"
)

// dialectBufferFormat precedes each dialect string
const dialectBufferFormat = 0x02

// NegotiateRequest represents an SMB1 negotiate request
type NegotiateRequest struct {
	Dialects []string
}

// Marshal serializes the negotiate request
func (r *NegotiateRequest) Marshal() ([]byte, error) {
	var dialectBuf []byte
	for _, d := range r.Dialects {
		dialectBuf = append(dialectBuf, dialectBufferFormat)
		dialectBuf = append(dialectBuf, encoding.ToOEMWithNull(d)...)
	}
	return encodeBody(nil, dialectBuf)
}

// NegotiateResponse represents an SMB1 negotiate response
type NegotiateResponse struct {
	DialectIndex    uint16
	SecurityMode    uint8
	MaxMpxCount     uint16
	MaxNumberVcs    uint16
	MaxBufferSize   uint32
	MaxRawSize      uint32
	SessionKey      uint32
	Capabilities    uint32
	SystemTime      uint64
	ServerTimeZone  int16
	ChallengeLength uint8

	// Non-extended security
	Challenge  []byte
	DomainName string
	ServerName string

	// Extended security
	ServerGUID   [16]byte
	SecurityBlob []byte
}

// Capability flags
const (
	CapRawMode         uint32 = 0x00000001
	CapMpxMode         uint32 = 0x00000002
	CapUnicode         uint32 = 0x00000004
	CapLargeFiles      uint32 = 0x00000008
	CapNTSMBs          uint32 = 0x00000010
	CapRPCRemoteAPIs   uint32 = 0x00000020
	CapNTStatusCodes   uint32 = 0x00000040
	CapLevel2Oplocks   uint32 = 0x00000080
	CapLockAndRead     uint32 = 0x00000100
	CapNTFind          uint32 = 0x00000200
	CapDFS             uint32 = 0x00001000
	CapInfoLevelPassth uint32 = 0x00002000
	CapLargeReadX      uint32 = 0x00004000
	CapLargeWriteX     uint32 = 0x00008000
	CapLWIO            uint32 = 0x00010000
	CapUnix            uint32 = 0x00800000
	CapCompressed      uint32 = 0x02000000
	CapDynamicReauth   uint32 = 0x20000000
	CapExtendedSec     uint32 = 0x80000000
)

const (
	negotiateWordCount = 17
	noDialect          = 0xFFFF
	serverGUIDSize     = 16
)

// Command implements Response
func (r *NegotiateResponse) Command() Command { return CommandNegotiate }

// unmarshal parses the negotiate response. String encoding follows the
// response header since nothing has been negotiated yet.
func (r *NegotiateResponse) unmarshal(m *Message) error {
	if m.WordCount() >= 1 {
		r.DialectIndex = encoding.Uint16LE(m.Params)
	}
	if m.WordCount() == 0 || r.DialectIndex == noDialect {
		return fmt.Errorf("%w: no dialect selected", ErrDialectRejected)
	}
	if m.WordCount() != negotiateWordCount {
		// Pre-NT dialects answer with 1 or 13 words; we never offer them.
		return fmt.Errorf("%w: unexpected word count %d", ErrDialectRejected, m.WordCount())
	}

	p := m.Params
	r.SecurityMode = p[2]
	r.MaxMpxCount = encoding.Uint16LE(p[3:])
	r.MaxNumberVcs = encoding.Uint16LE(p[5:])
	r.MaxBufferSize = encoding.Uint32LE(p[7:])
	r.MaxRawSize = encoding.Uint32LE(p[11:])
	r.SessionKey = encoding.Uint32LE(p[15:])
	r.Capabilities = encoding.Uint32LE(p[19:])
	r.SystemTime = encoding.Uint64LE(p[23:])
	r.ServerTimeZone = int16(encoding.Uint16LE(p[31:]))
	r.ChallengeLength = p[33]

	br := newByteReader(m, m.Header.Unicode())

	if r.SupportsExtendedSecurity() {
		guid, err := br.next(serverGUIDSize)
		if err != nil {
			return fmt.Errorf("server GUID: %w", err)
		}
		copy(r.ServerGUID[:], guid)
		r.SecurityBlob, _ = br.next(br.remaining())
		return nil
	}

	challenge, err := br.next(int(r.ChallengeLength))
	if err != nil {
		return fmt.Errorf("challenge: %w", err)
	}
	r.Challenge = challenge
	// Windows does not pad these names even in Unicode mode.
	r.DomainName = br.str(false)
	r.ServerName = br.str(false)

	return nil
}

// SupportsExtendedSecurity returns true if server supports extended security
func (r *NegotiateResponse) SupportsExtendedSecurity() bool {
	return r.Capabilities&CapExtendedSec != 0
}

// SupportsUnicode returns true if server supports Unicode
func (r *NegotiateResponse) SupportsUnicode() bool {
	return r.Capabilities&CapUnicode != 0
}

// Negotiation records what the server agreed to.
type Negotiation struct {
	Dialect        string
	DialectIndex   uint16
	SecurityMode   uint8
	MaxMpxCount    uint16
	MaxNumberVcs   uint16
	MaxBufferSize  uint32
	MaxRawSize     uint32
	SessionKey     uint32
	Capabilities   uint32
	SystemTime     time.Time
	ServerTimeZone int16

	Challenge    []byte
	ServerGUID   [16]byte
	SecurityBlob []byte
	DomainName   string
	ServerName   string

	Unicode          bool
	ExtendedSecurity bool
}

func newNegotiation(r *NegotiateResponse, dialect string) *Negotiation {
	return &Negotiation{
		Dialect:          dialect,
		DialectIndex:     r.DialectIndex,
		SecurityMode:     r.SecurityMode,
		MaxMpxCount:      r.MaxMpxCount,
		MaxNumberVcs:     r.MaxNumberVcs,
		MaxBufferSize:    r.MaxBufferSize,
		MaxRawSize:       r.MaxRawSize,
		SessionKey:       r.SessionKey,
		Capabilities:     r.Capabilities,
		SystemTime:       filetime(r.SystemTime),
		ServerTimeZone:   r.ServerTimeZone,
		Challenge:        r.Challenge,
		ServerGUID:       r.ServerGUID,
		SecurityBlob:     r.SecurityBlob,
		DomainName:       r.DomainName,
		ServerName:       r.ServerName,
		Unicode:          r.SupportsUnicode(),
		ExtendedSecurity: r.SupportsExtendedSecurity(),
	}
}

// EncryptsPasswords reports whether the server accepts challenge responses.
func (n *Negotiation) EncryptsPasswords() bool {
	return n.SecurityMode&SecurityModeEncryptPasswords != 0
}

// SigningRequired reports whether the server insists on message signing.
func (n *Negotiation) SigningRequired() bool {
	return n.SecurityMode&SecurityModeSignaturesRequired != 0
}

// HasCapability reports whether the server advertised flag.
func (n *Negotiation) HasCapability(flag uint32) bool {
	return n.Capabilities&flag != 0
}

func (n *Negotiation) clone() *Negotiation {
	c := *n
	c.Challenge = append([]byte(nil), n.Challenge...)
	c.SecurityBlob = append([]byte(nil), n.SecurityBlob...)
	return &c
}

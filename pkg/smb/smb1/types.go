// Package smb1 implements SMB1 (NT LM 0.12) protocol support for legacy systems.
package smb1

import (
	"fmt"
	"time"

	"github.com/ineffectivecoder/smolder/internal/encoding"
)

// SMB1 Command codes
type Command uint8

const (
	CommandCreateDirectory  Command = 0x00
	CommandDeleteDirectory  Command = 0x01
	CommandOpen             Command = 0x02
	CommandCreate           Command = 0x03
	CommandClose            Command = 0x04
	CommandFlush            Command = 0x05
	CommandDelete           Command = 0x06
	CommandRename           Command = 0x07
	CommandTrans            Command = 0x25
	CommandEcho             Command = 0x2B
	CommandReadAndX         Command = 0x2E
	CommandWriteAndX        Command = 0x2F
	CommandTrans2           Command = 0x32
	CommandTreeDisconnect   Command = 0x71
	CommandNegotiate        Command = 0x72
	CommandSessionSetupAndX Command = 0x73
	CommandLogoffAndX       Command = 0x74
	CommandTreeConnectAndX  Command = 0x75
	CommandNTCreateAndX     Command = 0xA2
)

var commandNames = map[Command]string{
	CommandCreateDirectory:  "CREATE_DIRECTORY",
	CommandDeleteDirectory:  "DELETE_DIRECTORY",
	CommandOpen:             "OPEN",
	CommandCreate:           "CREATE",
	CommandClose:            "CLOSE",
	CommandFlush:            "FLUSH",
	CommandDelete:           "DELETE",
	CommandRename:           "RENAME",
	CommandTrans:            "TRANSACTION",
	CommandEcho:             "ECHO",
	CommandReadAndX:         "READ_ANDX",
	CommandWriteAndX:        "WRITE_ANDX",
	CommandTrans2:           "TRANSACTION2",
	CommandTreeDisconnect:   "TREE_DISCONNECT",
	CommandNegotiate:        "NEGOTIATE",
	CommandSessionSetupAndX: "SESSION_SETUP_ANDX",
	CommandLogoffAndX:       "LOGOFF_ANDX",
	CommandTreeConnectAndX:  "TREE_CONNECT_ANDX",
	CommandNTCreateAndX:     "NT_CREATE_ANDX",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("COMMAND_0x%02X", uint8(c))
}

// SMB1 header flags
const (
	FlagsLockAndRead   uint8 = 0x01
	FlagsReceiveBufAvl uint8 = 0x02
	FlagsCaseless      uint8 = 0x08
	FlagsCanonical     uint8 = 0x10
	FlagsOplock        uint8 = 0x20
	FlagsNotify        uint8 = 0x40
	FlagsResponse      uint8 = 0x80
)

// SMB1 header flags2
const (
	Flags2LongNames    uint16 = 0x0001
	Flags2EAS          uint16 = 0x0002
	Flags2SecuritySig  uint16 = 0x0004
	Flags2ExtendedSec  uint16 = 0x0800
	Flags2DFSPathnames uint16 = 0x1000
	Flags2ReadIfExec   uint16 = 0x2000
	Flags2NTStatusCode uint16 = 0x4000
	Flags2Unicode      uint16 = 0x8000
)

// Security mode bits from the negotiate response
const (
	SecurityModeUserLevel          uint8 = 0x01
	SecurityModeEncryptPasswords   uint8 = 0x02
	SecurityModeSignaturesEnabled  uint8 = 0x04
	SecurityModeSignaturesRequired uint8 = 0x08
)

var protocolID = [4]byte{0xFF, 'S', 'M', 'B'}

// Header represents an SMB1 header (32 bytes)
type Header struct {
	Protocol    [4]byte // 0xFF, 'S', 'M', 'B'
	Command     Command // Command code
	Status      uint32  // NT Status code (in NT_STATUS mode)
	Flags       uint8   // Flags
	Flags2      uint16  // Flags2
	PIDHigh     uint16  // High part of PID
	SecuritySig [8]byte // Security signature
	Reserved    uint16  // Reserved
	TID         uint16  // Tree ID
	PIDLow      uint16  // Low part of PID
	UID         uint16  // User ID
	MID         uint16  // Multiplex ID
}

const HeaderSize = 32

// NewHeader creates a new SMB1 header
func NewHeader(cmd Command, mid uint16) *Header {
	return &Header{
		Protocol: protocolID,
		Command:  cmd,
		Flags:    FlagsCaseless | FlagsCanonical,
		Flags2:   Flags2LongNames | Flags2NTStatusCode | Flags2Unicode,
		MID:      mid,
	}
}

// Marshal serializes the header to bytes
func (h *Header) Marshal() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], h.Protocol[:])
	buf[4] = byte(h.Command)
	encoding.PutUint32LE(buf[5:9], h.Status)
	buf[9] = h.Flags
	encoding.PutUint16LE(buf[10:12], h.Flags2)
	encoding.PutUint16LE(buf[12:14], h.PIDHigh)
	copy(buf[14:22], h.SecuritySig[:])
	encoding.PutUint16LE(buf[22:24], h.Reserved)
	encoding.PutUint16LE(buf[24:26], h.TID)
	encoding.PutUint16LE(buf[26:28], h.PIDLow)
	encoding.PutUint16LE(buf[28:30], h.UID)
	encoding.PutUint16LE(buf[30:32], h.MID)
	return buf
}

// Unmarshal parses bytes into the header
func (h *Header) Unmarshal(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("%w: header needs %d bytes, have %d", ErrLengthMismatch, HeaderSize, len(buf))
	}
	if [4]byte(buf[0:4]) != protocolID {
		return fmt.Errorf("%w: % x", ErrBadSignature, buf[0:4])
	}
	copy(h.Protocol[:], buf[0:4])
	h.Command = Command(buf[4])
	h.Status = encoding.Uint32LE(buf[5:9])
	h.Flags = buf[9]
	h.Flags2 = encoding.Uint16LE(buf[10:12])
	h.PIDHigh = encoding.Uint16LE(buf[12:14])
	copy(h.SecuritySig[:], buf[14:22])
	h.Reserved = encoding.Uint16LE(buf[22:24])
	h.TID = encoding.Uint16LE(buf[24:26])
	h.PIDLow = encoding.Uint16LE(buf[26:28])
	h.UID = encoding.Uint16LE(buf[28:30])
	h.MID = encoding.Uint16LE(buf[30:32])
	return nil
}

// SetPID splits a 32-bit process id across PIDHigh and PIDLow.
func (h *Header) SetPID(pid uint32) {
	h.PIDHigh = uint16(pid >> 16)
	h.PIDLow = uint16(pid)
}

// PID joins PIDHigh and PIDLow.
func (h *Header) PID() uint32 {
	return uint32(h.PIDHigh)<<16 | uint32(h.PIDLow)
}

// IsResponse returns true if this is a response message
func (h *Header) IsResponse() bool {
	return h.Flags&FlagsResponse != 0
}

// Unicode reports whether strings in this message are UTF-16LE.
func (h *Header) Unicode() bool {
	return h.Flags2&Flags2Unicode != 0
}

// Dialect strings for SMB1 negotiate
var (
	DialectNTLM012 = "NT LM 0.12"
)

// filetime converts a Windows FILETIME (100ns ticks since 1601) to time.Time.
func filetime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	const epochDelta = 116444736000000000
	ticks := int64(ft - epochDelta)
	return time.Unix(ticks/1e7, (ticks%1e7)*100).UTC()
}

// File operations for SMB1 protocol
package smb1

import (
	"fmt"

	"github.com/ineffectivecoder/smolder/internal/encoding"
)

// NT_CREATE_ANDX request constants
const (
	// Desired access flags
	FileReadData        uint32 = 0x00000001
	FileWriteData       uint32 = 0x00000002
	FileAppendData      uint32 = 0x00000004
	FileReadEA          uint32 = 0x00000008
	FileWriteEA         uint32 = 0x00000010
	FileExecute         uint32 = 0x00000020
	FileDeleteChild     uint32 = 0x00000040
	FileReadAttributes  uint32 = 0x00000080
	FileWriteAttributes uint32 = 0x00000100
	Delete              uint32 = 0x00010000
	ReadControl         uint32 = 0x00020000
	WriteDac            uint32 = 0x00040000
	WriteOwner          uint32 = 0x00080000
	Synchronize         uint32 = 0x00100000
	GenericAll          uint32 = 0x10000000
	GenericExecute      uint32 = 0x20000000
	GenericWrite        uint32 = 0x40000000
	GenericRead         uint32 = 0x80000000
	MaximumAllowed      uint32 = 0x02000000

	// Share access
	FileShareRead   uint32 = 0x00000001
	FileShareWrite  uint32 = 0x00000002
	FileShareDelete uint32 = 0x00000004

	// Disposition
	FileSupersede   uint32 = 0x00000000
	FileOpen        uint32 = 0x00000001
	FileCreate      uint32 = 0x00000002
	FileOpenIf      uint32 = 0x00000003
	FileOverwrite   uint32 = 0x00000004
	FileOverwriteIf uint32 = 0x00000005

	// Create options
	FileDirectoryFile           uint32 = 0x00000001
	FileWriteThrough            uint32 = 0x00000002
	FileSequentialOnly          uint32 = 0x00000004
	FileNoIntermediateBuffering uint32 = 0x00000008
	FileNonDirectoryFile        uint32 = 0x00000040

	// File attributes
	AttrReadOnly  uint32 = 0x00000001
	AttrHidden    uint32 = 0x00000002
	AttrSystem    uint32 = 0x00000004
	AttrDirectory uint32 = 0x00000010
	AttrArchive   uint32 = 0x00000020
	AttrNormal    uint32 = 0x00000080

	// Impersonation levels
	SecurityAnonymous      uint32 = 0
	SecurityIdentification uint32 = 1
	SecurityImpersonation  uint32 = 2
	SecurityDelegation     uint32 = 3
)

// Create actions reported by NT_CREATE_ANDX
const (
	FileSuperseded  uint32 = 0x00000000
	FileOpened      uint32 = 0x00000001
	FileCreated     uint32 = 0x00000002
	FileOverwritten uint32 = 0x00000003
)

const (
	ntCreateWordCount    = 24
	ntCreateRespMinWords = 34
	createWordCount      = 3
	closeWordCount       = 3

	bufferFormatASCII = 0x04

	// lastWriteUnchanged leaves the modification time to the server.
	lastWriteUnchanged = 0xFFFFFFFF
)

// NTCreateRequest represents SMB_COM_NT_CREATE_ANDX request
type NTCreateRequest struct {
	Flags              uint32
	RootDirectoryFID   uint32
	DesiredAccess      uint32
	AllocationSize     uint64
	ExtFileAttributes  uint32
	ShareAccess        uint32
	CreateDisposition  uint32
	CreateOptions      uint32
	ImpersonationLevel uint32
	SecurityFlags      uint8
	FileName           string
	Unicode            bool
}

// Marshal serializes NT_CREATE_ANDX request
func (r *NTCreateRequest) Marshal() ([]byte, error) {
	data := newByteBlock(ntCreateWordCount, r.Unicode)
	data.str(r.FileName)

	nameLen := len(encoding.ToOEMWithNull(r.FileName))
	if r.Unicode {
		nameLen = len(encoding.ToUTF16LEWithNull(r.FileName))
	}

	params := make([]byte, ntCreateWordCount*2)
	putAndX(params)
	// params[4] reserved
	encoding.PutUint16LE(params[5:], uint16(nameLen))
	encoding.PutUint32LE(params[7:], r.Flags)
	encoding.PutUint32LE(params[11:], r.RootDirectoryFID)
	encoding.PutUint32LE(params[15:], r.DesiredAccess)
	encoding.PutUint64LE(params[19:], r.AllocationSize)
	encoding.PutUint32LE(params[27:], r.ExtFileAttributes)
	encoding.PutUint32LE(params[31:], r.ShareAccess)
	encoding.PutUint32LE(params[35:], r.CreateDisposition)
	encoding.PutUint32LE(params[39:], r.CreateOptions)
	encoding.PutUint32LE(params[43:], r.ImpersonationLevel)
	params[47] = r.SecurityFlags

	return encodeBody(params, data.buf)
}

// NTCreateResponse represents SMB_COM_NT_CREATE_ANDX response
type NTCreateResponse struct {
	AndXCommand       uint8
	AndXOffset        uint16
	OpLockLevel       uint8
	FID               uint16
	CreateAction      uint32
	CreationTime      uint64
	LastAccessTime    uint64
	LastWriteTime     uint64
	ChangeTime        uint64
	ExtFileAttributes uint32
	AllocationSize    uint64
	EndOfFile         uint64
	FileType          uint16
	DeviceState       uint16
	Directory         bool
}

// Command implements Response
func (r *NTCreateResponse) Command() Command { return CommandNTCreateAndX }

// unmarshal parses the 34-word response. Servers that send the extended
// form append words which are ignored here.
func (r *NTCreateResponse) unmarshal(m *Message) error {
	if m.WordCount() < ntCreateRespMinWords {
		return fmt.Errorf("%w: NT create word count %d", ErrInvalidResponse, m.WordCount())
	}

	p := m.Params
	r.AndXCommand = p[0]
	r.AndXOffset = encoding.Uint16LE(p[2:])
	r.OpLockLevel = p[4]
	r.FID = encoding.Uint16LE(p[5:])
	r.CreateAction = encoding.Uint32LE(p[7:])
	r.CreationTime = encoding.Uint64LE(p[11:])
	r.LastAccessTime = encoding.Uint64LE(p[19:])
	r.LastWriteTime = encoding.Uint64LE(p[27:])
	r.ChangeTime = encoding.Uint64LE(p[35:])
	r.ExtFileAttributes = encoding.Uint32LE(p[43:])
	r.AllocationSize = encoding.Uint64LE(p[47:])
	r.EndOfFile = encoding.Uint64LE(p[55:])
	r.FileType = encoding.Uint16LE(p[63:])
	r.DeviceState = encoding.Uint16LE(p[65:])
	r.Directory = p[67] != 0

	return nil
}

// CreateRequest represents the core SMB_COM_CREATE request, which creates
// a file or truncates an existing one.
type CreateRequest struct {
	FileAttributes uint16
	CreationTime   uint32 // seconds since 1970, 0 lets the server decide
	FileName       string
	Unicode        bool
}

// Marshal serializes the create request
func (r *CreateRequest) Marshal() ([]byte, error) {
	params := make([]byte, createWordCount*2)
	encoding.PutUint16LE(params[0:], r.FileAttributes)
	encoding.PutUint32LE(params[2:], r.CreationTime)

	data := newByteBlock(createWordCount, r.Unicode)
	data.putByte(bufferFormatASCII)
	data.str(r.FileName)

	return encodeBody(params, data.buf)
}

// CreateResponse represents the SMB_COM_CREATE response
type CreateResponse struct {
	FID uint16
}

// Command implements Response
func (r *CreateResponse) Command() Command { return CommandCreate }

func (r *CreateResponse) unmarshal(m *Message) error {
	if m.WordCount() != 1 {
		return fmt.Errorf("%w: create word count %d", ErrInvalidResponse, m.WordCount())
	}
	r.FID = encoding.Uint16LE(m.Params)
	return nil
}

// CloseRequest represents SMB_COM_CLOSE request
type CloseRequest struct {
	FID           uint16
	LastWriteTime uint32
}

// Marshal serializes CLOSE request
func (r *CloseRequest) Marshal() ([]byte, error) {
	params := make([]byte, closeWordCount*2)
	encoding.PutUint16LE(params[0:], r.FID)
	encoding.PutUint32LE(params[2:], r.LastWriteTime)
	return encodeBody(params, nil)
}

// CloseResponse represents SMB_COM_CLOSE response
type CloseResponse struct{}

// Command implements Response
func (r *CloseResponse) Command() Command { return CommandClose }

func (r *CloseResponse) unmarshal(m *Message) error {
	if m.WordCount() != 0 {
		return fmt.Errorf("%w: close word count %d", ErrInvalidResponse, m.WordCount())
	}
	return nil
}

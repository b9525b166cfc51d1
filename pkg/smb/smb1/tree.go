// Tree implements SMB1 tree connect operations
package smb1

import (
	"fmt"
	"strings"

	"github.com/ineffectivecoder/smolder/internal/encoding"
	"github.com/ineffectivecoder/smolder/pkg/smb"
)

// Service types
const (
	ServiceDisk    = "A:"
	ServicePrinter = "LPT1:"
	ServicePipe    = "IPC"
	ServiceAny     = "?????"
)

// Tree connect request flags
const (
	TreeConnectDisconnectTID      uint16 = 0x0001
	TreeConnectExtendedSignatures uint16 = 0x0004
	TreeConnectExtendedResponse   uint16 = 0x0008
)

// Optional support bits in the tree connect response
const (
	SupportSearchBits uint16 = 0x0001
	ShareIsInDFS      uint16 = 0x0002
)

const treeConnectWordCount = 4

// TreeConnectRequest represents a TREE_CONNECT_ANDX request
type TreeConnectRequest struct {
	Flags    uint16
	Password []byte
	Path     string
	Service  string
	Unicode  bool
}

// Marshal serializes the tree connect request
func (r *TreeConnectRequest) Marshal() ([]byte, error) {
	params := make([]byte, treeConnectWordCount*2)
	putAndX(params)
	encoding.PutUint16LE(params[4:], r.Flags)
	encoding.PutUint16LE(params[6:], uint16(len(r.Password)))

	data := newByteBlock(treeConnectWordCount, r.Unicode)
	data.bytes(r.Password)
	data.str(r.Path)
	data.oem(r.Service)

	return encodeBody(params, data.buf)
}

// TreeConnectResponse represents a TREE_CONNECT_ANDX response. The access
// masks are only present in the 7-word extended form.
type TreeConnectResponse struct {
	AndXCommand        uint8
	AndXOffset         uint16
	OptionalSupport    uint16
	MaximalAccess      uint32
	GuestMaximalAccess uint32
	Service            string
	NativeFileSystem   string
}

// Command implements Response
func (r *TreeConnectResponse) Command() Command { return CommandTreeConnectAndX }

func (r *TreeConnectResponse) unmarshal(m *Message, unicode bool) error {
	wc := m.WordCount()
	if wc != 3 && wc != 7 {
		return fmt.Errorf("%w: tree connect word count %d", ErrInvalidResponse, wc)
	}

	p := m.Params
	r.AndXCommand = p[0]
	r.AndXOffset = encoding.Uint16LE(p[2:])
	r.OptionalSupport = encoding.Uint16LE(p[4:])
	if wc == 7 {
		r.MaximalAccess = encoding.Uint32LE(p[6:])
		r.GuestMaximalAccess = encoding.Uint32LE(p[10:])
	}

	br := newByteReader(m, unicode)
	r.Service = br.oem()
	r.NativeFileSystem = br.str(true)

	return nil
}

// TreeDisconnectRequest represents a TREE_DISCONNECT request
type TreeDisconnectRequest struct{}

// Marshal serializes the tree disconnect request
func (r *TreeDisconnectRequest) Marshal() ([]byte, error) {
	return encodeBody(nil, nil)
}

// TreeDisconnectResponse represents a TREE_DISCONNECT response
type TreeDisconnectResponse struct{}

// Command implements Response
func (r *TreeDisconnectResponse) Command() Command { return CommandTreeDisconnect }

func (r *TreeDisconnectResponse) unmarshal(m *Message) error {
	if m.WordCount() != 0 {
		return fmt.Errorf("%w: tree disconnect word count %d", ErrInvalidResponse, m.WordCount())
	}
	return nil
}

// validateSharePath accepts \\server\share with optional trailing components.
func validateSharePath(path string) error {
	rest, ok := strings.CutPrefix(path, `\\`)
	if ok {
		parts := strings.Split(rest, `\`)
		if len(parts) >= 2 && parts[0] != "" && parts[1] != "" {
			return nil
		}
	}
	return fmt.Errorf(`%w: share path %q is not of the form \\server\share`, smb.ErrInvalidParameter, path)
}

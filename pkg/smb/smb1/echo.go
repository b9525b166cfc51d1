package smb1

import (
	"fmt"

	"github.com/ineffectivecoder/smolder/internal/encoding"
)

// echoTID is used when no tree is needed
const echoTID = 0xFFFF

// EchoRequest represents an SMB_COM_ECHO request
type EchoRequest struct {
	EchoCount uint16
	Data      []byte
}

// Marshal serializes the echo request
func (r *EchoRequest) Marshal() ([]byte, error) {
	params := make([]byte, 2)
	encoding.PutUint16LE(params, r.EchoCount)
	return encodeBody(params, r.Data)
}

// EchoResponse represents one SMB_COM_ECHO response
type EchoResponse struct {
	SequenceNumber uint16
	Data           []byte
}

// Command implements Response
func (r *EchoResponse) Command() Command { return CommandEcho }

func (r *EchoResponse) unmarshal(m *Message) error {
	if m.WordCount() != 1 {
		return fmt.Errorf("%w: echo word count %d", ErrInvalidResponse, m.WordCount())
	}
	r.SequenceNumber = encoding.Uint16LE(m.Params)
	r.Data = append([]byte(nil), m.Data...)
	return nil
}

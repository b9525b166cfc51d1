package smb1

import (
	"fmt"
)

// Response is a decoded response body. The concrete type is fixed by the
// command: *NegotiateResponse, *SessionSetupResponse, *TreeConnectResponse,
// *CreateResponse, *NTCreateResponse, *CloseResponse, *EchoResponse,
// *TreeDisconnectResponse or *LogoffResponse.
type Response interface {
	Command() Command
}

// DecodeResponse decodes the body of msg as a response to cmd. unicode is
// the negotiated string mode; the negotiate response uses its own header.
func DecodeResponse(cmd Command, msg *Message, unicode bool) (Response, error) {
	if msg.Header.Command != cmd {
		return nil, fmt.Errorf("%w: sent %s, got %s", ErrUnknownCommand, cmd, msg.Header.Command)
	}

	var (
		resp Response
		err  error
	)
	switch cmd {
	case CommandNegotiate:
		r := &NegotiateResponse{}
		resp, err = r, r.unmarshal(msg)
	case CommandSessionSetupAndX:
		r := &SessionSetupResponse{}
		resp, err = r, r.unmarshal(msg, unicode)
	case CommandTreeConnectAndX:
		r := &TreeConnectResponse{}
		resp, err = r, r.unmarshal(msg, unicode)
	case CommandCreate:
		r := &CreateResponse{}
		resp, err = r, r.unmarshal(msg)
	case CommandNTCreateAndX:
		r := &NTCreateResponse{}
		resp, err = r, r.unmarshal(msg)
	case CommandClose:
		r := &CloseResponse{}
		resp, err = r, r.unmarshal(msg)
	case CommandEcho:
		r := &EchoResponse{}
		resp, err = r, r.unmarshal(msg)
	case CommandTreeDisconnect:
		r := &TreeDisconnectResponse{}
		resp, err = r, r.unmarshal(msg)
	case CommandLogoffAndX:
		r := &LogoffResponse{}
		resp, err = r, r.unmarshal(msg)
	default:
		return nil, fmt.Errorf("%w: no decoder for %s", ErrUnknownCommand, cmd)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", cmd, err)
	}
	return resp, nil
}

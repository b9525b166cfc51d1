package smb1

import (
	"errors"
	"fmt"

	"github.com/ineffectivecoder/smolder/pkg/smb"
)

// Protocol errors. All of them match smb.ErrProtocol.
var (
	ErrBadSignature    = fmt.Errorf("%w: bad SMB1 signature", smb.ErrProtocol)
	ErrLengthMismatch  = fmt.Errorf("%w: declared block length does not match message", smb.ErrProtocol)
	ErrUnknownCommand  = fmt.Errorf("%w: response command does not match request", smb.ErrProtocol)
	ErrDialectRejected = fmt.Errorf("%w: server rejected dialect", smb.ErrProtocol)
	ErrInvalidResponse = fmt.Errorf("%w: invalid response", smb.ErrProtocol)
)

var (
	// ErrOutOfSequence is returned for calls made in the wrong session phase
	// or with an unknown uid, tid or fid. Nothing is sent.
	ErrOutOfSequence = errors.New("operation out of sequence")

	// ErrTimeout is returned when a response does not arrive in time.
	ErrTimeout = fmt.Errorf("%w: request timed out", smb.ErrIO)

	// ErrClosed is returned once the client or its connection is gone.
	ErrClosed = errors.New("client closed")
)

// DOS error classes used when the server answers without NT status codes
const (
	errClassDOS = 0x01
	errClassSRV = 0x02
)

var dosErrors = map[uint32]smb.NTStatus{
	errClassDOS | 2<<16:  smb.StatusObjectNameNotFound,  // ERRbadfile
	errClassDOS | 3<<16:  smb.StatusObjectPathNotFound,  // ERRbadpath
	errClassDOS | 5<<16:  smb.StatusAccessDenied,        // ERRnoaccess
	errClassDOS | 6<<16:  smb.StatusInvalidHandle,       // ERRbadfid
	errClassDOS | 32<<16: smb.StatusSharingViolation,    // ERRbadshare
	errClassDOS | 80<<16: smb.StatusObjectNameCollision, // ERRfilexists
	errClassSRV | 2<<16:  smb.StatusLogonFailure,        // ERRbadpw
	errClassSRV | 4<<16:  smb.StatusAccessDenied,        // ERRaccess
	errClassSRV | 5<<16:  smb.StatusSMBBadTID,           // ERRinvtid
	errClassSRV | 6<<16:  smb.StatusBadNetworkName,      // ERRinvnetname
	errClassSRV | 91<<16: smb.StatusSMBBadUID,           // ERRbaduid
}

// responseStatus returns the NT status of a response, translating the
// DOS error class form when the server did not use NT status codes.
func responseStatus(h *Header) smb.NTStatus {
	if h.Flags2&Flags2NTStatusCode != 0 || h.Status == 0 {
		return smb.NTStatus(h.Status)
	}
	if s, ok := dosErrors[h.Status]; ok {
		return s
	}
	return smb.NTStatus(h.Status)
}

// statusError maps a non-success response to an error, nil on success.
func statusError(cmd Command, h *Header) error {
	status := responseStatus(h)
	if status.IsSuccess() {
		return nil
	}
	return fmt.Errorf("%s: %w", cmd, smb.StatusToError(status))
}

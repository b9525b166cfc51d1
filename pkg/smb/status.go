package smb

import "fmt"

// NTStatus is a 32-bit NT status code carried in the SMB1 header when the
// NT status flag is negotiated.
type NTStatus uint32

// NT Status codes commonly encountered
const (
	StatusSuccess                NTStatus = 0x00000000
	StatusMoreProcessingRequired NTStatus = 0xC0000016 // Continue (used in auth)
	StatusInvalidHandle          NTStatus = 0xC0000008
	StatusInvalidParameter       NTStatus = 0xC000000D
	StatusNoSuchFile             NTStatus = 0xC000000F
	StatusAccessDenied           NTStatus = 0xC0000022
	StatusObjectNameInvalid      NTStatus = 0xC0000033
	StatusObjectNameNotFound     NTStatus = 0xC0000034
	StatusObjectNameCollision    NTStatus = 0xC0000035
	StatusObjectPathNotFound     NTStatus = 0xC000003A
	StatusSharingViolation       NTStatus = 0xC0000043
	StatusLogonFailure           NTStatus = 0xC000006D
	StatusAccountRestriction     NTStatus = 0xC000006E
	StatusInvalidLogonHours      NTStatus = 0xC000006F
	StatusInvalidWorkstation     NTStatus = 0xC0000070
	StatusPasswordExpired        NTStatus = 0xC0000071
	StatusAccountDisabled        NTStatus = 0xC0000072
	StatusFileIsADirectory       NTStatus = 0xC00000BA
	StatusNotSupported           NTStatus = 0xC00000BB
	StatusBadNetworkPath         NTStatus = 0xC00000BE
	StatusBadNetworkName         NTStatus = 0xC00000CC
	StatusUserSessionDeleted     NTStatus = 0xC0000203
	StatusPasswordMustChange     NTStatus = 0xC0000224
	StatusAccountLockedOut       NTStatus = 0xC0000234
	StatusNetworkSessionExpired  NTStatus = 0xC000035C

	// DOS-class codes some servers still put in the NT status field
	StatusSMBBadTID NTStatus = 0x00050002
	StatusSMBBadUID NTStatus = 0x005B0002
)

var statusNames = map[NTStatus]string{
	StatusSuccess:                "STATUS_SUCCESS",
	StatusMoreProcessingRequired: "STATUS_MORE_PROCESSING_REQUIRED",
	StatusInvalidHandle:          "STATUS_INVALID_HANDLE",
	StatusInvalidParameter:       "STATUS_INVALID_PARAMETER",
	StatusNoSuchFile:             "STATUS_NO_SUCH_FILE",
	StatusAccessDenied:           "STATUS_ACCESS_DENIED",
	StatusObjectNameInvalid:      "STATUS_OBJECT_NAME_INVALID",
	StatusObjectNameNotFound:     "STATUS_OBJECT_NAME_NOT_FOUND",
	StatusObjectNameCollision:    "STATUS_OBJECT_NAME_COLLISION",
	StatusObjectPathNotFound:     "STATUS_OBJECT_PATH_NOT_FOUND",
	StatusSharingViolation:       "STATUS_SHARING_VIOLATION",
	StatusLogonFailure:           "STATUS_LOGON_FAILURE",
	StatusAccountRestriction:     "STATUS_ACCOUNT_RESTRICTION",
	StatusInvalidLogonHours:      "STATUS_INVALID_LOGON_HOURS",
	StatusInvalidWorkstation:     "STATUS_INVALID_WORKSTATION",
	StatusPasswordExpired:        "STATUS_PASSWORD_EXPIRED",
	StatusAccountDisabled:        "STATUS_ACCOUNT_DISABLED",
	StatusFileIsADirectory:       "STATUS_FILE_IS_A_DIRECTORY",
	StatusNotSupported:           "STATUS_NOT_SUPPORTED",
	StatusBadNetworkPath:         "STATUS_BAD_NETWORK_PATH",
	StatusBadNetworkName:         "STATUS_BAD_NETWORK_NAME",
	StatusUserSessionDeleted:     "STATUS_USER_SESSION_DELETED",
	StatusPasswordMustChange:     "STATUS_PASSWORD_MUST_CHANGE",
	StatusAccountLockedOut:       "STATUS_ACCOUNT_LOCKED_OUT",
	StatusNetworkSessionExpired:  "STATUS_NETWORK_SESSION_EXPIRED",
	StatusSMBBadTID:              "STATUS_SMB_BAD_TID",
	StatusSMBBadUID:              "STATUS_SMB_BAD_UID",
}

// IsSuccess returns true if status indicates success
func (s NTStatus) IsSuccess() bool {
	return s == StatusSuccess
}

// IsError returns true for the error severity class.
func (s NTStatus) IsError() bool {
	return uint32(s)&0xC0000000 == 0xC0000000
}

// String returns the symbolic name, or the hex code if unknown.
func (s NTStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", uint32(s))
}

// IsLogonFailure reports statuses that mean the credentials were refused.
func (s NTStatus) IsLogonFailure() bool {
	switch s {
	case StatusLogonFailure, StatusAccountRestriction, StatusInvalidLogonHours,
		StatusInvalidWorkstation, StatusPasswordExpired, StatusAccountDisabled,
		StatusPasswordMustChange, StatusAccountLockedOut:
		return true
	}
	return false
}

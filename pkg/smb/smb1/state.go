package smb1

import (
	"fmt"
	"sort"
)

// Phase is the connection phase of a client.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseNegotiated
	PhaseAuthenticated
	PhaseTreeConnected
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "Disconnected"
	case PhaseNegotiated:
		return "Negotiated"
	case PhaseAuthenticated:
		return "Authenticated"
	case PhaseTreeConnected:
		return "TreeConnected"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Session is an authenticated user session.
type Session struct {
	UID           uint16
	SessionKey    []byte
	Guest         bool
	Username      string
	Domain        string
	NativeOS      string
	NativeLanMan  string
	PrimaryDomain string
}

// Tree is a connected share. Files lists the open handles, ordered by fid.
type Tree struct {
	TID                uint16
	Path               string
	Service            string
	NativeFileSystem   string
	OptionalSupport    uint16
	MaximalAccess      uint32
	GuestMaximalAccess uint32
	Files              []FileHandle
}

// FileHandle is an open file on a tree.
type FileHandle struct {
	FID           uint16
	TID           uint16
	Name          string
	GrantedAccess uint32
	CreateAction  uint32
}

type treeState struct {
	info  Tree
	files map[uint16]*FileHandle
}

// state is the bookkeeping behind Client. It does no I/O and is not
// synchronized; Client guards it.
type state struct {
	negotiation *Negotiation
	session     *Session
	trees       map[uint16]*treeState

	negotiating    bool
	authenticating bool
}

func outOfSequence(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrOutOfSequence}, args...)...)
}

func (s *state) phase() Phase {
	switch {
	case s.negotiation == nil:
		return PhaseDisconnected
	case s.session == nil:
		return PhaseNegotiated
	case len(s.trees) > 0:
		return PhaseTreeConnected
	default:
		return PhaseAuthenticated
	}
}

func (s *state) beginNegotiate() error {
	if s.negotiation != nil || s.negotiating {
		return outOfSequence("already negotiated")
	}
	s.negotiating = true
	return nil
}

func (s *state) endNegotiate(n *Negotiation) {
	s.negotiating = false
	if n != nil {
		s.negotiation = n
	}
}

func (s *state) requireNegotiated() (*Negotiation, error) {
	if s.negotiation == nil {
		return nil, outOfSequence("not negotiated")
	}
	return s.negotiation, nil
}

func (s *state) beginAuthenticate() (*Negotiation, error) {
	n, err := s.requireNegotiated()
	if err != nil {
		return nil, err
	}
	if s.session != nil || s.authenticating {
		return nil, outOfSequence("already authenticated")
	}
	s.authenticating = true
	return n, nil
}

func (s *state) endAuthenticate(sess *Session) {
	s.authenticating = false
	if sess != nil {
		s.session = sess
		s.trees = make(map[uint16]*treeState)
	}
}

func (s *state) requireSession() (*Negotiation, *Session, error) {
	if s.session == nil {
		return nil, nil, outOfSequence("not authenticated")
	}
	return s.negotiation, s.session, nil
}

func (s *state) tree(tid uint16) (*treeState, error) {
	if _, _, err := s.requireSession(); err != nil {
		return nil, err
	}
	t, ok := s.trees[tid]
	if !ok {
		return nil, outOfSequence("unknown tid %d", tid)
	}
	return t, nil
}

func (s *state) addTree(uid uint16, t Tree) error {
	if s.session == nil || s.session.UID != uid {
		return outOfSequence("session ended during tree connect")
	}
	s.trees[t.TID] = &treeState{info: t, files: make(map[uint16]*FileHandle)}
	return nil
}

// removeTree drops a tree and every handle opened on it.
func (s *state) removeTree(tid uint16) error {
	if _, err := s.tree(tid); err != nil {
		return err
	}
	delete(s.trees, tid)
	return nil
}

func (s *state) addFile(tid uint16, f FileHandle) error {
	t, err := s.tree(tid)
	if err != nil {
		return err
	}
	t.files[f.FID] = &f
	return nil
}

// removeFile invalidates a handle before the close goes on the wire.
func (s *state) removeFile(tid, fid uint16) error {
	t, err := s.tree(tid)
	if err != nil {
		return err
	}
	if _, ok := t.files[fid]; !ok {
		return outOfSequence("unknown fid %d on tid %d", fid, tid)
	}
	delete(t.files, fid)
	return nil
}

// logoff drops the session and all trees, back to Negotiated.
func (s *state) logoff() (uint16, error) {
	_, sess, err := s.requireSession()
	if err != nil {
		return 0, err
	}
	s.session = nil
	s.trees = nil
	return sess.UID, nil
}

func (t *treeState) snapshot() Tree {
	info := t.info
	info.Files = make([]FileHandle, 0, len(t.files))
	for _, f := range t.files {
		info.Files = append(info.Files, *f)
	}
	sort.Slice(info.Files, func(i, j int) bool { return info.Files[i].FID < info.Files[j].FID })
	return info
}

func (s *state) snapshotTrees() []Tree {
	out := make([]Tree, 0, len(s.trees))
	for _, t := range s.trees {
		out = append(out, t.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TID < out[j].TID })
	return out
}

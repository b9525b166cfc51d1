package smb1

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ineffectivecoder/smolder/internal/encoding"
	"github.com/ineffectivecoder/smolder/pkg/auth"
	"github.com/ineffectivecoder/smolder/pkg/smb"
)

const (
	testUID = 0x0800
	testTID = 0x0001
)

// fakeServer answers SMB1 requests over one end of a net.Pipe.
type fakeServer struct {
	t  *testing.T
	tr *smb.Transport

	dialect      string
	challenge    []byte
	capabilities uint32
	securityMode uint8
	unicode      bool
	extSec       bool

	username string
	domain   string
	password string
	shares   map[string]uint16

	echoDelay  time.Duration // applied to the first echo only
	echoShort  bool
	echoBatch  int // collect this many echoes and answer in reverse
	echoQueued []*Message

	mu      sync.Mutex
	seen    []*Message
	lm, nt  []byte
	nextFID uint16
	files   map[uint16]string
	echoes  int
}

func newFakeServer(t *testing.T) *fakeServer {
	return &fakeServer{
		t:            t,
		dialect:      DialectNTLM012,
		challenge:    []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88},
		capabilities: CapUnicode | CapNTSMBs | CapNTStatusCodes | CapLargeFiles,
		securityMode: SecurityModeUserLevel | SecurityModeEncryptPasswords,
		unicode:      true,
		username:     "alice",
		domain:       "CORP",
		password:     "secret",
		shares:       map[string]uint16{`\\server\share`: testTID},
		nextFID:      0x4000,
		files:        make(map[uint16]string),
	}
}

// start connects a client to the server and returns it.
func (s *fakeServer) start(cfg Config) *Client {
	clientConn, serverConn := net.Pipe()
	s.tr = smb.NewTransport(serverConn, 0)
	go s.serve()

	c := NewClient(smb.NewTransport(clientConn, time.Second), cfg)
	s.t.Cleanup(func() {
		c.Close()
		s.tr.Close()
	})
	return c
}

func (s *fakeServer) serve() {
	for {
		buf, err := s.tr.Receive()
		if err != nil {
			return
		}
		req, err := ParseMessage(buf)
		if err != nil {
			s.t.Errorf("server: bad request: %v", err)
			return
		}

		s.mu.Lock()
		s.seen = append(s.seen, req)
		s.mu.Unlock()

		for _, resp := range s.handle(req) {
			if err := s.tr.Send(resp); err != nil {
				return
			}
		}
	}
}

func (s *fakeServer) requests() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.seen...)
}

func (s *fakeServer) responses() (lm, nt []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lm, s.nt
}

func (s *fakeServer) reply(req *Message, status smb.NTStatus, params, data []byte) []byte {
	h := req.Header
	h.Flags |= FlagsResponse
	h.Status = uint32(status)
	if !s.unicode {
		h.Flags2 &^= Flags2Unicode
	}
	m := &Message{Header: h, Params: params, Data: data}
	buf, err := m.Marshal()
	if err != nil {
		s.t.Errorf("server: marshal: %v", err)
	}
	return buf
}

func (s *fakeServer) fail(req *Message, status smb.NTStatus) [][]byte {
	return [][]byte{s.reply(req, status, nil, nil)}
}

func (s *fakeServer) handle(req *Message) [][]byte {
	switch req.Header.Command {
	case CommandNegotiate:
		return s.negotiate(req)
	case CommandSessionSetupAndX:
		return s.sessionSetup(req)
	case CommandTreeConnectAndX:
		return s.treeConnect(req)
	case CommandNTCreateAndX, CommandCreate:
		return s.create(req)
	case CommandClose:
		fid := encoding.Uint16LE(req.Params)
		s.mu.Lock()
		_, ok := s.files[fid]
		delete(s.files, fid)
		s.mu.Unlock()
		if !ok {
			return s.fail(req, smb.StatusInvalidHandle)
		}
		return [][]byte{s.reply(req, smb.StatusSuccess, nil, nil)}
	case CommandEcho:
		return s.echo(req)
	case CommandTreeDisconnect:
		return [][]byte{s.reply(req, smb.StatusSuccess, nil, nil)}
	case CommandLogoffAndX:
		return [][]byte{s.reply(req, smb.StatusSuccess, []byte{0xFF, 0, 0, 0}, nil)}
	default:
		return s.fail(req, smb.StatusNotSupported)
	}
}

func (s *fakeServer) negotiate(req *Message) [][]byte {
	index := uint16(noDialect)
	var i uint16
	for rest := req.Data; len(rest) > 0; i++ {
		name, n, _ := encoding.NullTerminatedOEM(rest[1:])
		if name == s.dialect {
			index = i
		}
		rest = rest[1+n:]
	}
	if index == noDialect {
		return [][]byte{s.reply(req, smb.StatusSuccess, []byte{0xFF, 0xFF}, nil)}
	}

	caps := s.capabilities
	if s.extSec {
		caps |= CapExtendedSec
	}

	params := make([]byte, negotiateWordCount*2)
	encoding.PutUint16LE(params[0:], index)
	params[2] = s.securityMode
	encoding.PutUint16LE(params[3:], 50)
	encoding.PutUint16LE(params[5:], 1)
	encoding.PutUint32LE(params[7:], 16644)
	encoding.PutUint32LE(params[11:], 65536)
	encoding.PutUint32LE(params[15:], 0xCAFE)
	encoding.PutUint32LE(params[19:], caps)
	encoding.PutUint64LE(params[23:], 133000000000000000)

	var data []byte
	if s.extSec {
		data = make([]byte, serverGUIDSize)
	} else {
		params[33] = uint8(len(s.challenge))
		data = append(data, s.challenge...)
		data = append(data, s.str("CORP")...)
		data = append(data, s.str("SERVER")...)
	}
	return [][]byte{s.reply(req, smb.StatusSuccess, params, data)}
}

func (s *fakeServer) str(v string) []byte {
	if s.unicode {
		return encoding.ToUTF16LEWithNull(v)
	}
	return encoding.ToOEMWithNull(v)
}

func (s *fakeServer) sessionSetup(req *Message) [][]byte {
	var lm, nt []byte
	switch req.WordCount() {
	case sessionSetupWordCount:
		br := newByteReader(req, s.unicode)
		lm, _ = br.next(int(encoding.Uint16LE(req.Params[14:])))
		nt, _ = br.next(int(encoding.Uint16LE(req.Params[16:])))
	case sessionSetupExtWordCount:
		blob := req.Data[:encoding.Uint16LE(req.Params[14:])]
		if encoding.Uint32LE(blob[8:12]) == auth.NtLmNegotiate {
			h := req.Header
			h.UID = testUID
			req.Header = h
			params := []byte{0xFF, 0, 0, 0, 0, 0, 0, 0}
			challenge := buildChallengeBlob(s.challenge)
			encoding.PutUint16LE(params[6:], uint16(len(challenge)))
			return [][]byte{s.reply(req, smb.StatusMoreProcessingRequired, params, challenge)}
		}
		field := func(i int) []byte {
			l := encoding.Uint16LE(blob[12+i*8:])
			off := encoding.Uint32LE(blob[16+i*8:])
			return blob[off : off+uint32(l)]
		}
		lm, nt = field(0), field(1)
	default:
		return s.fail(req, smb.StatusInvalidParameter)
	}

	s.mu.Lock()
	s.lm, s.nt = lm, nt
	s.mu.Unlock()

	want, _ := auth.NTLMResponse(auth.NTHash(s.password), s.challenge)
	if string(nt) != string(want) {
		return s.fail(req, smb.StatusLogonFailure)
	}

	req.Header.UID = testUID
	wc := 3
	if req.WordCount() == sessionSetupExtWordCount {
		wc = 4
	}
	params := make([]byte, wc*2)
	params[0] = andxNone
	data := newByteBlock(wc, s.unicode)
	data.str("Unix")
	data.str("Samba")
	data.str("CORP")
	return [][]byte{s.reply(req, smb.StatusSuccess, params, data.buf)}
}

func buildChallengeBlob(challenge []byte) []byte {
	buf := make([]byte, 48)
	copy(buf, "NTLMSSP\x00")
	encoding.PutUint32LE(buf[8:], auth.NtLmChallenge)
	encoding.PutUint32LE(buf[20:], auth.NtlmsspNegotiateUnicode|auth.NtlmsspNegotiateNTLM)
	copy(buf[24:32], challenge)
	return buf
}

func (s *fakeServer) treeConnect(req *Message) [][]byte {
	br := newByteReader(req, s.unicode)
	if _, err := br.next(int(encoding.Uint16LE(req.Params[6:]))); err != nil {
		return s.fail(req, smb.StatusInvalidParameter)
	}
	path := br.str(true)
	if br.oem() != ServiceAny {
		return s.fail(req, smb.StatusInvalidParameter)
	}

	tid, ok := s.shares[path]
	if !ok {
		return s.fail(req, smb.StatusBadNetworkName)
	}
	req.Header.TID = tid

	params := make([]byte, 14)
	params[0] = andxNone
	encoding.PutUint16LE(params[4:], SupportSearchBits)
	encoding.PutUint32LE(params[6:], GenericAll)
	encoding.PutUint32LE(params[10:], GenericRead)
	data := newByteBlock(7, s.unicode)
	data.oem(ServiceDisk)
	data.str("NTFS")
	return [][]byte{s.reply(req, smb.StatusSuccess, params, data.buf)}
}

func (s *fakeServer) create(req *Message) [][]byte {
	br := newByteReader(req, s.unicode)
	if req.Header.Command == CommandCreate {
		br.next(1)
	}
	name := br.str(true)

	switch name {
	case "missing.txt":
		return s.fail(req, smb.StatusObjectNameNotFound)
	case "denied.txt":
		return s.fail(req, smb.StatusAccessDenied)
	case "exists.txt":
		return s.fail(req, smb.StatusObjectNameCollision)
	}

	s.mu.Lock()
	s.nextFID++
	fid := s.nextFID
	s.files[fid] = name
	s.mu.Unlock()

	if req.Header.Command == CommandCreate {
		params := make([]byte, 2)
		encoding.PutUint16LE(params, fid)
		return [][]byte{s.reply(req, smb.StatusSuccess, params, nil)}
	}
	params := make([]byte, ntCreateRespMinWords*2)
	params[0] = andxNone
	encoding.PutUint16LE(params[5:], fid)
	encoding.PutUint32LE(params[7:], FileCreated)
	return [][]byte{s.reply(req, smb.StatusSuccess, params, nil)}
}

func (s *fakeServer) echo(req *Message) [][]byte {
	s.mu.Lock()
	s.echoes++
	first := s.echoes == 1
	s.mu.Unlock()

	if first && s.echoDelay > 0 {
		time.Sleep(s.echoDelay)
	}

	data := req.Data
	if s.echoShort && len(data) > 0 {
		data = data[:len(data)-1]
	}
	resp := s.reply(req, smb.StatusSuccess, []byte{1, 0}, data)

	if s.echoBatch == 0 {
		return [][]byte{resp}
	}
	s.echoQueued = append(s.echoQueued, req)
	if len(s.echoQueued) < s.echoBatch {
		return nil
	}
	var out [][]byte
	for i := len(s.echoQueued) - 1; i >= 0; i-- {
		q := s.echoQueued[i]
		out = append(out, s.reply(q, smb.StatusSuccess, []byte{1, 0}, q.Data))
	}
	s.echoQueued = nil
	return out
}

// recordingFramer counts sends and never answers.
type recordingFramer struct {
	mu     sync.Mutex
	sent   [][]byte
	closed chan struct{}
	once   sync.Once
}

func newRecordingFramer() *recordingFramer {
	return &recordingFramer{closed: make(chan struct{})}
}

func (f *recordingFramer) Send(msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), msg...))
	return nil
}

func (f *recordingFramer) Receive() ([]byte, error) {
	<-f.closed
	return nil, smb.ErrPoisoned
}

func (f *recordingFramer) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *recordingFramer) sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

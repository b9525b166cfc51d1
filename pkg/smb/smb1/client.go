// Client provides SMB1 protocol client functionality
package smb1

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/ineffectivecoder/smolder/pkg/auth"
	"github.com/ineffectivecoder/smolder/pkg/smb"
)

// clientMaxBufferSize is the largest message this client accepts.
const clientMaxBufferSize = 16644

// clientCapabilities are offered in session setup, masked by the server's.
const clientCapabilities = CapUnicode | CapNTStatusCodes | CapNTSMBs | CapLargeFiles

// Client represents an SMB1 client
type Client struct {
	framer smb.Framer
	cfg    Config
	log    logrus.FieldLogger

	wmu     sync.Mutex
	sem     *semaphore.Weighted
	pending *pendingTable

	mu sync.Mutex
	st state

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewClient starts a client on an established framer. The client owns the
// framer from here on.
func NewClient(framer smb.Framer, cfg Config) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		framer:  framer,
		cfg:     cfg,
		log:     cfg.Logger,
		sem:     semaphore.NewWeighted(int64(cfg.MaxPending)),
		pending: newPendingTable(),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dial connects to host:port and returns a client in the Disconnected phase.
func Dial(ctx context.Context, host string, port int, cfg Config) (*Client, error) {
	t, err := smb.DialWithConfig(ctx, host, port, smb.TransportConfig{
		Timeout:   cfg.Timeout,
		Socks5URL: cfg.Socks5URL,
	})
	if err != nil {
		return nil, err
	}
	return NewClient(t, cfg), nil
}

// Close tears down the connection. Calls in flight fail with ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.pending.failAll(ErrClosed)
		c.closeErr = c.framer.Close()
		<-c.done
	})
	return c.closeErr
}

// readLoop delivers responses to waiters by mid until the framer fails.
func (c *Client) readLoop() {
	defer close(c.done)
	for {
		buf, err := c.framer.Receive()
		if err != nil {
			c.pending.failAll(fmt.Errorf("%w: %w", ErrClosed, err))
			c.framer.Close()
			return
		}

		msg, err := ParseMessage(buf)
		if err != nil {
			var hdr Header
			if errors.Is(err, ErrLengthMismatch) && hdr.Unmarshal(buf) == nil {
				// The frame boundary is intact; only this exchange is lost.
				c.pending.deliver(hdr.MID, result{err: err})
				continue
			}
			c.log.WithError(err).Warn("unparseable message, closing connection")
			c.pending.failAll(fmt.Errorf("%w: %w", ErrClosed, err))
			c.framer.Close()
			return
		}

		if !msg.Header.IsResponse() {
			c.log.WithField("command", msg.Header.Command).Debug("dropping non-response message")
			continue
		}
		if !c.pending.deliver(msg.Header.MID, result{msg: msg}) {
			c.log.WithFields(logrus.Fields{
				"command": msg.Header.Command,
				"mid":     msg.Header.MID,
			}).Debug("dropping response with no waiter")
		}
	}
}

type request interface {
	Marshal() ([]byte, error)
}

// newHeader stamps the configured pid and the negotiated string mode.
func (c *Client) newHeader(cmd Command, uid, tid uint16) *Header {
	h := NewHeader(cmd, 0)
	h.SetPID(c.cfg.PID)
	h.UID = uid
	h.TID = tid

	c.mu.Lock()
	neg := c.st.negotiation
	c.mu.Unlock()

	switch {
	case neg == nil:
		if c.cfg.ExtendedSecurity {
			h.Flags2 |= Flags2ExtendedSec
		}
	default:
		if !neg.Unicode {
			h.Flags2 &^= Flags2Unicode
		}
		if neg.ExtendedSecurity {
			h.Flags2 |= Flags2ExtendedSec
		}
	}
	return h
}

// roundTrip sends one request and waits for the response with the same mid.
func (c *Client) roundTrip(ctx context.Context, hdr *Header, req request) (*Message, error) {
	cmd := hdr.Command.String()
	start := time.Now()
	c.cfg.Metrics.RequestStarted(cmd)

	msg, err := c.exchange(ctx, hdr, req)

	c.cfg.Metrics.ObserveRequest(cmd, outcome(msg, err), time.Since(start))
	return msg, err
}

func (c *Client) exchange(ctx context.Context, hdr *Header, req request) (*Message, error) {
	body, err := req.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", hdr.Command, err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, c.waitError(ctx, hdr, 0)
	}
	defer c.sem.Release(1)

	mid, ch, err := c.pending.register()
	if err != nil {
		return nil, err
	}
	hdr.MID = mid

	log := c.log.WithFields(logrus.Fields{
		"command": hdr.Command,
		"mid":     mid,
		"uid":     hdr.UID,
		"tid":     hdr.TID,
	})
	log.Debug("sending request")

	c.wmu.Lock()
	err = c.framer.Send(append(hdr.Marshal(), body...))
	c.wmu.Unlock()
	if err != nil {
		c.pending.cancel(mid)
		// A partial write leaves the stream unusable.
		c.pending.failAll(fmt.Errorf("%w: %w", ErrClosed, err))
		c.framer.Close()
		return nil, fmt.Errorf("%s: %w", hdr.Command, err)
	}

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("%s: %w", hdr.Command, r.err)
		}
		if r.msg.Header.Command != hdr.Command {
			return nil, fmt.Errorf("%w: sent %s, got %s", ErrUnknownCommand, hdr.Command, r.msg.Header.Command)
		}
		log.WithField("status", responseStatus(&r.msg.Header)).Debug("received response")
		return r.msg, nil
	case <-ctx.Done():
		c.pending.cancel(mid)
		return nil, c.waitError(ctx, hdr, mid)
	}
}

func (c *Client) waitError(ctx context.Context, hdr *Header, mid uint16) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s mid %d", ErrTimeout, hdr.Command, mid)
	}
	return fmt.Errorf("%s: %w", hdr.Command, ctx.Err())
}

// outcome labels a finished request for metrics.
func outcome(msg *Message, err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, smb.ErrProtocol):
		return "protocol_error"
	case err != nil:
		return "io_error"
	case !responseStatus(&msg.Header).IsSuccess():
		return "remote_error"
	default:
		return "ok"
	}
}

// Negotiate offers NT LM 0.12 and records the server's answer.
func (c *Client) Negotiate(ctx context.Context) (*Negotiation, error) {
	c.mu.Lock()
	err := c.st.beginNegotiate()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var neg *Negotiation
	defer func() {
		c.mu.Lock()
		c.st.endNegotiate(neg)
		c.mu.Unlock()
	}()

	dialects := []string{DialectNTLM012}
	hdr := c.newHeader(CommandNegotiate, 0, 0)
	msg, err := c.roundTrip(ctx, hdr, &NegotiateRequest{Dialects: dialects})
	if err != nil {
		return nil, fmt.Errorf("negotiate failed: %w", err)
	}
	if err := statusError(CommandNegotiate, &msg.Header); err != nil {
		return nil, err
	}

	resp, err := DecodeResponse(CommandNegotiate, msg, msg.Header.Unicode())
	if err != nil {
		return nil, err
	}
	negResp := resp.(*NegotiateResponse)
	if int(negResp.DialectIndex) >= len(dialects) {
		return nil, fmt.Errorf("%w: index %d of %d offered", ErrDialectRejected, negResp.DialectIndex, len(dialects))
	}

	neg = newNegotiation(negResp, dialects[negResp.DialectIndex])
	if neg.ExtendedSecurity && !c.cfg.ExtendedSecurity {
		// Servers only pick NTLMSSP when asked; treat a stray bit as absent.
		neg.ExtendedSecurity = false
	}

	c.log.WithFields(logrus.Fields{
		"dialect":      neg.Dialect,
		"security":     fmt.Sprintf("0x%02x", neg.SecurityMode),
		"capabilities": fmt.Sprintf("0x%08x", neg.Capabilities),
		"unicode":      neg.Unicode,
		"extsec":       neg.ExtendedSecurity,
	}).Debug("negotiated")
	if neg.SigningRequired() {
		c.log.Warn("server requires message signing, which is not supported")
	}

	return neg.clone(), nil
}

// Authenticate logs on with a password. Empty username and password give
// an anonymous session.
func (c *Client) Authenticate(ctx context.Context, username, password, domain string) (*Session, error) {
	var creds auth.Credentials
	if username == "" && password == "" {
		creds = auth.NewAnonymousCredentials()
	} else {
		creds = auth.NewPasswordCredentials(domain, username, password)
	}
	return c.AuthenticateWith(ctx, creds)
}

// AuthenticateWith logs on with any credentials the configured hasher handles.
func (c *Client) AuthenticateWith(ctx context.Context, creds auth.Credentials) (*Session, error) {
	c.mu.Lock()
	neg, err := c.st.beginAuthenticate()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var sess *Session
	defer func() {
		c.mu.Lock()
		c.st.endAuthenticate(sess)
		c.mu.Unlock()
	}()

	if !neg.EncryptsPasswords() {
		return nil, fmt.Errorf("%w: server requires plaintext passwords", smb.ErrNotSupported)
	}

	if neg.ExtendedSecurity {
		sess, err = c.sessionSetupNTLMSSP(ctx, neg, creds)
	} else {
		sess, err = c.sessionSetupLM(ctx, neg, creds)
	}
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"uid":   sess.UID,
		"user":  creds.Username(),
		"guest": sess.Guest,
	}).Debug("authenticated")

	out := *sess
	out.SessionKey = append([]byte(nil), sess.SessionKey...)
	return &out, nil
}

func (c *Client) sessionCapabilities(neg *Negotiation) uint32 {
	return clientCapabilities & neg.Capabilities
}

func (c *Client) maxMpx(neg *Negotiation) uint16 {
	n := uint16(min(c.cfg.MaxPending, 0xFFFF))
	if neg.MaxMpxCount != 0 && neg.MaxMpxCount < n {
		n = neg.MaxMpxCount
	}
	return n
}

func (c *Client) sessionSetupLM(ctx context.Context, neg *Negotiation, creds auth.Credentials) (*Session, error) {
	if len(neg.Challenge) != auth.ChallengeSize {
		return nil, fmt.Errorf("%w: server challenge is %d bytes", ErrInvalidResponse, len(neg.Challenge))
	}

	responses, err := c.cfg.Hasher.ChallengeResponse(creds, neg.Challenge)
	if err != nil {
		return nil, fmt.Errorf("computing challenge response: %w", err)
	}

	req := &SessionSetupRequest{
		MaxBufferSize: clientMaxBufferSize,
		MaxMpxCount:   c.maxMpx(neg),
		VcNumber:      1,
		SessionKey:    neg.SessionKey,
		Capabilities:  c.sessionCapabilities(neg),
		LMResponse:    responses.LM,
		NTResponse:    responses.NT,
		Account:       creds.Username(),
		PrimaryDomain: creds.Domain(),
		NativeOS:      c.cfg.NativeOS,
		NativeLanMan:  c.cfg.NativeLanMan,
		Unicode:       neg.Unicode,
	}

	msg, err := c.roundTrip(ctx, c.newHeader(CommandSessionSetupAndX, 0, 0), req)
	if err != nil {
		return nil, fmt.Errorf("session setup failed: %w", err)
	}
	if err := authStatusError(creds, &msg.Header); err != nil {
		return nil, err
	}

	r, err := decodeSessionSetup(msg, neg.Unicode)
	if err != nil {
		return nil, err
	}
	return newSession(msg.Header.UID, responses.SessionKey, creds, r), nil
}

func (c *Client) sessionSetupNTLMSSP(ctx context.Context, neg *Negotiation, creds auth.Credentials) (*Session, error) {
	req := &SessionSetupExtRequest{
		MaxBufferSize: clientMaxBufferSize,
		MaxMpxCount:   c.maxMpx(neg),
		VcNumber:      1,
		SessionKey:    neg.SessionKey,
		Capabilities:  c.sessionCapabilities(neg) | CapExtendedSec,
		SecurityBlob:  auth.NewNegotiateMessage().Marshal(),
		NativeOS:      c.cfg.NativeOS,
		NativeLanMan:  c.cfg.NativeLanMan,
		Unicode:       neg.Unicode,
	}

	msg, err := c.roundTrip(ctx, c.newHeader(CommandSessionSetupAndX, 0, 0), req)
	if err != nil {
		return nil, fmt.Errorf("session setup failed: %w", err)
	}
	if status := responseStatus(&msg.Header); status != smb.StatusMoreProcessingRequired {
		if err := authStatusError(creds, &msg.Header); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: server accepted NTLMSSP negotiate without a challenge", ErrInvalidResponse)
	}

	r, err := decodeSessionSetup(msg, neg.Unicode)
	if err != nil {
		return nil, err
	}
	challenge, err := auth.ParseChallengeMessage(r.SecurityBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	am, err := auth.NewAuthenticateMessage(challenge, creds, c.cfg.Hasher, "")
	if err != nil {
		if errors.Is(err, auth.ErrExtendedSessionSecurity) {
			return nil, fmt.Errorf("%w: %w", smb.ErrNotSupported, err)
		}
		return nil, fmt.Errorf("building NTLMSSP authenticate: %w", err)
	}

	req.SecurityBlob = am.Marshal()
	uid := msg.Header.UID
	msg, err = c.roundTrip(ctx, c.newHeader(CommandSessionSetupAndX, uid, 0), req)
	if err != nil {
		return nil, fmt.Errorf("session setup failed: %w", err)
	}
	if err := authStatusError(creds, &msg.Header); err != nil {
		return nil, err
	}

	r, err = decodeSessionSetup(msg, neg.Unicode)
	if err != nil {
		return nil, err
	}
	return newSession(msg.Header.UID, am.SessionBaseKey, creds, r), nil
}

func decodeSessionSetup(msg *Message, unicode bool) (*SessionSetupResponse, error) {
	resp, err := DecodeResponse(CommandSessionSetupAndX, msg, unicode)
	if err != nil {
		return nil, err
	}
	return resp.(*SessionSetupResponse), nil
}

// authStatusError reports refused credentials as *smb.AuthenticationError.
func authStatusError(creds auth.Credentials, h *Header) error {
	status := responseStatus(h)
	if status.IsSuccess() {
		return nil
	}
	if status.IsLogonFailure() {
		return &smb.AuthenticationError{
			Domain:   creds.Domain(),
			Username: creds.Username(),
			Status:   status,
		}
	}
	return statusError(CommandSessionSetupAndX, h)
}

func newSession(uid uint16, key []byte, creds auth.Credentials, r *SessionSetupResponse) *Session {
	return &Session{
		UID:           uid,
		SessionKey:    key,
		Guest:         r.IsGuestLogon(),
		Username:      creds.Username(),
		Domain:        creds.Domain(),
		NativeOS:      r.NativeOS,
		NativeLanMan:  r.NativeLanMan,
		PrimaryDomain: r.PrimaryDomain,
	}
}

// TreeConnect connects to a share given as \\server\share and returns its tid.
func (c *Client) TreeConnect(ctx context.Context, path string) (uint16, error) {
	c.mu.Lock()
	neg, sess, err := c.st.requireSession()
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if err := validateSharePath(path); err != nil {
		return 0, err
	}

	req := &TreeConnectRequest{
		Flags:    TreeConnectExtendedResponse,
		Password: []byte{0},
		Path:     path,
		Service:  ServiceAny,
		Unicode:  neg.Unicode,
	}

	msg, err := c.roundTrip(ctx, c.newHeader(CommandTreeConnectAndX, sess.UID, 0), req)
	if err != nil {
		return 0, fmt.Errorf("tree connect failed: %w", err)
	}
	if err := statusError(CommandTreeConnectAndX, &msg.Header); err != nil {
		return 0, fmt.Errorf("tree connect %s: %w", path, err)
	}

	resp, err := DecodeResponse(CommandTreeConnectAndX, msg, neg.Unicode)
	if err != nil {
		return 0, err
	}
	tr := resp.(*TreeConnectResponse)

	tree := Tree{
		TID:                msg.Header.TID,
		Path:               path,
		Service:            tr.Service,
		NativeFileSystem:   tr.NativeFileSystem,
		OptionalSupport:    tr.OptionalSupport,
		MaximalAccess:      tr.MaximalAccess,
		GuestMaximalAccess: tr.GuestMaximalAccess,
	}

	c.mu.Lock()
	err = c.st.addTree(sess.UID, tree)
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}

	c.log.WithFields(logrus.Fields{"tid": tree.TID, "path": path, "service": tree.Service}).Debug("tree connected")
	return tree.TID, nil
}

// CreateFile opens or creates name on tree tid and returns its fid. Servers
// without NT SMBs only support FileSupersede and FileOverwriteIf.
func (c *Client) CreateFile(ctx context.Context, tid uint16, name string, desiredAccess, disposition uint32) (uint16, error) {
	c.mu.Lock()
	_, err := c.st.tree(tid)
	neg, sess := c.st.negotiation, c.st.session
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}

	var (
		fid    uint16
		action uint32
	)
	if neg.HasCapability(CapNTSMBs) {
		fid, action, err = c.ntCreate(ctx, neg, sess.UID, tid, name, desiredAccess, disposition)
	} else {
		fid, err = c.coreCreate(ctx, neg, sess.UID, tid, name, disposition)
		action = FileCreated
	}
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	err = c.st.addFile(tid, FileHandle{
		FID:           fid,
		TID:           tid,
		Name:          name,
		GrantedAccess: desiredAccess,
		CreateAction:  action,
	})
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}

	c.log.WithFields(logrus.Fields{"tid": tid, "fid": fid, "name": name}).Debug("file opened")
	return fid, nil
}

func (c *Client) ntCreate(ctx context.Context, neg *Negotiation, uid, tid uint16, name string, desiredAccess, disposition uint32) (uint16, uint32, error) {
	req := &NTCreateRequest{
		DesiredAccess:      desiredAccess,
		ExtFileAttributes:  AttrNormal,
		ShareAccess:        FileShareRead | FileShareWrite,
		CreateDisposition:  disposition,
		CreateOptions:      FileNonDirectoryFile,
		ImpersonationLevel: SecurityImpersonation,
		FileName:           name,
		Unicode:            neg.Unicode,
	}

	msg, err := c.roundTrip(ctx, c.newHeader(CommandNTCreateAndX, uid, tid), req)
	if err != nil {
		return 0, 0, fmt.Errorf("create file failed: %w", err)
	}
	if err := statusError(CommandNTCreateAndX, &msg.Header); err != nil {
		return 0, 0, fmt.Errorf("create %s: %w", name, err)
	}

	resp, err := DecodeResponse(CommandNTCreateAndX, msg, neg.Unicode)
	if err != nil {
		return 0, 0, err
	}
	r := resp.(*NTCreateResponse)
	return r.FID, r.CreateAction, nil
}

func (c *Client) coreCreate(ctx context.Context, neg *Negotiation, uid, tid uint16, name string, disposition uint32) (uint16, error) {
	if disposition != FileSupersede && disposition != FileOverwriteIf {
		return 0, fmt.Errorf("%w: disposition %d needs NT SMBs", smb.ErrNotSupported, disposition)
	}

	req := &CreateRequest{
		FileAttributes: uint16(AttrNormal),
		FileName:       name,
		Unicode:        neg.Unicode,
	}

	msg, err := c.roundTrip(ctx, c.newHeader(CommandCreate, uid, tid), req)
	if err != nil {
		return 0, fmt.Errorf("create file failed: %w", err)
	}
	if err := statusError(CommandCreate, &msg.Header); err != nil {
		return 0, fmt.Errorf("create %s: %w", name, err)
	}

	resp, err := DecodeResponse(CommandCreate, msg, neg.Unicode)
	if err != nil {
		return 0, err
	}
	return resp.(*CreateResponse).FID, nil
}

// CloseFile closes fid on tree tid. The fid is forgotten before the request
// is sent, so it is unusable afterwards even if the server reports an error.
func (c *Client) CloseFile(ctx context.Context, tid, fid uint16) error {
	c.mu.Lock()
	err := c.st.removeFile(tid, fid)
	sess := c.st.session
	c.mu.Unlock()
	if err != nil {
		return err
	}

	req := &CloseRequest{
		FID:           fid,
		LastWriteTime: lastWriteUnchanged,
	}

	msg, err := c.roundTrip(ctx, c.newHeader(CommandClose, sess.UID, tid), req)
	if err != nil {
		return fmt.Errorf("close file failed: %w", err)
	}
	if err := statusError(CommandClose, &msg.Header); err != nil {
		return err
	}
	_, err = DecodeResponse(CommandClose, msg, false)
	return err
}

// Echo sends payload and returns the server's copy. Only negotiation is
// required. Timed out attempts are retried up to Config.EchoRetries times.
func (c *Client) Echo(ctx context.Context, payload []byte) ([]byte, error) {
	c.mu.Lock()
	_, err := c.st.requireNegotiated()
	var uid uint16
	if c.st.session != nil {
		uid = c.st.session.UID
	}
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(payload) > maxByteCount {
		return nil, fmt.Errorf("%w: echo payload of %d bytes", smb.ErrInvalidParameter, len(payload))
	}

	req := &EchoRequest{EchoCount: 1, Data: payload}

	var msg *Message
	for attempt := 0; ; attempt++ {
		msg, err = c.roundTrip(ctx, c.newHeader(CommandEcho, uid, echoTID), req)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrTimeout) || ctx.Err() != nil || attempt >= c.cfg.EchoRetries {
			return nil, fmt.Errorf("echo failed: %w", err)
		}
		c.log.WithField("attempt", attempt+1).Debug("echo timed out, retrying")
	}

	if err := statusError(CommandEcho, &msg.Header); err != nil {
		return nil, err
	}
	resp, err := DecodeResponse(CommandEcho, msg, false)
	if err != nil {
		return nil, err
	}
	data := resp.(*EchoResponse).Data
	if len(data) != len(payload) {
		return nil, fmt.Errorf("%w: echo returned %d bytes, sent %d", ErrInvalidResponse, len(data), len(payload))
	}
	return data, nil
}

// TreeDisconnect disconnects from a share. The tid and its fids are
// forgotten before the request is sent.
func (c *Client) TreeDisconnect(ctx context.Context, tid uint16) error {
	c.mu.Lock()
	err := c.st.removeTree(tid)
	sess := c.st.session
	c.mu.Unlock()
	if err != nil {
		return err
	}

	msg, err := c.roundTrip(ctx, c.newHeader(CommandTreeDisconnect, sess.UID, tid), &TreeDisconnectRequest{})
	if err != nil {
		return fmt.Errorf("tree disconnect failed: %w", err)
	}
	if err := statusError(CommandTreeDisconnect, &msg.Header); err != nil {
		return err
	}
	_, err = DecodeResponse(CommandTreeDisconnect, msg, false)
	return err
}

// Logoff ends the session and returns the client to Negotiated.
func (c *Client) Logoff(ctx context.Context) error {
	c.mu.Lock()
	uid, err := c.st.logoff()
	c.mu.Unlock()
	if err != nil {
		return err
	}

	msg, err := c.roundTrip(ctx, c.newHeader(CommandLogoffAndX, uid, 0), &LogoffRequest{})
	if err != nil {
		return fmt.Errorf("logoff failed: %w", err)
	}
	if err := statusError(CommandLogoffAndX, &msg.Header); err != nil {
		return err
	}
	_, err = DecodeResponse(CommandLogoffAndX, msg, false)
	return err
}

// Phase returns the current connection phase.
func (c *Client) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.phase()
}

// Negotiation returns a copy of the negotiated parameters, or nil.
func (c *Client) Negotiation() *Negotiation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.negotiation == nil {
		return nil
	}
	return c.st.negotiation.clone()
}

// Session returns a copy of the current session, or nil.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.session == nil {
		return nil
	}
	s := *c.st.session
	s.SessionKey = append([]byte(nil), s.SessionKey...)
	return &s
}

// Tree returns a snapshot of a connected tree.
func (c *Client) Tree(tid uint16) (Tree, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.st.trees[tid]
	if !ok {
		return Tree{}, false
	}
	return t.snapshot(), true
}

// Trees returns snapshots of all connected trees, ordered by tid.
func (c *Client) Trees() []Tree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st.snapshotTrees()
}

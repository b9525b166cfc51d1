package smb1

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ineffectivecoder/smolder/pkg/metrics"
	"github.com/ineffectivecoder/smolder/pkg/smb"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestEndToEnd(t *testing.T) {
	tests := []struct {
		name    string
		unicode bool
		ntSMBs  bool
	}{
		{"unicode NT create", true, true},
		{"OEM NT create", false, true},
		{"unicode core create", true, false},
		{"OEM core create", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newFakeServer(t)
			srv.unicode = tt.unicode
			if !tt.unicode {
				srv.capabilities &^= CapUnicode
			}
			if !tt.ntSMBs {
				srv.capabilities &^= CapNTSMBs
			}
			c := srv.start(testConfig())
			ctx := context.Background()

			neg, err := c.Negotiate(ctx)
			require.NoError(t, err)
			assert.Equal(t, uint16(0), neg.DialectIndex)
			assert.Equal(t, DialectNTLM012, neg.Dialect)
			assert.Equal(t, tt.unicode, neg.Unicode)
			assert.Equal(t, "CORP", neg.DomainName)
			assert.Equal(t, "SERVER", neg.ServerName)
			assert.Equal(t, PhaseNegotiated, c.Phase())

			sess, err := c.Authenticate(ctx, "alice", "secret", "CORP")
			require.NoError(t, err)
			assert.Equal(t, uint16(testUID), sess.UID)
			assert.Equal(t, "25ee06323ac15264cf82397711ef38df", hex.EncodeToString(sess.SessionKey))
			assert.Equal(t, "Unix", sess.NativeOS)
			assert.Equal(t, PhaseAuthenticated, c.Phase())

			lm, nt := srv.responses()
			assert.Equal(t, "c111c2a66ed3958252305236d23c74292f85252cc731bb25", hex.EncodeToString(lm))
			assert.Equal(t, "11ac21950b4d6a3ad07257471579c60a1ae5996fdaf65663", hex.EncodeToString(nt))

			tid, err := c.TreeConnect(ctx, `\\server\share`)
			require.NoError(t, err)
			assert.NotZero(t, tid)
			assert.Equal(t, PhaseTreeConnected, c.Phase())

			tree, ok := c.Tree(tid)
			require.True(t, ok)
			assert.Equal(t, ServiceDisk, tree.Service)
			assert.Equal(t, "NTFS", tree.NativeFileSystem)
			assert.Equal(t, GenericAll, tree.MaximalAccess)

			fid, err := c.CreateFile(ctx, tid, "test.txt", GenericRead|GenericWrite, FileOverwriteIf)
			require.NoError(t, err)
			assert.NotZero(t, fid)

			tree, _ = c.Tree(tid)
			require.Len(t, tree.Files, 1)
			assert.Equal(t, "test.txt", tree.Files[0].Name)

			require.NoError(t, c.CloseFile(ctx, tid, fid))
			err = c.CloseFile(ctx, tid, fid)
			assert.ErrorIs(t, err, ErrOutOfSequence)

			wantCmd := CommandNTCreateAndX
			if !tt.ntSMBs {
				wantCmd = CommandCreate
			}
			var sawCreate bool
			for _, req := range srv.requests() {
				if req.Header.Command == wantCmd {
					sawCreate = true
				}
				assert.Equal(t, DefaultPID, req.Header.PID())
				assert.Equal(t, tt.unicode || req.Header.Command == CommandNegotiate, req.Header.Unicode())
			}
			assert.True(t, sawCreate, "expected a %s request", wantCmd)
		})
	}
}

func TestExtendedSecurity(t *testing.T) {
	srv := newFakeServer(t)
	srv.extSec = true
	cfg := testConfig()
	cfg.ExtendedSecurity = true
	c := srv.start(cfg)
	ctx := context.Background()

	neg, err := c.Negotiate(ctx)
	require.NoError(t, err)
	require.True(t, neg.ExtendedSecurity)

	sess, err := c.Authenticate(ctx, "alice", "secret", "CORP")
	require.NoError(t, err)
	assert.Equal(t, uint16(testUID), sess.UID)

	_, nt := srv.responses()
	assert.Equal(t, "11ac21950b4d6a3ad07257471579c60a1ae5996fdaf65663", hex.EncodeToString(nt))

	var setups int
	for _, req := range srv.requests() {
		if req.Header.Command == CommandSessionSetupAndX {
			setups++
			assert.NotZero(t, req.Header.Flags2&Flags2ExtendedSec)
		}
	}
	assert.Equal(t, 2, setups)
}

func TestAuthenticationFailure(t *testing.T) {
	srv := newFakeServer(t)
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)

	_, err = c.Authenticate(ctx, "alice", "wrong-password", "CORP")
	require.Error(t, err)
	assert.ErrorIs(t, err, smb.ErrAuthFailed)

	var authErr *smb.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, smb.StatusLogonFailure, authErr.Status)
	assert.NotContains(t, err.Error(), "wrong-password")
	assert.Equal(t, PhaseNegotiated, c.Phase())

	// A failed logon leaves the client able to try again.
	_, err = c.Authenticate(ctx, "alice", "secret", "CORP")
	require.NoError(t, err)
}

func TestPlaintextServerRefused(t *testing.T) {
	srv := newFakeServer(t)
	srv.securityMode = SecurityModeUserLevel
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)

	_, err = c.Authenticate(ctx, "alice", "secret", "CORP")
	assert.ErrorIs(t, err, smb.ErrNotSupported)
}

func TestDialectRejected(t *testing.T) {
	srv := newFakeServer(t)
	srv.dialect = "SMB 2.002"
	c := srv.start(testConfig())

	_, err := c.Negotiate(context.Background())
	assert.ErrorIs(t, err, ErrDialectRejected)
	assert.ErrorIs(t, err, smb.ErrProtocol)
	assert.Equal(t, PhaseDisconnected, c.Phase())
}

func TestTreeConnectErrors(t *testing.T) {
	srv := newFakeServer(t)
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, "alice", "secret", "CORP")
	require.NoError(t, err)

	sent := len(srv.requests())
	_, err = c.TreeConnect(ctx, "share")
	assert.ErrorIs(t, err, smb.ErrInvalidParameter)
	assert.Equal(t, sent, len(srv.requests()), "invalid path must not reach the wire")

	_, err = c.TreeConnect(ctx, `\\server\nope`)
	assert.ErrorIs(t, err, smb.ErrShareNotFound)

	var statusErr *smb.NTStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, smb.StatusBadNetworkName, statusErr.Status)
	assert.Equal(t, PhaseAuthenticated, c.Phase())
}

func TestCreateFileErrors(t *testing.T) {
	srv := newFakeServer(t)
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, "alice", "secret", "CORP")
	require.NoError(t, err)
	tid, err := c.TreeConnect(ctx, `\\server\share`)
	require.NoError(t, err)

	tests := map[string]error{
		"missing.txt": smb.ErrNotFound,
		"denied.txt":  smb.ErrAccessDenied,
		"exists.txt":  smb.ErrAlreadyExists,
	}
	for name, want := range tests {
		_, err := c.CreateFile(ctx, tid, name, GenericRead, FileCreate)
		assert.ErrorIs(t, err, want, name)
	}

	tree, _ := c.Tree(tid)
	assert.Empty(t, tree.Files)
}

func TestCoreCreateDisposition(t *testing.T) {
	srv := newFakeServer(t)
	srv.capabilities &^= CapNTSMBs
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, "alice", "secret", "CORP")
	require.NoError(t, err)
	tid, err := c.TreeConnect(ctx, `\\server\share`)
	require.NoError(t, err)

	_, err = c.CreateFile(ctx, tid, "test.txt", GenericRead, FileOpen)
	assert.ErrorIs(t, err, smb.ErrNotSupported)
}

func TestStateGuardsSendNothing(t *testing.T) {
	f := newRecordingFramer()
	c := NewClient(f, testConfig())
	defer c.Close()
	ctx := context.Background()

	_, err := c.TreeConnect(ctx, `\\server\share`)
	assert.ErrorIs(t, err, ErrOutOfSequence)

	_, err = c.Authenticate(ctx, "alice", "secret", "CORP")
	assert.ErrorIs(t, err, ErrOutOfSequence)

	_, err = c.CreateFile(ctx, 1, "test.txt", GenericRead, FileOpen)
	assert.ErrorIs(t, err, ErrOutOfSequence)

	assert.ErrorIs(t, c.CloseFile(ctx, 1, 1), ErrOutOfSequence)
	assert.ErrorIs(t, c.TreeDisconnect(ctx, 1), ErrOutOfSequence)
	assert.ErrorIs(t, c.Logoff(ctx), ErrOutOfSequence)

	_, err = c.Echo(ctx, []byte("ping"))
	assert.ErrorIs(t, err, ErrOutOfSequence)

	assert.Zero(t, f.sends())
	assert.Equal(t, PhaseDisconnected, c.Phase())
}

func TestUnknownTidAndFid(t *testing.T) {
	srv := newFakeServer(t)
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)
	_, err = c.Negotiate(ctx)
	assert.ErrorIs(t, err, ErrOutOfSequence)

	_, err = c.Authenticate(ctx, "alice", "secret", "CORP")
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, "alice", "secret", "CORP")
	assert.ErrorIs(t, err, ErrOutOfSequence)

	tid, err := c.TreeConnect(ctx, `\\server\share`)
	require.NoError(t, err)

	sent := len(srv.requests())
	_, err = c.CreateFile(ctx, tid+1, "test.txt", GenericRead, FileOpenIf)
	assert.ErrorIs(t, err, ErrOutOfSequence)
	assert.ErrorIs(t, c.CloseFile(ctx, tid, 0x1234), ErrOutOfSequence)
	assert.Equal(t, sent, len(srv.requests()))
}

func TestEcho(t *testing.T) {
	srv := newFakeServer(t)
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)

	got, err := c.Echo(ctx, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	reqs := srv.requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, CommandEcho, last.Header.Command)
	assert.Equal(t, uint16(echoTID), last.Header.TID)
}

func TestEchoLengthMismatch(t *testing.T) {
	srv := newFakeServer(t)
	srv.echoShort = true
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)

	_, err = c.Echo(ctx, []byte("hello"))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestEchoRetriesAfterTimeout(t *testing.T) {
	srv := newFakeServer(t)
	srv.echoDelay = 400 * time.Millisecond
	cfg := testConfig()
	cfg.Timeout = 300 * time.Millisecond
	cfg.EchoRetries = 1
	c := srv.start(cfg)
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)

	got, err := c.Echo(ctx, []byte("again"))
	require.NoError(t, err)
	assert.Equal(t, []byte("again"), got)
	assert.Zero(t, c.pending.len(), "late response must not linger")
}

func TestEchoTimeoutWithoutRetries(t *testing.T) {
	srv := newFakeServer(t)
	srv.echoDelay = 400 * time.Millisecond
	cfg := testConfig()
	cfg.Timeout = 100 * time.Millisecond
	cfg.EchoRetries = 0
	c := srv.start(cfg)
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)

	_, err = c.Echo(ctx, []byte("x"))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, smb.ErrIO)
}

func TestPipelinedEchoes(t *testing.T) {
	const n = 4
	srv := newFakeServer(t)
	srv.echoBatch = n
	cfg := testConfig()
	cfg.MaxPending = n
	c := srv.start(cfg)
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		payload := []byte(fmt.Sprintf("payload-%d", i))
		g.Go(func() error {
			got, err := c.Echo(ctx, payload)
			if err != nil {
				return err
			}
			if string(got) != string(payload) {
				return fmt.Errorf("got %q, want %q", got, payload)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestTreeDisconnectAndLogoff(t *testing.T) {
	srv := newFakeServer(t)
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, "alice", "secret", "CORP")
	require.NoError(t, err)
	tid, err := c.TreeConnect(ctx, `\\server\share`)
	require.NoError(t, err)
	fid, err := c.CreateFile(ctx, tid, "test.txt", GenericRead, FileOpenIf)
	require.NoError(t, err)

	require.NoError(t, c.TreeDisconnect(ctx, tid))
	assert.Equal(t, PhaseAuthenticated, c.Phase())
	assert.ErrorIs(t, c.CloseFile(ctx, tid, fid), ErrOutOfSequence)
	assert.Empty(t, c.Trees())

	require.NoError(t, c.Logoff(ctx))
	assert.Equal(t, PhaseNegotiated, c.Phase())
	assert.Nil(t, c.Session())

	_, err = c.TreeConnect(ctx, `\\server\share`)
	assert.ErrorIs(t, err, ErrOutOfSequence)
}

func TestServerHangupFailsPending(t *testing.T) {
	srv := newFakeServer(t)
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)

	srv.tr.Close()

	_, err = c.Echo(ctx, []byte("x"))
	assert.Error(t, err)

	_, err = c.Echo(ctx, []byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClosedClient(t *testing.T) {
	f := newRecordingFramer()
	c := NewClient(f, testConfig())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	c.mu.Lock()
	c.st.negotiation = &Negotiation{}
	c.mu.Unlock()

	_, err := c.Echo(context.Background(), nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, f.sends())
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := newFakeServer(t)
	cfg := testConfig()
	cfg.Metrics = metrics.NewClientMetrics(reg)
	c := srv.start(cfg)
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, "alice", "nope", "CORP")
	require.Error(t, err)

	expected := `
# HELP smolder_requests_total Total number of SMB1 requests by command and outcome
# TYPE smolder_requests_total counter
smolder_requests_total{command="NEGOTIATE",outcome="ok"} 1
smolder_requests_total{command="SESSION_SETUP_ANDX",outcome="remote_error"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "smolder_requests_total"))
}

func TestPasswordNotInErrors(t *testing.T) {
	srv := newFakeServer(t)
	srv.challenge = srv.challenge[:4]
	c := srv.start(testConfig())
	ctx := context.Background()

	_, err := c.Negotiate(ctx)
	require.NoError(t, err)

	_, err = c.Authenticate(ctx, "alice", "hunter2", "CORP")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidResponse))
	assert.NotContains(t, err.Error(), "hunter2")
}

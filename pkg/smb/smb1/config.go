package smb1

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ineffectivecoder/smolder/pkg/auth"
	"github.com/ineffectivecoder/smolder/pkg/debug"
)

// DefaultPID is the process id written to request headers when none is configured.
const DefaultPID uint32 = 0xFEFF

// Metrics receives per-request observations. pkg/metrics.ClientMetrics
// implements it.
type Metrics interface {
	RequestStarted(command string)
	ObserveRequest(command, outcome string, d time.Duration)
}

// Config configures a Client
type Config struct {
	// PID is the opaque client process id placed in every header.
	PID uint32
	// Timeout bounds each request/response exchange. Zero waits forever.
	Timeout time.Duration
	// MaxPending is the number of requests allowed in flight at once.
	// 1 gives strict request/response.
	MaxPending int
	// EchoRetries is how many times Echo is resent after a timeout.
	EchoRetries int
	// ExtendedSecurity asks the server for NTLMSSP session setup.
	ExtendedSecurity bool

	NativeOS     string
	NativeLanMan string

	// Socks5URL is used by Dial only.
	Socks5URL string

	Logger  logrus.FieldLogger
	Metrics Metrics
	Hasher  auth.Hasher
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		PID:          DefaultPID,
		Timeout:      30 * time.Second,
		MaxPending:   1,
		EchoRetries:  2,
		NativeOS:     "Unix",
		NativeLanMan: "smolder",
		Logger:       debug.Logger(),
		Hasher:       auth.NTLMv1{},
	}
}

// withDefaults fills in zero fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PID == 0 {
		c.PID = def.PID
	}
	if c.MaxPending <= 0 {
		c.MaxPending = def.MaxPending
	}
	if c.EchoRetries < 0 {
		c.EchoRetries = 0
	}
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
	if c.Hasher == nil {
		c.Hasher = def.Hasher
	}
	return c
}

type noopMetrics struct{}

func (noopMetrics) RequestStarted(string)                        {}
func (noopMetrics) ObserveRequest(string, string, time.Duration) {}

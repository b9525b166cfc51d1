package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/mjwhitta/cli"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"github.com/ineffectivecoder/smolder/pkg/debug"
	"github.com/ineffectivecoder/smolder/pkg/metrics"
	"github.com/ineffectivecoder/smolder/pkg/smb/smb1"
)

// Version info
const Version = "0.1.0"

const smolderBanner = `
    )  (
   (   ) )     smolder v%s
    ) ( (      SMB1 / NT LM 0.12 client
  _______)_
 |_________|
`

// Colors for output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// Global state
var (
	verbose    bool
	client     *smb1.Client
	registry   *prometheus.Registry
	targetHost string
	currentTID uint16
)

func main() {
	var (
		configPath string
		flags      flagOverrides
		execCmd    string
	)

	cli.Align = true
	cli.Banner = "smolder [OPTIONS]"
	cli.Info("SMB1 client - negotiate, log on, connect to shares, open and close files")
	cli.Authors = []string{"smolder Team"}

	cli.Flag(&flags.target, "t", "target", "", "Target server IP/hostname")
	cli.Flag(&flags.port, "P", "port", 0, "Target port (default 445)")
	cli.Flag(&flags.user, "u", "user", "", "Username (empty for anonymous)")
	cli.Flag(&flags.domain, "d", "domain", "", "Domain name")
	cli.Flag(&flags.password, "p", "password", "", "Password (prompted if a user is given without one)")
	cli.Flag(&flags.share, "S", "share", "", "Share to connect after logon (name or \\\\server\\share)")
	cli.Flag(&flags.socks5, "s", "socks5", "", "SOCKS5 proxy (e.g., 127.0.0.1:1080 or user:pass@host:port)")
	cli.Flag(&configPath, "c", "config", "", "Config file (default $XDG_CONFIG_HOME/smolder/config.yaml)")
	cli.Flag(&flags.pid, "I", "pid", 0, "Process id placed in request headers (default 0xFEFF)")
	cli.Flag(&flags.timeout, "T", "timeout", "", "Per-request timeout (e.g., 10s)")
	cli.Flag(&flags.maxPending, "m", "max-pending", 0, "Requests allowed in flight at once")
	cli.Flag(&flags.extendedSecurity, "e", "extended-security", false, "Log on with NTLMSSP in extended security session setup")
	cli.Flag(&execCmd, "x", "exec", "", "Execute command(s) and exit (semicolon separated)")
	cli.Flag(&flags.verbose, "v", "verbose", false, "Verbose output")

	cli.Parse()

	printBanner()

	if flags.socks5 != "" && !strings.HasPrefix(flags.socks5, "socks5://") {
		flags.socks5 = "socks5://" + flags.socks5
	}

	s, err := loadSettings(configPath)
	if err != nil {
		error_("%v", err)
		os.Exit(1)
	}
	if err := flags.apply(&s); err != nil {
		error_("%v", err)
		cli.Usage(1)
	}
	if err := s.validate(); err != nil {
		error_("%v", err)
		cli.Usage(1)
	}

	verbose = s.Verbose
	debug.SetVerbose(verbose)

	if s.User != "" && s.Password == "" {
		s.Password = promptPassword()
	}

	ctx := context.Background()
	registry = prometheus.NewRegistry()

	cfg := s.clientConfig()
	cfg.Metrics = metrics.NewClientMetrics(registry)
	if cfg.Socks5URL != "" {
		info_("Using SOCKS5 proxy: %s", cfg.Socks5URL)
	}

	targetHost = s.Target
	info_("Connecting to %s:%d...", s.Target, s.Port)

	client, err = smb1.Dial(ctx, s.Target, s.Port, cfg)
	if err != nil {
		error_("Connection failed: %v", err)
		os.Exit(1)
	}
	defer client.Close()

	neg, err := client.Negotiate(ctx)
	if err != nil {
		error_("Negotiate failed: %v", err)
		os.Exit(1)
	}
	success_("Connected! Dialect: %s", neg.Dialect)
	debug_("Server %s in domain %s", neg.ServerName, neg.DomainName)

	if s.User == "" {
		info_("Logging on anonymously...")
	} else {
		info_("Authenticating as %s\\%s...", s.Domain, s.User)
	}
	sess, err := client.Authenticate(ctx, s.User, s.Password, s.Domain)
	s.Password = ""
	if err != nil {
		error_("Authentication failed: %v", err)
		os.Exit(1)
	}
	if sess.Guest {
		warn_("Logged on as guest")
	}
	success_("Authenticated!")

	if s.Share != "" {
		if err := cmdUse(ctx, []string{s.Share}); err != nil {
			error_("%v", err)
		}
	}

	if execCmd != "" {
		// Non-interactive: execute command(s) and exit
		for _, line := range strings.Split(execCmd, ";") {
			args := parseArgs(strings.TrimSpace(line))
			if len(args) == 0 {
				continue
			}
			if !executeCommand(ctx, strings.ToLower(args[0]), args[1:]) {
				break
			}
		}
		return
	}

	runShell(ctx)
}

func printBanner() {
	fmt.Printf(colorCyan+smolderBanner+colorReset, Version)
	fmt.Println()
}

func parseArgs(line string) []string {
	// Splits on spaces, keeps quoted runs together
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	for _, r := range line {
		switch {
		case (r == '"' || r == '\'') && (!inQuote || r == quoteChar):
			inQuote = !inQuote
			quoteChar = r
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	return args
}

// Output helpers
func info_(format string, args ...interface{}) {
	fmt.Printf(colorCyan+"[*]"+colorReset+" "+format+"\n", args...)
}

func success_(format string, args ...interface{}) {
	fmt.Printf(colorGreen+"[+]"+colorReset+" "+format+"\n", args...)
}

func error_(format string, args ...interface{}) {
	fmt.Printf(colorRed+"[!]"+colorReset+" "+format+"\n", args...)
}

func warn_(format string, args ...interface{}) {
	fmt.Printf(colorYellow+"[-]"+colorReset+" "+format+"\n", args...)
}

func debug_(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(colorBlue+"[D]"+colorReset+" "+format+"\n", args...)
	}
}

func promptPassword() string {
	fmt.Print("Password: ")
	passBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Print newline after password entry
	if err != nil {
		error_("Failed to read password: %v", err)
		os.Exit(1)
	}
	return string(passBytes)
}

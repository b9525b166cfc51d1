package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ineffectivecoder/smolder/pkg/smb/smb1"
)

// Command represents a shell command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Handler     func(ctx context.Context, args []string) error
}

// CommandRegistry holds all available commands
type CommandRegistry struct {
	commands map[string]*Command
}

// Global command registry
var commands = NewCommandRegistry()

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*Command),
	}
}

// Register adds a command to the registry
func (r *CommandRegistry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.commands[alias] = cmd
	}
}

// Get retrieves a command by name or alias
func (r *CommandRegistry) Get(name string) *Command {
	return r.commands[name]
}

// List returns all unique commands sorted by name
func (r *CommandRegistry) List() []*Command {
	seen := make(map[string]bool)
	var list []*Command

	for _, cmd := range r.commands {
		if !seen[cmd.Name] {
			seen[cmd.Name] = true
			list = append(list, cmd)
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})

	return list
}

// executeCommand runs a command by name. It returns false once the shell
// should stop.
func executeCommand(ctx context.Context, name string, args []string) bool {
	cmd := commands.Get(name)
	if cmd == nil {
		error_("Unknown command: %s (type 'help' for commands)", name)
		return true
	}

	if err := cmd.Handler(ctx, args); err != nil {
		error_("%v", err)
	}

	return cmd.Name != "exit"
}

func init() {
	registerCoreCommands()
	registerShareCommands()
	registerFileCommands()
}

func registerCoreCommands() {
	commands.Register(&Command{
		Name:        "help",
		Aliases:     []string{"?", "h"},
		Description: "Show available commands",
		Usage:       "help [command]",
		Handler:     cmdHelp,
	})

	commands.Register(&Command{
		Name:        "exit",
		Aliases:     []string{"quit", "q"},
		Description: "Exit the shell",
		Handler:     cmdExit,
	})

	commands.Register(&Command{
		Name:        "info",
		Aliases:     []string{"whoami"},
		Description: "Show negotiated parameters and session info",
		Handler:     cmdInfo,
	})

	commands.Register(&Command{
		Name:        "echo",
		Aliases:     []string{"ping"},
		Description: "Send an echo request and time the reply",
		Usage:       "echo [text] [count]",
		Handler:     cmdEcho,
	})

	commands.Register(&Command{
		Name:        "stats",
		Description: "Show request counters and latency",
		Handler:     cmdStats,
	})

	commands.Register(&Command{
		Name:        "clear",
		Aliases:     []string{"cls"},
		Description: "Clear the screen",
		Handler:     cmdClear,
	})
}

func registerShareCommands() {
	commands.Register(&Command{
		Name:        "use",
		Description: "Connect to a share and make it current",
		Usage:       `use <share | \\server\share>`,
		Handler:     cmdUse,
	})

	commands.Register(&Command{
		Name:        "trees",
		Aliases:     []string{"shares"},
		Description: "List connected shares",
		Handler:     cmdTrees,
	})

	commands.Register(&Command{
		Name:        "disconnect",
		Description: "Disconnect from a share (default: current)",
		Usage:       "disconnect [tid]",
		Handler:     cmdDisconnect,
	})
}

func registerFileCommands() {
	commands.Register(&Command{
		Name:        "create",
		Aliases:     []string{"open"},
		Description: "Open or create a file on the current share",
		Usage:       "create <name> [supersede|open|create|open-if|overwrite|overwrite-if]",
		Handler:     cmdCreate,
	})

	commands.Register(&Command{
		Name:        "close",
		Description: "Close an open file",
		Usage:       "close <fid>",
		Handler:     cmdClose,
	})

	commands.Register(&Command{
		Name:        "files",
		Description: "List open files on the current share",
		Handler:     cmdFiles,
	})
}

func cmdHelp(ctx context.Context, args []string) error {
	if len(args) > 0 {
		cmd := commands.Get(args[0])
		if cmd == nil {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		fmt.Printf("\n%s%s%s - %s\n", colorBold, cmd.Name, colorReset, cmd.Description)
		if cmd.Usage != "" {
			fmt.Printf("Usage: %s\n", cmd.Usage)
		}
		if len(cmd.Aliases) > 0 {
			fmt.Printf("Aliases: %s\n", strings.Join(cmd.Aliases, ", "))
		}
		fmt.Println()
		return nil
	}

	fmt.Println()
	fmt.Printf("%s=== smolder Commands ===%s\n\n", colorBold, colorReset)

	categories := map[string][]string{
		"Core":   {"help", "exit", "info", "echo", "stats", "clear"},
		"Shares": {"use", "trees", "disconnect"},
		"Files":  {"create", "close", "files"},
	}
	order := []string{"Core", "Shares", "Files"}

	for _, cat := range order {
		fmt.Printf("%s%s:%s\n", colorCyan, cat, colorReset)
		for _, name := range categories[cat] {
			if cmd := commands.Get(name); cmd != nil {
				fmt.Printf("  %-12s %s\n", cmd.Name, cmd.Description)
			}
		}
		fmt.Println()
	}
	return nil
}

func cmdExit(ctx context.Context, args []string) error {
	info_("Goodbye!")
	return nil
}

func cmdInfo(ctx context.Context, args []string) error {
	if client == nil {
		return errors.New("not connected")
	}

	fmt.Printf("\n%sConnection Info:%s\n", colorBold, colorReset)
	fmt.Printf("  Target:       %s\n", targetHost)
	fmt.Printf("  Phase:        %s\n", client.Phase())

	if neg := client.Negotiation(); neg != nil {
		fmt.Printf("  Dialect:      %s\n", neg.Dialect)
		fmt.Printf("  Server:       %s\n", neg.ServerName)
		fmt.Printf("  Domain:       %s\n", neg.DomainName)
		fmt.Printf("  Security:     0x%02X\n", neg.SecurityMode)
		fmt.Printf("  Capabilities: 0x%08X\n", neg.Capabilities)
		fmt.Printf("  Unicode:      %v\n", neg.Unicode)
		fmt.Printf("  NTLMSSP:      %v\n", neg.ExtendedSecurity)
		fmt.Printf("  Max Buffer:   %d bytes\n", neg.MaxBufferSize)
		fmt.Printf("  Max Mpx:      %d\n", neg.MaxMpxCount)
		if !neg.SystemTime.IsZero() {
			fmt.Printf("  Server Time:  %s\n", neg.SystemTime.Format(time.RFC3339))
		}
	}

	if sess := client.Session(); sess != nil {
		fmt.Printf("\n%sSession Info:%s\n", colorBold, colorReset)
		if sess.Username == "" {
			fmt.Printf("  Logged in as: (anonymous)\n")
		} else if sess.Domain != "" {
			fmt.Printf("  Logged in as: %s\\%s\n", sess.Domain, sess.Username)
		} else {
			fmt.Printf("  Logged in as: %s\n", sess.Username)
		}
		fmt.Printf("  UID:          0x%04X\n", sess.UID)
		fmt.Printf("  Guest:        %v\n", sess.Guest)
		fmt.Printf("  Native OS:    %s\n", sess.NativeOS)
		fmt.Printf("  Native LAN:   %s\n", sess.NativeLanMan)
	}
	fmt.Println()
	return nil
}

func cmdEcho(ctx context.Context, args []string) error {
	payload := "smolder"
	count := 1
	if len(args) > 0 {
		payload = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count: %s", args[1])
		}
		count = n
	}

	for i := 0; i < count; i++ {
		start := time.Now()
		reply, err := client.Echo(ctx, []byte(payload))
		if err != nil {
			return err
		}
		success_("%d bytes from %s: %q time=%s", len(reply), targetHost, reply, time.Since(start).Round(time.Microsecond))
	}
	return nil
}

func cmdStats(ctx context.Context, args []string) error {
	if registry == nil {
		return errors.New("metrics not enabled")
	}
	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	fmt.Println()
	for _, mf := range families {
		fmt.Printf("%s%s%s\n", colorCyan, mf.GetName(), colorReset)
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			label := strings.Join(labels, " ")

			switch {
			case m.GetCounter() != nil:
				fmt.Printf("  %-45s %.0f\n", label, m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				fmt.Printf("  %-45s %.0f\n", label, m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				var avg time.Duration
				if h.GetSampleCount() > 0 {
					avg = time.Duration(h.GetSampleSum() / float64(h.GetSampleCount()) * float64(time.Second))
				}
				fmt.Printf("  %-45s n=%d avg=%s\n", label, h.GetSampleCount(), avg.Round(time.Microsecond))
			}
		}
	}
	fmt.Println()
	return nil
}

func cmdClear(ctx context.Context, args []string) error {
	fmt.Print("\033[H\033[2J")
	return nil
}

// shareUNC expands a bare share name against the target host.
func shareUNC(host, share string) string {
	if strings.HasPrefix(share, `\\`) {
		return share
	}
	if strings.HasPrefix(share, "//") {
		return strings.ReplaceAll(share, "/", `\`)
	}
	return `\\` + host + `\` + share
}

func cmdUse(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New(`usage: use <share | \\server\share>`)
	}
	path := shareUNC(targetHost, args[0])

	for _, t := range client.Trees() {
		if strings.EqualFold(t.Path, path) {
			currentTID = t.TID
			info_("Switched to %s (tid %d)", path, t.TID)
			return nil
		}
	}

	tid, err := client.TreeConnect(ctx, path)
	if err != nil {
		return err
	}
	currentTID = tid

	tree, _ := client.Tree(tid)
	success_("Connected to %s (tid %d, service %s, fs %s)", path, tid, tree.Service, tree.NativeFileSystem)
	return nil
}

func cmdTrees(ctx context.Context, args []string) error {
	trees := client.Trees()
	if len(trees) == 0 {
		info_("No shares connected")
		return nil
	}

	fmt.Println()
	fmt.Printf("  %-6s %-30s %-8s %-8s %s\n", "TID", "PATH", "SERVICE", "FS", "FILES")
	for _, t := range trees {
		marker := " "
		if t.TID == currentTID {
			marker = "*"
		}
		fmt.Printf("%s %-6d %-30s %-8s %-8s %d\n", marker, t.TID, t.Path, t.Service, t.NativeFileSystem, len(t.Files))
	}
	fmt.Println()
	return nil
}

func cmdDisconnect(ctx context.Context, args []string) error {
	tid := currentTID
	if len(args) > 0 {
		n, err := parseID(args[0])
		if err != nil {
			return err
		}
		tid = n
	}
	if tid == 0 {
		return errors.New("no share selected (use 'use <share>')")
	}

	err := client.TreeDisconnect(ctx, tid)
	if tid == currentTID {
		// The tid is gone locally even if the server complained.
		currentTID = 0
		if trees := client.Trees(); len(trees) > 0 {
			currentTID = trees[0].TID
		}
	}
	if err != nil {
		return err
	}
	success_("Disconnected tid %d", tid)
	return nil
}

var dispositions = map[string]uint32{
	"supersede":    smb1.FileSupersede,
	"open":         smb1.FileOpen,
	"create":       smb1.FileCreate,
	"open-if":      smb1.FileOpenIf,
	"overwrite":    smb1.FileOverwrite,
	"overwrite-if": smb1.FileOverwriteIf,
}

func parseDisposition(s string) (uint32, error) {
	d, ok := dispositions[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown disposition: %s", s)
	}
	return d, nil
}

// parseID accepts decimal or 0x-prefixed hex.
func parseID(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid id: %s", s)
	}
	return uint16(n), nil
}

func cmdCreate(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: create <name> [disposition]")
	}
	if currentTID == 0 {
		return errors.New("no share selected (use 'use <share>')")
	}

	disposition := smb1.FileOpenIf
	if neg := client.Negotiation(); neg != nil && !neg.HasCapability(smb1.CapNTSMBs) {
		disposition = smb1.FileOverwriteIf
	}
	if len(args) > 1 {
		d, err := parseDisposition(args[1])
		if err != nil {
			return err
		}
		disposition = d
	}

	name := strings.ReplaceAll(args[0], "/", `\`)
	fid, err := client.CreateFile(ctx, currentTID, name, smb1.GenericRead|smb1.GenericWrite, disposition)
	if err != nil {
		return err
	}
	success_("Opened %s (fid 0x%04X)", name, fid)
	return nil
}

func cmdClose(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: close <fid>")
	}
	fid, err := parseID(args[0])
	if err != nil {
		return err
	}
	if currentTID == 0 {
		return errors.New("no share selected (use 'use <share>')")
	}

	if err := client.CloseFile(ctx, currentTID, fid); err != nil {
		return err
	}
	success_("Closed fid 0x%04X", fid)
	return nil
}

func cmdFiles(ctx context.Context, args []string) error {
	if currentTID == 0 {
		return errors.New("no share selected (use 'use <share>')")
	}
	tree, ok := client.Tree(currentTID)
	if !ok {
		return fmt.Errorf("tid %d is not connected", currentTID)
	}
	if len(tree.Files) == 0 {
		info_("No open files on %s", tree.Path)
		return nil
	}

	fmt.Println()
	fmt.Printf("  %-8s %-10s %s\n", "FID", "ACCESS", "NAME")
	for _, f := range tree.Files {
		fmt.Printf("  0x%04X   0x%08X %s\n", f.FID, f.GrantedAccess, f.Name)
	}
	fmt.Println()
	return nil
}

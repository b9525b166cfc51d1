package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
)

func runShell(ctx context.Context) {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range commands.List() {
		items = append(items, readline.PcItem(cmd.Name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          buildPrompt(),
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		error_("failed to initialize readline: %v", err)
		return
	}
	defer rl.Close()

	for {
		rl.SetPrompt(buildPrompt())
		input, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if !errors.Is(err, io.EOF) {
				error_("%v", err)
			}
			return
		}

		args := parseArgs(strings.TrimSpace(input))
		if len(args) == 0 {
			continue
		}
		if !executeCommand(ctx, strings.ToLower(args[0]), args[1:]) {
			return
		}
	}
}

func buildPrompt() string {
	var parts []string
	parts = append(parts, colorBold+"[smolder]"+colorReset)

	if targetHost != "" {
		hostPart := colorCyan + targetHost + colorReset
		if client != nil && currentTID != 0 {
			if tree, ok := client.Tree(currentTID); ok {
				hostPart = colorCyan + tree.Path + colorReset
			}
		}
		parts = append(parts, hostPart)
	}

	return strings.Join(parts, " ") + "> "
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var shellCommands = []string{"allocate", "release", "list", "status", "help", "exit", "quit"}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt against a cidrd gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(a, cmd.OutOrStdout())
		},
	}
}

func runShell(a *app, out io.Writer) error {
	items := make([]readline.PrefixCompleterInterface, 0, len(shellCommands))
	for _, name := range shellCommands {
		items = append(items, readline.PcItem(name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "cidrctl> ",
		HistoryFile:     os.ExpandEnv("$HOME/.cidrctl_history"),
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          out,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(out, "Connected to %s. Type 'help' for commands, 'exit' to quit.\n", a.server)

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if done := execLine(a, out, line); done {
			return nil
		}
	}
}

// execLine runs one shell line and reports whether the shell should exit.
func execLine(a *app, out io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "exit", "quit":
		return true
	case "shell":
		fmt.Fprintln(out, "Already in the shell")
		return false
	}

	// Building the command resets the flag-bound fields to their defaults.
	server, format, timeout := a.server, a.format, a.timeout
	root := newRootCmd(a)
	root.SetArgs(append(fields,
		"--server", server,
		"--output", format,
		"--timeout", timeout.String(),
	))
	if err := root.Execute(); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
	return false
}

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// shellCmd runs commands against one long-lived application, which keeps the state of the
// in-memory store between commands.
func shellCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively in one session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewScanner(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			for {
				fmt.Fprint(out, "greenline> ")
				if !in.Scan() {
					fmt.Fprintln(out)
					return in.Err()
				}
				args := splitArgs(in.Text())
				if len(args) == 0 {
					continue
				}
				if args[0] == "exit" || args[0] == "quit" {
					return nil
				}
				if args[0] == "shell" {
					fmt.Fprintln(out, "already in a shell")
					continue
				}
				line := newRootCmd(c)
				line.SetArgs(args)
				line.SetIn(cmd.InOrStdin())
				line.SetOut(out)
				line.SetErr(cmd.ErrOrStderr())
				_ = line.ExecuteContext(cmd.Context())
			}
		},
	}
}

// splitArgs splits s on spaces, keeping double-quoted runs together.
func splitArgs(s string) []string {
	var args []string
	var cur strings.Builder
	quoted, started := false, false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case r == ' ' && !quoted:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, cur.String())
	}
	return args
}

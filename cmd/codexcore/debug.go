package main

import (
	"fmt"

	"github.com/codexrun/agentcore/internal/sandbox"
	"github.com/codexrun/agentcore/pkg/codex"
	"github.com/spf13/cobra"
)

// buildDebugCmd groups low-level diagnostic subcommands, grounded on the
// teacher's "nexus doctor"/"nexus status" diagnostic command group
// (cmd/nexus's buildDoctorCmd), narrowed to the one piece of SPEC_FULL.md
// plumbing worth inspecting directly: the SandboxExecutor.
func buildDebugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Low-level diagnostics",
	}
	cmd.AddCommand(buildDebugSandboxCmd())
	return cmd
}

func buildDebugSandboxCmd() *cobra.Command {
	var sandboxKind string
	var writableRoots []string

	cmd := &cobra.Command{
		Use:   "sandbox -- <command> [args...]",
		Short: "Run one command through the SandboxExecutor and print its result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wd := cwdOrDot()
			executor := sandbox.NewExecutor()
			result, err := executor.Run(cmd.Context(), sandbox.SpawnRequest{
				Argv:          args,
				Cwd:           wd,
				SandboxPolicy: sandboxPolicyFromFlags(sandboxKind, writableRoots),
			})
			if err != nil {
				return fmt.Errorf("debug sandbox: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "exit_code=%d\n", result.ExitCode)
			if len(result.Stdout) > 0 {
				fmt.Fprintf(out, "--- stdout ---\n%s\n", result.Stdout)
			}
			if len(result.Stderr) > 0 {
				fmt.Fprintf(out, "--- stderr ---\n%s\n", result.Stderr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sandboxKind, "sandbox", "workspace-write", "sandbox kind: danger-full-access | read-only | workspace-write")
	cmd.Flags().StringSliceVar(&writableRoots, "writable-root", nil, "additional writable roots (workspace-write only)")
	return cmd
}

func sandboxPolicyFromFlags(kind string, writableRoots []string) codex.SandboxPolicy {
	return codex.SandboxPolicy{
		Kind:          codex.SandboxKind(kind),
		WritableRoots: writableRoots,
	}
}

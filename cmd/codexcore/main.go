// Package main provides the CLI entry point for codexcore, the agent
// runtime's conversation/turn/tool-execution engine (spec §0). Grounded on
// the teacher's cmd/nexus/main.go cobra tree (buildRootCmd + one
// buildXxxCmd per subcommand, version/commit/date ldflags), re-pointed at
// ConversationManager/Session/TurnRuntime instead of the gateway.
//
// Usage:
//
//	codexcore proto                run the JSONL Submission/Event protocol on stdio
//	codexcore exec "<prompt>"       run one conversation turn to completion and print the result
//	codexcore debug sandbox -- cmd  run a command through the SandboxExecutor directly
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "codexcore",
		Short: "codexcore - conversation/turn/tool-execution agent runtime",
		Long: `codexcore drives model-backed conversations through a
ConversationManager/Session/TurnRuntime pipeline: streamed model responses,
parallel-or-serial tool dispatch, approval gating, and an append-only
rollout ledger with ghost-snapshot undo.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "path to codexcore.toml (default: $CODEX_HOME/config.toml)")
	rootCmd.PersistentFlags().String("codex-home", "", "override CODEX_HOME (default: ~/.codex)")

	rootCmd.AddCommand(
		buildProtoCmd(),
		buildExecCmd(),
		buildDebugCmd(),
	)
	return rootCmd
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codexrun/agentcore/internal/protocol"
	"github.com/codexrun/agentcore/pkg/codex"
	"github.com/spf13/cobra"
)

// buildProtoCmd wires stdin/stdout to a single Session via protocol.Pump
// (spec §6's JSONL mode). It opens exactly one conversation, seeded from
// --model-family and --approval-policy, and runs until EOF on stdin or
// process interrupt, matching the teacher's buildServeCmd's signal-driven
// shutdown (cmd/nexus/main.go).
func buildProtoCmd() *cobra.Command {
	var modelFamily string
	var approvalPolicy string

	cmd := &cobra.Command{
		Use:   "proto",
		Short: "Run the JSONL Submission/Event protocol on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sessCfg := rt.cfg.SessionConfig(cwdOrDot())
			if modelFamily != "" {
				sessCfg.ModelFamily = modelFamily
			}
			if approvalPolicy != "" {
				sessCfg.ApprovalPolicy = codex.ApprovalPolicy(approvalPolicy)
			}

			_, sess, initial, err := rt.manager.NewConversation(ctx, sessCfg, "", "")
			if err != nil {
				return fmt.Errorf("proto: start conversation: %w", err)
			}
			rt.logger.Info("conversation started", "conversation_id", initial.ConversationID.String())

			return protocol.Pump(ctx, sess, cmd.InOrStdin(), cmd.OutOrStdout(), rt.logger)
		},
	}
	cmd.Flags().StringVar(&modelFamily, "model-family", "", "override the configured default model family")
	cmd.Flags().StringVar(&approvalPolicy, "approval-policy", "", "override the configured default approval policy")
	return cmd
}

func cwdOrDot() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

package main

import (
	"errors"
	"fmt"

	"github.com/codexrun/agentcore/internal/session"
	"github.com/codexrun/agentcore/pkg/codex"
	"github.com/spf13/cobra"
)

// buildExecCmd runs a single user turn to completion non-interactively and
// prints the assistant's final text, then shuts the conversation down. This
// is the non-protocol equivalent of the teacher's one-shot "nexus agents
// run" invocation (cmd/nexus/handlers_agents.go), re-pointed at Session
// instead of the gateway's agent runner.
func buildExecCmd() *cobra.Command {
	var modelFamily string

	cmd := &cobra.Command{
		Use:   "exec [prompt]",
		Short: "Run one conversation turn to completion and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sessCfg := rt.cfg.SessionConfig(cwdOrDot())
			if modelFamily != "" {
				sessCfg.ModelFamily = modelFamily
			}

			id, sess, _, err := rt.manager.NewConversation(ctx, sessCfg, "", "")
			if err != nil {
				return fmt.Errorf("exec: start conversation: %w", err)
			}
			defer rt.manager.DropConversation(id)

			if _, err := sess.Submit(codex.Submission{
				Op:    codex.OpUserInput,
				Items: []codex.ResponseItem{{Kind: codex.ItemMessage, Role: codex.RoleUser, Content: args[0]}},
			}); err != nil {
				return fmt.Errorf("exec: submit prompt: %w", err)
			}

			out := cmd.OutOrStdout()
			for {
				ev, err := sess.NextEvent(ctx)
				if errors.Is(err, session.ErrSessionClosed) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("exec: next event: %w", err)
				}
				switch ev.Msg.Type {
				case codex.EventAgentMessage:
					fmt.Fprintln(out, ev.Msg.Text)
				case codex.EventTaskComplete:
					if _, err := sess.Submit(codex.Submission{Op: codex.OpShutdown}); err != nil {
						return fmt.Errorf("exec: shutdown: %w", err)
					}
				case codex.EventError:
					return fmt.Errorf("exec: %s", ev.Msg.ErrorMessage)
				}
			}
		},
	}
	cmd.Flags().StringVar(&modelFamily, "model-family", "", "override the configured default model family")
	return cmd
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tailcast/internal/hub"
)

func newFollowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "follow",
		Short: "Follow the watched file through a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := ctx.newClient()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			stderr := cmd.ErrOrStderr()
			err = cl.Follow(cmd.Context(), func(msg hub.Message) {
				if msg.IsError() {
					fmt.Fprintf(stderr, "tailcast: %s\n", msg.Err)
					return
				}
				for _, line := range msg.Lines {
					fmt.Fprintln(stdout, line)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			if err != nil {
				return wrapClientError(err, ctx.configValue().Server.Bind)
			}
			return nil
		},
	}
}

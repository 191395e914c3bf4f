package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/assetvault/pkg/app"
	"github.com/yeisme/assetvault/pkg/internal/events"
	"github.com/yeisme/assetvault/pkg/internal/model"
)

var (
	eventsCmd = &cobra.Command{
		Use:   "events",
		Short: "record event related commands",
	}

	eventsTailCmd = &cobra.Command{
		Use:   "tail <type>",
		Short: "print events of a type as they are published (events.type=nats)",
		Args:  cobra.ExactArgs(1),
		ValidArgs: []string{
			events.TypeCreated, events.TypeUpdated, events.TypeDeleted, events.TypeUploadIssued,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCore(cmd, func(ctx context.Context, core *app.Core) error {
				if core.Events == nil {
					return fmt.Errorf("events are disabled (events.type=none)")
				}

				msgs, err := core.Events.Subscribe(ctx, args[0])
				if err != nil {
					return err
				}

				for msg := range msgs {
					ev, err := events.Decode(msg)
					msg.Ack()

					if err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), "skip undecodable message:", err)
						continue
					}

					b, err := model.Marshal(ev)
					if err != nil {
						return err
					}

					fmt.Fprintln(cmd.OutOrStdout(), string(b))
				}

				return nil
			})
		},
	}
)

// registerEventsCommands 注册事件相关命令.
func registerEventsCommands() {
	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(eventsCmd)
}

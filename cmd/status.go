package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show gateway status (uptime, clients, channels)",
		Run: func(cmd *cobra.Command, args []string) {
			callAndPrint(protocol.MethodStatus, nil)
		},
	}
}

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <channel> <chat-id> <message>",
		Short: "Send a message through a channel adapter",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			callAndPrint(protocol.MethodSend, map[string]string{
				"channel": args[0],
				"chatId":  args[1],
				"content": args[2],
			})
		},
	}
	return cmd
}

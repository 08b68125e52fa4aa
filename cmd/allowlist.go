package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

func allowlistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Manage the DM allowlist",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List allowlist entries",
		Run: func(cmd *cobra.Command, args []string) {
			channel, _ := cmd.Flags().GetString("channel")
			var params map[string]string
			if channel != "" {
				params = map[string]string{"channel": channel}
			}
			callAndPrint(protocol.MethodAllowlistList, params)
		},
	}
	list.Flags().String("channel", "", "filter by channel")
	cmd.AddCommand(list)

	add := &cobra.Command{
		Use:   "add <channel> <user-id>",
		Short: "Add a user to the allowlist",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			userName, _ := cmd.Flags().GetString("name")
			note, _ := cmd.Flags().GetString("note")
			callAndPrint(protocol.MethodAllowlistAdd, map[string]string{
				"channel":  args[0],
				"userId":   args[1],
				"userName": userName,
				"addedBy":  "cli",
				"note":     note,
			})
		},
	}
	add.Flags().String("name", "", "display name for the entry")
	add.Flags().String("note", "", "free-form note")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <channel> <user-id>",
		Short: "Remove a user from the allowlist",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			callAndPrint(protocol.MethodAllowlistRemove, map[string]string{
				"channel": args[0],
				"userId":  args[1],
			})
		},
	})

	return cmd
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

func pairingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pairing",
		Short: "Manage DM pairing requests",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending pairing requests",
		Run: func(cmd *cobra.Command, args []string) {
			callAndPrint(protocol.MethodPairingList, nil)
		},
	})

	approve := &cobra.Command{
		Use:   "approve <code>",
		Short: "Approve a pairing code, adding the sender to the allowlist",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			approvedBy, _ := cmd.Flags().GetString("by")
			callAndPrint(protocol.MethodPairingApprove, map[string]string{
				"code":       args[0],
				"approvedBy": approvedBy,
			})
		},
	}
	approve.Flags().String("by", "cli", "who is approving (recorded on the allowlist entry)")
	cmd.AddCommand(approve)

	cmd.AddCommand(&cobra.Command{
		Use:   "reject <code>",
		Short: "Reject a pending pairing code",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			callAndPrint(protocol.MethodPairingReject, map[string]string{"code": args[0]})
		},
	})

	return cmd
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/botgate/pkg/protocol"
)

func policyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Read or change DM access policies",
	}

	get := &cobra.Command{
		Use:   "get [channel]",
		Short: "Show the effective policy for a channel (or the default)",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			params := map[string]string{}
			if len(args) == 1 {
				params["channel"] = args[0]
			}
			callAndPrint(protocol.MethodPolicyGet, params)
		},
	}
	cmd.AddCommand(get)

	set := &cobra.Command{
		Use:   "set <open|pairing|allowlist|closed> [channel]",
		Short: "Set the default policy, or a per-channel override",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			params := map[string]string{"policy": args[0]}
			if len(args) == 2 {
				params["channel"] = args[1]
			}
			callAndPrint(protocol.MethodPolicySet, params)
		},
	}
	cmd.AddCommand(set)

	return cmd
}

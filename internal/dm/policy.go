// Package dm gates unsolicited direct messages behind per-channel access
// policies, pairing codes and a persistent allowlist.
package dm

import "fmt"

// Policy controls how DMs from unknown senders are handled on a channel.
type Policy string

const (
	// PolicyOpen allows every sender.
	PolicyOpen Policy = "open"
	// PolicyPairing requires unknown senders to redeem a pairing code;
	// approval promotes them into the allowlist.
	PolicyPairing Policy = "pairing"
	// PolicyAllowlist allows only senders already on the allowlist.
	PolicyAllowlist Policy = "allowlist"
	// PolicyClosed rejects every sender.
	PolicyClosed Policy = "closed"
)

// DefaultPolicy applies to channels without an explicit override.
const DefaultPolicy = PolicyPairing

// ParsePolicy validates a policy string from config or the policy.set method.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyOpen, PolicyPairing, PolicyAllowlist, PolicyClosed:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown dm policy %q (want open, pairing, allowlist or closed)", s)
}

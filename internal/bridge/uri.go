package bridge

import (
	"strings"

	"github.com/relaymind/voicegate/internal/tenant"
)

// TransferTarget is one rendered SIP destination for the transfer loop.
type TransferTarget struct {
	Format string
	URI    string
}

// TransferTargets renders the ordered SIP destinations for a normalized
// E.164 number at the agent platform's domain. Agent platforms differ in
// which user-part encoding they accept, so the loop tries national digits
// first, then E.164 with and without the plus. Encodings that collapse to
// the same URI are emitted once.
func TransferTargets(e164, domain string) []TransferTarget {
	noPlus := tenant.Digits(e164)
	national := noPlus
	if strings.HasPrefix(e164, "+1") && len(noPlus) == 11 {
		national = noPlus[1:]
	}

	candidates := []TransferTarget{
		{Format: "digits", URI: "sip:" + national + "@" + domain},
		{Format: "e164", URI: "sip:" + e164 + "@" + domain},
		{Format: "e164_no_plus", URI: "sip:" + noPlus + "@" + domain},
	}

	targets := make([]TransferTarget, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.URI] {
			continue
		}
		seen[c.URI] = true
		targets = append(targets, c)
	}
	return targets
}

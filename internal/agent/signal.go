package agent

import (
	"regexp"
	"strings"

	"github.com/soyeahso/sawt/internal/domain"
)

// handoffTagRe matches [HANDOFF:target] markers in agent replies.
var handoffTagRe = regexp.MustCompile(`(?i)\[\s*HANDOFF\s*:\s*([a-z_]+)\s*\]`)

// TagEnd is the handoff target that ends the conversation. In greeting it is
// a complaint. In checkout it carries no signal: an order is confirmed only by
// a successful confirm_order call.
const TagEnd = "end"

// extractSignal removes every handoff tag from reply and classifies the last
// one for phase. A reply without a tag continues the phase. Unknown targets
// are returned as handoffs so routing rejects them.
func extractSignal(phase domain.Phase, reply string) (domain.Signal, string) {
	matches := handoffTagRe.FindAllStringSubmatch(reply, -1)
	cleaned := strings.TrimSpace(handoffTagRe.ReplaceAllString(reply, ""))
	cleaned = whitespaceLineRe.ReplaceAllString(cleaned, "")
	cleaned = blankLineCollapseRe.ReplaceAllString(cleaned, "\n\n")
	if len(matches) == 0 {
		return domain.Continue(), cleaned
	}
	target := strings.ToLower(matches[len(matches)-1][1])
	return tagSignal(phase, target), cleaned
}

func tagSignal(phase domain.Phase, target string) domain.Signal {
	if target == TagEnd {
		if phase == domain.PhaseCheckout {
			return domain.Continue()
		}
		return domain.Complaint()
	}
	return domain.Handoff(domain.Phase(target))
}

// SignalTag renders the tag an agent emits to produce sig.
func SignalTag(sig domain.Signal) string {
	switch sig.Kind {
	case domain.SignalHandoff:
		return "[HANDOFF:" + string(sig.Target) + "]"
	case domain.SignalComplaint:
		return "[HANDOFF:" + TagEnd + "]"
	}
	return ""
}

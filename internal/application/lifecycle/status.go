package lifecycle

import (
	"strings"

	"github.com/garyjia/tradeflow/internal/domain/workflow"
)

// Flow decides which terminal status a final approval writes
type Flow int

const (
	// FlowStandard ends with "Approved-<channel>"
	FlowStandard Flow = iota
	// FlowIssuance ends with "issued"
	FlowIssuance
)

func (f Flow) String() string {
	if f == FlowIssuance {
		return "issuance"
	}
	return "standard"
}

// FlowFor returns FlowIssuance when eventCode is one of issuanceEvents
func FlowFor(eventCode string, issuanceEvents []string) Flow {
	for _, e := range issuanceEvents {
		if strings.EqualFold(strings.TrimSpace(e), strings.TrimSpace(eventCode)) {
			return FlowIssuance
		}
	}
	return FlowStandard
}

// NextStatus returns the status written when the last pane of stageName is
// submitted. The non-final format is what CompletedStageName parses back.
func NextStatus(stageName string, isFinalApprovalReached bool, flow Flow, channel workflow.Channel) string {
	return nextStatus(stageName, isFinalApprovalReached, flow, channel).String()
}

func nextStatus(stageName string, isFinalApprovalReached bool, flow Flow, channel workflow.Channel) workflow.Status {
	if !isFinalApprovalReached {
		return workflow.StageCompletedStatus(stageName, channel)
	}
	if flow == FlowIssuance {
		return workflow.IssuedStatus()
	}
	return workflow.ApprovedStatus(channel)
}

package workflow

import "strings"

// Channel records who completed a stage
type Channel string

const (
	ChannelPortal Channel = "Portal"
	ChannelBank   Channel = "Bank"
)

// ChannelContext is the session's business application selection. The
// business centre decides the channel written into status strings;
// InitiatingChannel is what the transaction recorded when it was created and
// is kept separately because the two can disagree.
type ChannelContext struct {
	BusinessCentre    string `json:"business_centre"`
	InitiatingChannel string `json:"initiating_channel,omitempty"`
}

// Channel derives the status channel from the business centre
func (c ChannelContext) Channel() Channel {
	return DeriveChannel(c.BusinessCentre)
}

// DeriveChannel returns Bank for the orchestrator and bank applications, Portal otherwise
func DeriveChannel(businessCentre string) Channel {
	name := strings.ToLower(businessCentre)
	if strings.Contains(name, "orchestrator") || strings.Contains(name, "tscf bank") {
		return ChannelBank
	}
	return ChannelPortal
}

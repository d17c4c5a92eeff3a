package workflow

import (
	"regexp"
	"strings"
)

// AllComplete is returned by CompletedStageName when the transaction needs no further action
const AllComplete = "__ALL_COMPLETE__"

// StatusKind classifies a transaction status string
type StatusKind int

const (
	StatusNotStarted StatusKind = iota
	StatusStageCompleted
	StatusSentToBank
	StatusRejected
	StatusDraft
	StatusIssued
	StatusApproved
	StatusLegacy
	StatusUnrecognized
)

var statusKindNames = map[StatusKind]string{
	StatusNotStarted:     "NOT_STARTED",
	StatusStageCompleted: "STAGE_COMPLETED",
	StatusSentToBank:     "SENT_TO_BANK",
	StatusRejected:       "REJECTED",
	StatusDraft:          "DRAFT",
	StatusIssued:         "ISSUED",
	StatusApproved:       "APPROVED",
	StatusLegacy:         "LEGACY",
	StatusUnrecognized:   "UNRECOGNIZED",
}

func (k StatusKind) String() string {
	if name, ok := statusKindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Literal statuses
const (
	literalSentToBank = "sent to bank"
	literalIssued     = "issued"
	literalRejected   = "rejected"
	literalDraft      = "draft"
)

// legacyStages maps fixed legacy keywords to the stage they mark as completed.
// "pending" is a known keyword without a completed stage.
var legacyStages = map[string]string{
	"submitted":        "Data Entry",
	"bank processing":  "Data Entry",
	"limit checked":    "Limit Check",
	"checker reviewed": "Checker Review",
	"approved":         "Final Approval",
	"pending":          "",
}

var (
	completedWithChannel = regexp.MustCompile(`(?i)^(.+) Completed-(.+)$`)
	completedPlain       = regexp.MustCompile(`(?i)^(.+) Completed$`)
	approvedWithChannel  = regexp.MustCompile(`(?i)^Approved-(.+)$`)
)

// Status is the parsed form of a transaction status string. All workflow
// logic works on Status; the raw text only crosses ParseStatus and String.
type Status struct {
	Kind      StatusKind
	StageName string
	Channel   string
	Keyword   string
	Raw       string
}

// ParseStatus parses a raw status string. It never fails: text that matches
// no known format yields StatusUnrecognized.
func ParseStatus(raw string) Status {
	text := strings.TrimSpace(raw)
	lower := strings.ToLower(text)

	switch lower {
	case "":
		return Status{Kind: StatusNotStarted, Raw: raw}
	case literalSentToBank:
		return Status{Kind: StatusSentToBank, Raw: raw}
	case literalIssued:
		return Status{Kind: StatusIssued, Raw: raw}
	case literalRejected:
		return Status{Kind: StatusRejected, Raw: raw}
	case literalDraft:
		return Status{Kind: StatusDraft, Raw: raw}
	}

	if m := completedWithChannel.FindStringSubmatch(text); m != nil {
		if stage := strings.TrimSpace(m[1]); stage != "" {
			return Status{Kind: StatusStageCompleted, StageName: stage, Channel: strings.TrimSpace(m[2]), Raw: raw}
		}
	}

	if m := completedPlain.FindStringSubmatch(text); m != nil {
		if stage := strings.TrimSpace(m[1]); stage != "" {
			return Status{Kind: StatusStageCompleted, StageName: stage, Raw: raw}
		}
	}

	if m := approvedWithChannel.FindStringSubmatch(text); m != nil {
		return Status{Kind: StatusApproved, Channel: strings.TrimSpace(m[1]), Raw: raw}
	}

	if _, ok := legacyStages[lower]; ok {
		return Status{Kind: StatusLegacy, Keyword: lower, Raw: raw}
	}

	return Status{Kind: StatusUnrecognized, Raw: raw}
}

// StageCompletedStatus builds "<stage> Completed-<channel>", or "<stage> Completed" without a channel
func StageCompletedStatus(stageName string, channel Channel) Status {
	return Status{Kind: StatusStageCompleted, StageName: stageName, Channel: string(channel)}
}

// ApprovedStatus builds the terminal "Approved-<channel>" status
func ApprovedStatus(channel Channel) Status {
	return Status{Kind: StatusApproved, Channel: string(channel)}
}

// IssuedStatus builds the terminal "issued" status
func IssuedStatus() Status {
	return Status{Kind: StatusIssued}
}

// RejectedStatus builds the "rejected" status
func RejectedStatus() Status {
	return Status{Kind: StatusRejected}
}

// String renders the status in its storage format
func (s Status) String() string {
	switch s.Kind {
	case StatusNotStarted:
		return ""
	case StatusSentToBank:
		return literalSentToBank
	case StatusIssued:
		return literalIssued
	case StatusRejected:
		return literalRejected
	case StatusDraft:
		return literalDraft
	case StatusStageCompleted:
		if s.Channel == "" {
			return s.StageName + " Completed"
		}
		return s.StageName + " Completed-" + s.Channel
	case StatusApproved:
		return "Approved-" + s.Channel
	case StatusLegacy:
		return s.Keyword
	default:
		return s.Raw
	}
}

// IsTerminal reports whether no stage can follow this status
func (s Status) IsTerminal() bool {
	return s.Kind == StatusIssued || s.Kind == StatusApproved
}

// CompletedStageName returns the stage a status marks as just completed.
// "issued" yields AllComplete; rejected, draft and unrecognized text yield ok=false.
func CompletedStageName(status string) (string, bool) {
	return ParseStatus(status).CompletedStage()
}

// CompletedStage is CompletedStageName for an already parsed status
func (s Status) CompletedStage() (string, bool) {
	switch s.Kind {
	case StatusIssued:
		return AllComplete, true
	case StatusStageCompleted:
		return s.StageName, true
	case StatusLegacy:
		if stage := legacyStages[s.Keyword]; stage != "" {
			return stage, true
		}
	}
	return "", false
}

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompletedStageName(t *testing.T) {
	tests := []struct {
		status    string
		wantStage string
		wantOK    bool
	}{
		{"issued", AllComplete, true},
		{"ISSUED", AllComplete, true},
		{"rejected", "", false},
		{"Draft", "", false},
		{"sent to bank", "", false},
		{"", "", false},
		{"Data Entry Completed-Portal", "Data Entry", true},
		{"checker review completed-bank", "checker review", true},
		{"  Limit Check Completed-Bank  ", "Limit Check", true},
		{"Data Entry Completed", "Data Entry", true},
		{"submitted", "Data Entry", true},
		{"Bank Processing", "Data Entry", true},
		{"limit checked", "Limit Check", true},
		{"checker reviewed", "Checker Review", true},
		{"approved", "Final Approval", true},
		{"pending", "", false},
		{"Approved-Portal", "", false},
		{"something else entirely", "", false},
		{" Completed", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			stage, ok := CompletedStageName(tt.status)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantStage, stage)
		})
	}
}

func TestCompletedStageName_Pure(t *testing.T) {
	inputs := []string{"issued", "rejected", "draft", "Data Entry Completed-Portal", "garbage"}
	for _, in := range inputs {
		s1, ok1 := CompletedStageName(in)
		s2, ok2 := CompletedStageName(in)
		assert.Equal(t, s1, s2, in)
		assert.Equal(t, ok1, ok2, in)
	}
}

func TestParseStatus_Kinds(t *testing.T) {
	tests := []struct {
		raw  string
		want StatusKind
	}{
		{"", StatusNotStarted},
		{"   ", StatusNotStarted},
		{"Sent To Bank", StatusSentToBank},
		{"rejected", StatusRejected},
		{"draft", StatusDraft},
		{"issued", StatusIssued},
		{"Approved-Bank", StatusApproved},
		{"approved", StatusLegacy},
		{"pending", StatusLegacy},
		{"Final Approval Completed-Portal", StatusStageCompleted},
		{"who knows", StatusUnrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStatus(tt.raw).Kind)
		})
	}
}

func TestParseStatus_StageCompletedFields(t *testing.T) {
	s := ParseStatus("Checker Review Completed-Bank")
	assert.Equal(t, "Checker Review", s.StageName)
	assert.Equal(t, "Bank", s.Channel)
	assert.False(t, s.IsTerminal())

	a := ParseStatus("approved-portal")
	assert.Equal(t, "portal", a.Channel)
	assert.True(t, a.IsTerminal())
}

func TestStatus_RoundTrip(t *testing.T) {
	statuses := []Status{
		StageCompletedStatus("Data Entry", ChannelPortal),
		StageCompletedStatus("Checker Review", ChannelBank),
		StageCompletedStatus("Data Entry", ""),
		ApprovedStatus(ChannelBank),
		IssuedStatus(),
		RejectedStatus(),
	}

	for _, s := range statuses {
		t.Run(s.String(), func(t *testing.T) {
			parsed := ParseStatus(s.String())
			assert.Equal(t, s.Kind, parsed.Kind)
			assert.Equal(t, s.StageName, parsed.StageName)
			assert.Equal(t, s.Channel, parsed.Channel)
		})
	}
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "Data Entry Completed-Portal", StageCompletedStatus("Data Entry", ChannelPortal).String())
	assert.Equal(t, "Approved-Bank", ApprovedStatus(ChannelBank).String())
	assert.Equal(t, "issued", IssuedStatus().String())
	assert.Equal(t, "rejected", RejectedStatus().String())
	assert.Equal(t, "odd text", ParseStatus("odd text").String())
	assert.Equal(t, "", ParseStatus("").String())
}

func TestStatusKind_String(t *testing.T) {
	assert.Equal(t, "STAGE_COMPLETED", StatusStageCompleted.String())
	assert.Equal(t, "UNKNOWN", StatusKind(99).String())
}

package workflow

import (
	"testing"

	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/stretchr/testify/assert"
)

func TestDeriveChannel(t *testing.T) {
	tests := []struct {
		centre string
		want   Channel
	}{
		{entity.BusinessAppClient, ChannelPortal},
		{entity.BusinessAppOrchestrator, ChannelBank},
		{entity.BusinessAppBank, ChannelBank},
		{"adria tscf bank", ChannelBank},
		{"", ChannelPortal},
	}
	for _, tt := range tests {
		t.Run(tt.centre, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveChannel(tt.centre))
		})
	}
}

func TestChannelContext_KeepsInitiatingChannel(t *testing.T) {
	cc := ChannelContext{BusinessCentre: entity.BusinessAppOrchestrator, InitiatingChannel: "Portal"}
	assert.Equal(t, ChannelBank, cc.Channel())
	assert.Equal(t, "Portal", cc.InitiatingChannel)
}

func TestSelectForm(t *testing.T) {
	tmpl := &entity.WorkflowTemplate{ProductCode: "ILC", EventCode: "ISS"}

	dynamic := StageTarget(tmpl, &entity.WorkflowStage{StageName: "Data Entry", UIRenderMode: "Dynamic"})
	sel := SelectForm(dynamic)
	assert.Equal(t, FormShellDynamic, sel.Shell)
	assert.Equal(t, "Data Entry", sel.InitialStage)
	assert.Equal(t, "ILC", sel.ProductCode)
	assert.Equal(t, "ISS", sel.EventCode)

	static := StageTarget(tmpl, &entity.WorkflowStage{StageName: "Checker Review"})
	assert.Equal(t, FormShellStatic, SelectForm(static).Shell)
	assert.Empty(t, SelectForm(static).InitialStage)

	empty := EmptyTarget(nil, OutcomeNoTemplate)
	assert.Equal(t, FormSelection{Shell: FormShellStatic}, SelectForm(empty))
}

func TestResolvedTarget(t *testing.T) {
	empty := EmptyTarget(nil, OutcomeComplete)
	assert.False(t, empty.HasStage())
	assert.Equal(t, entity.RenderModeStatic, empty.UIRenderMode)
	assert.NotEmpty(t, empty.Outcome.Message())

	target := StageTarget(nil, &entity.WorkflowStage{StageName: "Data Entry", UIRenderMode: "dynamic"})
	assert.True(t, target.HasStage())
	assert.Equal(t, OutcomeStage, target.Outcome)
	assert.Equal(t, entity.RenderModeDynamic, target.UIRenderMode)
}

package workflow

import (
	"testing"

	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/stretchr/testify/assert"
)

func stage(name, actor string) *entity.WorkflowStage {
	return &entity.WorkflowStage{StageName: name, ActorType: actor}
}

func TestAccessFromActorTypes(t *testing.T) {
	dataEntry := stage("Data Entry", entity.ActorTypeMaker)
	review := stage("Checker Review", entity.ActorTypeChecker)
	shared := stage("Shared Review", entity.WildcardAll)

	tests := []struct {
		name       string
		actorTypes []string
		stage      *entity.WorkflowStage
		want       bool
	}{
		{"empty list is super user", nil, review, true},
		{"wildcard is super user", []string{"Maker", "__ALL__"}, review, true},
		{"matching actor type", []string{"Maker"}, dataEntry, true},
		{"case-insensitive match", []string{"maker"}, dataEntry, true},
		{"non-matching actor type", []string{"Maker"}, review, false},
		{"wildcard stage actor", []string{"Checker"}, shared, true},
		{"nil stage", []string{"Maker"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AccessFromActorTypes(tt.actorTypes).Allows(tt.stage))
		})
	}
}

func TestNoAccess(t *testing.T) {
	a := NoAccess()
	assert.True(t, a.IsEmpty())
	assert.False(t, a.IsSuper())
	assert.False(t, a.Allows(stage("Shared", entity.WildcardAll)))
	assert.False(t, a.Allows(stage("Data Entry", entity.ActorTypeMaker)))
}

func TestNewAccess(t *testing.T) {
	byStage := NewAccess(nil, []string{"Checker Review"})
	assert.True(t, byStage.Allows(stage("checker review", entity.ActorTypeChecker)))
	assert.False(t, byStage.Allows(stage("Data Entry", entity.ActorTypeMaker)))
	assert.Equal(t, []string{"checker review"}, byStage.StageNames())

	byWildcard := NewAccess(nil, []string{entity.WildcardAll})
	assert.True(t, byWildcard.IsSuper())

	mixed := NewAccess([]string{"Maker", " ", "maker"}, nil)
	assert.Equal(t, []string{"maker"}, mixed.ActorTypes())
	assert.False(t, mixed.Allows(stage("Blank", "")))

	assert.True(t, NewAccess(nil, nil).IsEmpty())
}

func TestSuperAccess(t *testing.T) {
	a := SuperAccess()
	assert.True(t, a.IsSuper())
	assert.False(t, a.IsEmpty())
	assert.True(t, a.Allows(stage("Final Approval", entity.ActorTypeAuthorization)))
}

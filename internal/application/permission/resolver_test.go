package permission

import (
	"errors"
	"testing"

	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/stretchr/testify/assert"
)

func grant(product, event, stage, actor string) entity.AccessGrant {
	return entity.AccessGrant{ProductCode: product, EventCode: event, StageName: stage, ActorType: actor, CanView: true}
}

func makerSnapshot() *entity.PermissionSnapshot {
	inactive := grant("ILC", "ISS", "Final Approval", entity.ActorTypeAuthorization)
	inactive.CanView = false

	return &entity.PermissionSnapshot{
		UserID: "u1",
		ProductPermissions: []entity.AccessGrant{
			grant("ILC", "ISS", "Data Entry", entity.ActorTypeMaker),
			grant("ILC", "ISS", "Data Entry", entity.ActorTypeMaker),
			grant("ILC", "ISS", "Checker Review", entity.ActorTypeChecker),
			inactive,
			grant("ELC", "ADV", entity.WildcardAll, ""),
		},
		ScreenPermissions: []entity.ScreenPermission{
			{ScreenCode: "DASHBOARD", CanView: true},
		},
	}
}

func TestResolver_NotLoadedDeniesEverything(t *testing.T) {
	for _, r := range []*Resolver{NewResolver(), loading(), failed()} {
		t.Run(r.State().String(), func(t *testing.T) {
			assert.False(t, r.IsSuperUser())
			assert.Empty(t, r.AccessibleStages("ILC", "ISS"))
			assert.False(t, r.HasStageAccess("ILC", "ISS", "Data Entry"))
			assert.Nil(t, r.AccessibleActorTypes("ILC", "ISS"))
			assert.True(t, r.Access("ILC", "ISS").IsEmpty())
			view, edit := r.ScreenAccess("DASHBOARD")
			assert.False(t, view)
			assert.False(t, edit)
		})
	}
}

func loading() *Resolver {
	r := NewLoadedResolver(&entity.PermissionSnapshot{IsSuperUser: true})
	r.BeginLoad()
	return r
}

func failed() *Resolver {
	r := NewLoadedResolver(&entity.PermissionSnapshot{IsSuperUser: true})
	r.Fail(errors.New("rpc down"))
	return r
}

func TestResolver_States(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, NotLoaded, r.State())

	r.BeginLoad()
	assert.Equal(t, Loading, r.State())

	r.Fail(errors.New("timeout"))
	assert.Equal(t, Failed, r.State())
	assert.EqualError(t, r.Err(), "timeout")

	r.SetSnapshot(nil)
	assert.Equal(t, Loaded, r.State())
	assert.NoError(t, r.Err())
	assert.NotNil(t, r.Snapshot())
	assert.Equal(t, "UNKNOWN", LoadState(42).String())
}

func TestResolver_AccessibleStages(t *testing.T) {
	r := NewLoadedResolver(makerSnapshot())

	assert.Equal(t, []string{"Data Entry", "Checker Review"}, r.AccessibleStages("ILC", "ISS"))
	assert.Equal(t, []string{"Data Entry", "Checker Review"}, r.AccessibleStages("ilc", "iss"))
	assert.Empty(t, r.AccessibleStages("", "ISS"))
	assert.Empty(t, r.AccessibleStages("BG", "ISS"))
	assert.Equal(t, []string{entity.WildcardAll}, r.AccessibleStages("ELC", "ADV"))
}

func TestResolver_SuperUserSentinel(t *testing.T) {
	r := NewLoadedResolver(&entity.PermissionSnapshot{IsSuperUser: true})

	assert.True(t, r.IsSuperUser())
	stages := r.AccessibleStages("ILC", "ISS")
	assert.NotNil(t, stages)
	assert.Empty(t, stages)
	assert.True(t, r.HasStageAccess("ILC", "ISS", "anything"))
	assert.Equal(t, []string{entity.WildcardAll}, r.AccessibleActorTypes("ILC", "ISS"))
	assert.True(t, r.Access("ILC", "ISS").IsSuper())
}

func TestResolver_HasStageAccess(t *testing.T) {
	r := NewLoadedResolver(makerSnapshot())

	tests := []struct {
		name    string
		product string
		event   string
		stage   string
		want    bool
	}{
		{"granted stage", "ILC", "ISS", "Data Entry", true},
		{"case-insensitive stage", "ILC", "ISS", "data entry", true},
		{"inactive grant", "ILC", "ISS", "Final Approval", false},
		{"wildcard grant matches any stage", "ELC", "ADV", "Whatever Stage", true},
		{"other pair", "BG", "ISS", "Data Entry", false},
		{"empty event", "ILC", "", "Data Entry", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.HasStageAccess(tt.product, tt.event, tt.stage))
		})
	}
}

func TestResolver_AccessibleActorTypes(t *testing.T) {
	r := NewLoadedResolver(makerSnapshot())

	assert.Equal(t, []string{"Checker", "Maker"}, r.AccessibleActorTypes("ILC", "ISS"))
	assert.Equal(t, []string{entity.WildcardAll}, r.AccessibleActorTypes("ELC", "ADV"))
	assert.Empty(t, r.AccessibleActorTypes("BG", "ISS"))
}

func TestResolver_Access(t *testing.T) {
	r := NewLoadedResolver(makerSnapshot())

	access := r.Access("ILC", "ISS")
	assert.True(t, access.Allows(&entity.WorkflowStage{StageName: "Data Entry", ActorType: entity.ActorTypeMaker}))
	assert.True(t, access.Allows(&entity.WorkflowStage{StageName: "Checker Review", ActorType: entity.ActorTypeChecker}))
	assert.False(t, access.Allows(&entity.WorkflowStage{StageName: "Final Approval", ActorType: entity.ActorTypeAuthorization}))

	assert.True(t, r.Access("ELC", "ADV").IsSuper())
	assert.True(t, r.Access("BG", "ISS").IsEmpty())
}

func TestResolver_ScreenAccess(t *testing.T) {
	r := NewLoadedResolver(makerSnapshot())

	view, edit := r.ScreenAccess("dashboard")
	assert.True(t, view)
	assert.False(t, edit)

	view, _ = r.ScreenAccess("REPORTS")
	assert.False(t, view)
}

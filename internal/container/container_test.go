package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/tradeflow/internal/application/service"
	"github.com/garyjia/tradeflow/internal/domain/entity"
)

func testConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "tradeflow.db")
	cfg.Workflow.JanitorInterval = time.Hour
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Database.Path = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "database.path")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()), "second start")

	require.NotNil(t, c.Services())
	assert.NotNil(t, c.Services().Workflow)
	assert.NotNil(t, c.Services().Admin)
	assert.NotNil(t, c.Templates().Cache)
	assert.NotNil(t, c.Metrics())
	assert.Equal(t, 1, c.Workers().GetWorkerCount())

	health := c.Health(context.Background())
	assert.True(t, health.Overall, "%+v", health.Components)

	report := c.HealthReport(context.Background())
	assert.Equal(t, "ok", report["database"])
	assert.Equal(t, "ok", report["dispatcher"])
	assert.Equal(t, "ok", report["workers"])

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(context.Background()))
}

func TestContainer_WithoutCacheOrMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workflow.CacheTTL = 0
	cfg.Metrics.Enabled = false

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Nil(t, c.Templates().Cache)
	assert.Nil(t, c.Metrics())
	assert.Equal(t, 0, c.Workers().GetWorkerCount())
	assert.True(t, c.Health(context.Background()).Overall)
}

func TestContainer_EndToEnd(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	ctx := context.Background()
	repos := c.Repositories()

	tmpl := &entity.WorkflowTemplate{
		Name:         "Import LC issuance",
		ProductCode:  "ILC",
		EventCode:    "ISS",
		TriggerTypes: []string{entity.TriggerTypeManual},
	}
	require.NoError(t, repos.Template.Create(ctx, tmpl))
	for i, name := range []string{"Data Entry", "Limit Check", "Final Approval"} {
		require.NoError(t, repos.Stage.Create(ctx, &entity.WorkflowStage{
			TemplateID: tmpl.ID,
			StageOrder: i + 1,
			StageName:  name,
			ActorType:  entity.WildcardAll,
			StageType:  entity.StageTypeInput,
		}))
	}

	_, err = c.Services().Admin.UpsertPermissions(ctx, "maker-1", map[string]interface{}{
		"is_super_user": true,
	})
	require.NoError(t, err)

	res, err := c.Services().Workflow.Resolve(ctx, service.ResolveInput{
		UserID:      "maker-1",
		ProductCode: "ilc",
		EventCode:   "iss",
		Status:      "Data Entry Completed-Bank",
	})
	require.NoError(t, err)
	assert.Equal(t, "Limit Check", res.Target.StageName)

	view, err := c.Services().Workflow.OpenSession(ctx, service.OpenInput{
		ResolveInput: service.ResolveInput{UserID: "maker-1", ProductCode: "ILC", EventCode: "ISS"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Data Entry", view.Stage)

	result, err := c.Services().Workflow.SubmitPane(ctx, view.ID, "maker-1", map[string]interface{}{"amount": 100})
	require.NoError(t, err)
	assert.True(t, result.StageCompleted)
	assert.Equal(t, "Data Entry Completed-Bank", result.Status)

	stored, err := c.Services().Admin.GetTransaction(ctx, result.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, result.Status, stored.Record.Status)
	assert.Len(t, stored.History, 1)
}

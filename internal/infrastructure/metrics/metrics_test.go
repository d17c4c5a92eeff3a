package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/internal/domain/event"
	"github.com/garyjia/tradeflow/internal/domain/workflow"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	stage := &entity.WorkflowStage{ID: 1, StageName: "Data Entry"}
	m.ObserveResolution(workflow.StageTarget(&entity.WorkflowTemplate{ID: 1}, stage))
	m.ObserveResolution(workflow.EmptyTarget(nil, workflow.OutcomeNoTemplate))
	m.ObserveResolution(workflow.EmptyTarget(nil, workflow.OutcomeNoTemplate))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("STAGE", entity.RenderModeStatic)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("NO_TEMPLATE", entity.RenderModeStatic)))

	evt := event.NewEvent(event.TypeStatusChanged, "ILC-1", map[string]interface{}{event.KeyProductCode: "ilc"})
	m.RecordEvent(evt)
	m.ObserveHandler(evt, "metrics", nil)
	m.ObserveHandler(evt, "audit", errors.New("x"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues(string(event.TypeStatusChanged), "ILC")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handlerRunsTotal.WithLabelValues(string(event.TypeStatusChanged), "error")))

	m.RecordEvent(event.NewEvent(event.TypeTemplatesImported, "", map[string]interface{}{event.KeyCount: 3}))
	m.RecordEvent(event.NewEvent(event.TypePermissionsLoaded, "", nil))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.templatesImported))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.permissionLoads))

	m.SetOpenSessions(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.openSessions))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveResolution(workflow.EmptyTarget(nil, workflow.OutcomeComplete))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `tradeflow_stage_resolutions_total{outcome="COMPLETE",render_mode="static"} 1`))
	assert.Contains(t, body, "go_goroutines")
}

package lifecycle

import (
	"sort"
	"strings"

	"github.com/garyjia/tradeflow/internal/domain/entity"
)

// PanesFromFields maps each stage to its UI panes. Pane order follows the
// lowest field order seen for each pane name; a stage without named panes
// gets a single pane named after the stage.
func PanesFromFields(stages []*entity.WorkflowStage, fields map[int64][]*entity.StageField) map[int64][]string {
	panes := make(map[int64][]string, len(stages))
	for _, stage := range stages {
		panes[stage.ID] = stagePanes(stage, fields[stage.ID])
	}
	return panes
}

func stagePanes(stage *entity.WorkflowStage, fields []*entity.StageField) []string {
	first := make(map[string]int)
	var names []string
	for _, f := range fields {
		name := strings.TrimSpace(f.PaneName)
		if name == "" {
			continue
		}
		order, seen := first[name]
		if !seen {
			names = append(names, name)
			first[name] = f.FieldOrder
		} else if f.FieldOrder < order {
			first[name] = f.FieldOrder
		}
	}

	if len(names) == 0 {
		return []string{stage.StageName}
	}

	sort.SliceStable(names, func(i, j int) bool {
		return first[names[i]] < first[names[j]]
	})
	return names
}

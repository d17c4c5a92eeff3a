package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/garyjia/tradeflow/pkg/utils"
	"github.com/samber/lo"
)

// ErrInvalidDefinition is wrapped by every validation failure
var ErrInvalidDefinition = errors.New("invalid template definition")

// normalize fills defaults and checks a loaded definition: codes are
// upper-cased, stage orders default to their position, stage names are
// unique, and reject targets name a stage of the same template.
func normalize(def *entity.TemplateDefinition) error {
	tmpl := &def.Template
	tmpl.ProductCode = strings.ToUpper(strings.TrimSpace(tmpl.ProductCode))
	tmpl.EventCode = strings.ToUpper(strings.TrimSpace(tmpl.EventCode))
	if tmpl.ProductCode == "" || tmpl.EventCode == "" {
		return fmt.Errorf("%w: template %q needs product and event codes", ErrInvalidDefinition, tmpl.Name)
	}
	for _, code := range []string{tmpl.ProductCode, tmpl.EventCode} {
		if err := utils.ValidateCode(code); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
		}
	}
	if tmpl.Name == "" {
		tmpl.Name = tmpl.ProductCode + " " + tmpl.EventCode
	}
	if tmpl.Status == "" {
		tmpl.Status = entity.TemplateStatusActive
	}
	tmpl.TriggerTypes = lo.Uniq(lo.Compact(lo.Map(tmpl.TriggerTypes, func(s string, _ int) string {
		return strings.TrimSpace(s)
	})))
	if len(tmpl.TriggerTypes) == 0 {
		tmpl.TriggerTypes = []string{entity.TriggerTypeManual}
	}

	seen := make(map[string]bool, len(def.Stages))
	for i := range def.Stages {
		stage := &def.Stages[i]
		stage.StageName = strings.TrimSpace(stage.StageName)
		if stage.StageName == "" {
			return fmt.Errorf("%w: %s/%s stage %d has no name", ErrInvalidDefinition, tmpl.ProductCode, tmpl.EventCode, i+1)
		}
		key := strings.ToLower(stage.StageName)
		if seen[key] {
			return fmt.Errorf("%w: %s/%s duplicate stage %q", ErrInvalidDefinition, tmpl.ProductCode, tmpl.EventCode, stage.StageName)
		}
		seen[key] = true

		if stage.StageOrder == 0 {
			stage.StageOrder = i + 1
		}
		if stage.StageType == "" {
			stage.StageType = entity.StageTypeInput
		}
		stage.UIRenderMode = stage.RenderMode()
		for j := range stage.Fields {
			if stage.Fields[j].FieldType == "" {
				stage.Fields[j].FieldType = "text"
			}
			if stage.Fields[j].FieldOrder == 0 {
				stage.Fields[j].FieldOrder = j + 1
			}
		}
	}

	for _, stage := range def.Stages {
		if stage.RejectTo != "" && !seen[strings.ToLower(strings.TrimSpace(stage.RejectTo))] {
			return fmt.Errorf("%w: %s/%s stage %q rejects to unknown stage %q",
				ErrInvalidDefinition, tmpl.ProductCode, tmpl.EventCode, stage.StageName, stage.RejectTo)
		}
	}
	return nil
}

// splitList parses a comma or semicolon separated cell
func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	return lo.Compact(lo.Map(parts, func(p string, _ int) string { return strings.TrimSpace(p) }))
}

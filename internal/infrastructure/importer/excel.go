package importer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Workbook sheet names
const (
	SheetTemplates = "Templates"
	SheetStages    = "Stages"
	SheetFields    = "Fields"
)

// Column headers, matched case-insensitively
var (
	TemplateHeaders = []string{"Name", "Product Code", "Event Code", "Trigger Types", "Status"}
	StageHeaders    = []string{"Product Code", "Event Code", "Stage Order", "Stage Name", "Actor Type", "Stage Type", "UI Render Mode", "Rejectable", "Reject To"}
	FieldHeaders    = []string{"Product Code", "Event Code", "Stage Name", "Field Name", "Label", "Field Type", "Required", "Field Order", "Pane", "Options"}
)

// ExcelLoader reads template definitions from a workbook with a Templates
// sheet, a Stages sheet and an optional Fields sheet. Stage and field rows
// reference their template by product and event code.
type ExcelLoader struct {
	logger *zap.Logger
}

// NewExcelLoader creates an Excel loader
func NewExcelLoader(logger *zap.Logger) *ExcelLoader {
	return &ExcelLoader{logger: logger}
}

// Load implements port.TemplateLoader
func (l *ExcelLoader) Load(ctx context.Context, r io.Reader) ([]entity.TemplateDefinition, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	templateRows, err := readSheet(f, SheetTemplates, true)
	if err != nil {
		return nil, err
	}
	stageRows, err := readSheet(f, SheetStages, true)
	if err != nil {
		return nil, err
	}
	fieldRows, err := readSheet(f, SheetFields, false)
	if err != nil {
		return nil, err
	}

	var defs []entity.TemplateDefinition
	index := make(map[string]int)
	for _, row := range templateRows {
		tmpl := entity.WorkflowTemplate{
			Name:         row.get("name"),
			ProductCode:  strings.ToUpper(row.get("product code")),
			EventCode:    strings.ToUpper(row.get("event code")),
			TriggerTypes: splitList(row.get("trigger types")),
			Status:       row.get("status"),
		}
		key := pairKey(tmpl.ProductCode, tmpl.EventCode)
		if _, dup := index[key]; dup {
			return nil, fmt.Errorf("%w: %s row %d duplicates %s/%s", ErrInvalidDefinition, SheetTemplates, row.line, tmpl.ProductCode, tmpl.EventCode)
		}
		index[key] = len(defs)
		defs = append(defs, entity.TemplateDefinition{Template: tmpl})
	}

	for _, row := range stageRows {
		i, ok := index[pairKey(row.get("product code"), row.get("event code"))]
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d references unknown template %s/%s",
				ErrInvalidDefinition, SheetStages, row.line, row.get("product code"), row.get("event code"))
		}
		order, err := row.getInt("stage order")
		if err != nil {
			return nil, err
		}
		rejectable, err := row.getBool("rejectable")
		if err != nil {
			return nil, err
		}
		defs[i].Stages = append(defs[i].Stages, entity.StageDefinition{
			WorkflowStage: entity.WorkflowStage{
				StageOrder:   order,
				StageName:    row.get("stage name"),
				ActorType:    row.get("actor type"),
				StageType:    row.get("stage type"),
				UIRenderMode: strings.ToLower(row.get("ui render mode")),
				IsRejectable: rejectable,
			},
			RejectTo: row.get("reject to"),
		})
	}

	for _, row := range fieldRows {
		i, ok := index[pairKey(row.get("product code"), row.get("event code"))]
		if !ok {
			return nil, fmt.Errorf("%w: %s row %d references unknown template %s/%s",
				ErrInvalidDefinition, SheetFields, row.line, row.get("product code"), row.get("event code"))
		}
		stage := findStage(defs[i].Stages, row.get("stage name"))
		if stage == nil {
			return nil, fmt.Errorf("%w: %s row %d references unknown stage %q",
				ErrInvalidDefinition, SheetFields, row.line, row.get("stage name"))
		}
		required, err := row.getBool("required")
		if err != nil {
			return nil, err
		}
		order, err := row.getInt("field order")
		if err != nil {
			return nil, err
		}
		stage.Fields = append(stage.Fields, entity.StageField{
			FieldName:  row.get("field name"),
			Label:      row.get("label"),
			FieldType:  row.get("field type"),
			Required:   required,
			FieldOrder: order,
			PaneName:   row.get("pane"),
			Options:    splitList(row.get("options")),
		})
	}

	for i := range defs {
		if err := normalize(&defs[i]); err != nil {
			return nil, err
		}
	}

	l.logger.Info("Workbook parsed",
		zap.Int("templates", len(defs)),
		zap.Int("stage_rows", len(stageRows)),
		zap.Int("field_rows", len(fieldRows)))
	return defs, nil
}

func pairKey(productCode, eventCode string) string {
	return strings.ToUpper(strings.TrimSpace(productCode)) + "/" + strings.ToUpper(strings.TrimSpace(eventCode))
}

func findStage(stages []entity.StageDefinition, name string) *entity.StageDefinition {
	for i := range stages {
		if strings.EqualFold(stages[i].StageName, strings.TrimSpace(name)) {
			return &stages[i]
		}
	}
	return nil
}

// sheetRow is one data row keyed by lower-cased header
type sheetRow struct {
	sheet  string
	line   int
	values map[string]string
}

func (r sheetRow) get(column string) string {
	return strings.TrimSpace(r.values[column])
}

func (r sheetRow) getInt(column string) (int, error) {
	v := r.get(column)
	if v == "" {
		return 0, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s row %d column %q: %v", ErrInvalidDefinition, r.sheet, r.line, column, err)
	}
	return n, nil
}

func (r sheetRow) getBool(column string) (bool, error) {
	switch strings.ToLower(r.get(column)) {
	case "", "n", "no":
		return false, nil
	case "y", "yes":
		return true, nil
	}
	b, err := cast.ToBoolE(r.get(column))
	if err != nil {
		return false, fmt.Errorf("%w: %s row %d column %q: %v", ErrInvalidDefinition, r.sheet, r.line, column, err)
	}
	return b, nil
}

// readSheet returns the non-empty rows under the header row of sheet
func readSheet(f *excelize.File, sheet string, required bool) ([]sheetRow, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		if required {
			return nil, fmt.Errorf("%w: workbook has no %q sheet", ErrInvalidDefinition, sheet)
		}
		return nil, nil
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var out []sheetRow
	for n, cells := range rows[1:] {
		row := sheetRow{sheet: sheet, line: n + 2, values: make(map[string]string, len(headers))}
		empty := true
		for i, cell := range cells {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			row.values[headers[i]] = cell
			if strings.TrimSpace(cell) != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out, nil
}

var _ port.TemplateLoader = (*ExcelLoader)(nil)

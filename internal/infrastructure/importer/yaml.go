package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/garyjia/tradeflow/internal/application/port"
	"github.com/garyjia/tradeflow/internal/domain/entity"
	"gopkg.in/yaml.v3"
)

// yamlDocument is the top level of a YAML template file
type yamlDocument struct {
	Templates []entity.TemplateDefinition `yaml:"templates"`
}

// YAMLLoader reads template definitions from a YAML document:
//
//	templates:
//	  - template: {name: ILC Issuance, product_code: ILC, event_code: ISS, trigger_types: [Manual]}
//	    stages:
//	      - {stage_name: Data Entry, actor_type: Maker, stage_order: 1}
//	      - {stage_name: Final Approval, actor_type: Authorization, is_rejectable: true, reject_to: Data Entry}
type YAMLLoader struct{}

// NewYAMLLoader creates a YAML loader
func NewYAMLLoader() *YAMLLoader {
	return &YAMLLoader{}
}

// Load implements port.TemplateLoader
func (l *YAMLLoader) Load(ctx context.Context, r io.Reader) ([]entity.TemplateDefinition, error) {
	var doc yamlDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidDefinition)
		}
		return nil, fmt.Errorf("failed to decode template yaml: %w", err)
	}

	for i := range doc.Templates {
		if err := normalize(&doc.Templates[i]); err != nil {
			return nil, err
		}
	}
	return doc.Templates, nil
}

var _ port.TemplateLoader = (*YAMLLoader)(nil)

package port

import (
	"context"
	"io"

	"github.com/garyjia/tradeflow/internal/domain/entity"
)

// TemplateLoader parses template definitions from an import document
type TemplateLoader interface {
	Load(ctx context.Context, r io.Reader) ([]entity.TemplateDefinition, error)
}

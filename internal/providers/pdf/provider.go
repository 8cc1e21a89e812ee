package pdf

import (
	"context"
	"io"

	"github.com/smallbiznis/kpireport/internal/config"
	"go.uber.org/fx"
)

type Provider interface {
	GenerateKPIReport(ctx context.Context, data KPIReportData) (io.Reader, error)
}

// NoOpProvider renders nothing; it stands in when PDF output is disabled.
type NoOpProvider struct{}

func (p *NoOpProvider) GenerateKPIReport(ctx context.Context, data KPIReportData) (io.Reader, error) {
	return nil, nil
}

var Module = fx.Module("providers.pdf",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if !cfg.PDFEnabled {
		return &NoOpProvider{}
	}
	return New()
}

package providers

import (
	"github.com/smallbiznis/kpireport/internal/providers/pdf"
	"github.com/smallbiznis/kpireport/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	pdf.Module,
	storage.Module,
)

package subscription

import (
	"github.com/smallbiznis/kpireport/internal/config"
	"github.com/smallbiznis/kpireport/internal/instant"
	subscriptiondomain "github.com/smallbiznis/kpireport/internal/subscription/domain"
	"github.com/smallbiznis/kpireport/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(provideNormalizer),
	fx.Provide(provideVocabulary),
	fx.Provide(subscriptiondomain.NewDecoder),
	fx.Provide(service.NewResolver),
)

func provideNormalizer(cfg config.Config) (*instant.Normalizer, error) {
	return instant.New(cfg.Timezone)
}

func provideVocabulary(cfg config.ReportConfig) subscriptiondomain.Vocabulary {
	return cfg.Status.WithDefaults()
}

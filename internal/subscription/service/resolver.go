package service

import (
	"time"

	subscriptiondomain "github.com/smallbiznis/kpireport/internal/subscription/domain"
	"go.uber.org/fx"
)

type Params struct {
	fx.In

	Vocabulary subscriptiondomain.Vocabulary
}

// Resolver derives the lifecycle status of a subscription as of an instant.
type Resolver struct {
	vocab subscriptiondomain.Vocabulary
}

func NewResolver(p Params) *Resolver {
	return &Resolver{vocab: p.Vocabulary.WithDefaults()}
}

// NewDefaultResolver uses the built-in vendor vocabulary.
func NewDefaultResolver() *Resolver {
	return &Resolver{vocab: subscriptiondomain.DefaultVocabulary()}
}

// Resolve applies the status rules in priority order; the first match wins.
// A subscription without a created instant is never considered future.
func (r *Resolver) Resolve(sub subscriptiondomain.Subscription, asOf time.Time) subscriptiondomain.Status {
	lastStatus := sub.LastStatus

	switch {
	case sub.CreatedAt != nil && sub.CreatedAt.After(asOf):
		return subscriptiondomain.StatusFuture
	case sub.CancelledBy(asOf):
		return subscriptiondomain.StatusCanceled
	case r.vocab.IsOverdue(lastStatus):
		return subscriptiondomain.StatusOverdue
	case r.vocab.IsInactive(lastStatus):
		return subscriptiondomain.StatusInactive
	case r.vocab.IsCanceled(lastStatus):
		return subscriptiondomain.StatusCanceled
	default:
		return subscriptiondomain.StatusActive
	}
}

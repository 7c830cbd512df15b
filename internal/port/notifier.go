package port

import (
	"context"

	"github.com/hookbridge/hookbridge/internal/domain"
)

// Notifier posts a human-readable message about a pipeline outcome to a
// side channel. Fire and forget: implementations log their own failures.
type Notifier interface {
	Notify(ctx context.Context, outcome domain.Outcome)
}

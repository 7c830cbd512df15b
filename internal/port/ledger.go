package port

import (
	"context"

	"github.com/hookbridge/hookbridge/internal/domain"
)

// DeliveryLedger persists the outcome of each processed push event so
// failures swallowed at the HTTP boundary remain inspectable.
type DeliveryLedger interface {
	RecordOutcome(ctx context.Context, outcome domain.Outcome) error
}

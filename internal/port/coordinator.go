package port

import (
	"context"

	"github.com/hookbridge/hookbridge/internal/domain"
)

// ChangeDeliverer submits an ordered batch of change records to the build
// coordinator over one authenticated session. Delivery is strictly
// sequential: a record is only sent after the previous one was acknowledged.
// Called with a non-empty batch.
type ChangeDeliverer interface {
	Deliver(ctx context.Context, records []domain.ChangeRecord) error
}

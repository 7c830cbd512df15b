package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hookbridge/hookbridge/internal/domain"
	"github.com/hookbridge/hookbridge/internal/port"
)

// Pipeline runs the per-event processing chain: mirror sync, change
// extraction, sequential delivery. Every stage outcome is captured as a
// typed result so the handler can swallow failures at the HTTP boundary
// while logs, the ledger and tests still see the precise failure kind.
type Pipeline struct {
	mirror    port.MirrorSyncer
	deliverer port.ChangeDeliverer
	ledger    port.DeliveryLedger // optional, may be nil
	notifier  port.Notifier       // optional, may be nil
}

// NewPipeline wires the pipeline's collaborators. ledger and notifier may be
// nil when those side channels are not configured.
func NewPipeline(mirror port.MirrorSyncer, deliverer port.ChangeDeliverer, ledger port.DeliveryLedger, notifier port.Notifier) *Pipeline {
	return &Pipeline{mirror: mirror, deliverer: deliverer, ledger: ledger, notifier: notifier}
}

// Process handles one decoded push event to completion and reports how far
// it got. It never panics and never returns an error: the outcome carries
// the failure, the caller decides what to do with it.
func (p *Pipeline) Process(ctx context.Context, ev *domain.PushEvent) domain.Outcome {
	start := time.Now()
	outcome := domain.Outcome{
		EventID: uuid.NewString(),
		Owner:   ev.Repository.Owner.Name,
		Repo:    ev.Repository.Name,
		Ref:     ev.Ref,
		Stage:   domain.StageParsed,
	}

	outcome.Err = p.run(ctx, ev, &outcome)
	outcome.Duration = time.Since(start)
	p.record(outcome)
	return outcome
}

func (p *Pipeline) run(ctx context.Context, ev *domain.PushEvent, outcome *domain.Outcome) error {
	if err := ValidateEvent(ev); err != nil {
		return err
	}

	if err := p.mirror.Sync(ctx, ev.Repository.Owner.Name, ev.Repository.Name, ev.Repository.Private); err != nil {
		return err
	}
	outcome.Stage = domain.StageSynced

	records, err := ExtractChanges(ev)
	if err != nil {
		return err
	}
	outcome.Stage = domain.StageExtracted
	outcome.Records = len(records)

	if len(records) == 0 {
		outcome.Stage = domain.StageDelivered
		return nil
	}

	if err := p.deliverer.Deliver(ctx, records); err != nil {
		return err
	}
	outcome.Stage = domain.StageDelivered
	return nil
}

// record logs the outcome and hands it to the ledger and notifier. Both are
// best effort: their failures never affect the event's result.
func (p *Pipeline) record(outcome domain.Outcome) {
	if outcome.Failed() {
		slog.Error("event processing failed",
			"event_id", outcome.EventID,
			"owner", outcome.Owner,
			"repo", outcome.Repo,
			"ref", outcome.Ref,
			"stage", outcome.Stage,
			"error", outcome.Err,
		)
	} else {
		slog.Info("event processed",
			"event_id", outcome.EventID,
			"owner", outcome.Owner,
			"repo", outcome.Repo,
			"ref", outcome.Ref,
			"records", outcome.Records,
			"duration_ms", outcome.Duration.Milliseconds(),
		)
	}

	if p.ledger != nil {
		go func() {
			if err := p.ledger.RecordOutcome(context.Background(), outcome); err != nil {
				slog.Error("failed to record outcome", "event_id", outcome.EventID, "error", err)
			}
		}()
	}
	if p.notifier != nil {
		go p.notifier.Notify(context.Background(), outcome)
	}
}

package domain

import "time"

// Stage names a state of the per-event processing pipeline.
type Stage string

// Pipeline stages, in order.
const (
	StageReceived  Stage = "received"
	StageParsed    Stage = "parsed"
	StageSynced    Stage = "synced"
	StageExtracted Stage = "extracted"
	StageDelivered Stage = "delivered"
)

// Outcome is the captured result of processing one push event. Stage is the
// furthest stage the pipeline completed; a non-nil Err means the transition
// out of that stage failed and the event terminated there.
type Outcome struct {
	EventID  string
	Owner    string
	Repo     string
	Ref      string
	Stage    Stage
	Records  int
	Err      error
	Duration time.Duration
}

// Failed reports whether the pipeline terminated with an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

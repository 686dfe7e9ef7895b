package pipeline

// Outcome classifies how a stage run ended.
type Outcome string

const (
	// OutcomeCompleted means the stage ran and its output was recorded.
	OutcomeCompleted Outcome = "completed"
	// OutcomeSkipped means the output already existed and force was not set.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the stage returned an error; the stage watermark
	// did not advance.
	OutcomeFailed Outcome = "failed"
	// OutcomeCancelled means cancellation was observed before or during
	// the stage. Not an error; artifacts already written are kept.
	OutcomeCancelled Outcome = "cancelled"
)

// Result is the outcome of one stage run.
type Result struct {
	Outcome Outcome
	Err     error
}

func completed() Result          { return Result{Outcome: OutcomeCompleted} }
func skipped() Result            { return Result{Outcome: OutcomeSkipped} }
func failed(err error) Result    { return Result{Outcome: OutcomeFailed, Err: err} }
func cancelled(err error) Result { return Result{Outcome: OutcomeCancelled, Err: err} }

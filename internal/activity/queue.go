package activity

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
)

const maxRecordAttempts = 5

// RecordActivityArgs is the job that persists one activity row.
type RecordActivityArgs struct {
	Activity model.Activity `json:"activity"`
}

func (RecordActivityArgs) Kind() string { return "record_activity" }

// Inserter is satisfied by *river.Client.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// QueueRecorder enqueues activities so the caller never waits on the activity table.
type QueueRecorder struct {
	inserter Inserter
}

func NewQueueRecorder(inserter Inserter) *QueueRecorder {
	return &QueueRecorder{inserter: inserter}
}

func (r *QueueRecorder) Record(ctx context.Context, a model.Activity) error {
	_, err := r.inserter.Insert(ctx, RecordActivityArgs{Activity: a}, &river.InsertOpts{MaxAttempts: maxRecordAttempts})
	if err != nil {
		return fmt.Errorf("enqueue activity: %w", err)
	}
	return nil
}

// Worker writes queued activities to the store. A failed insert is retried by the queue.
type Worker struct {
	river.WorkerDefaults[RecordActivityArgs]
	store Store
}

func NewWorker(store Store) *Worker {
	return &Worker{store: store}
}

func (w *Worker) Work(ctx context.Context, job *river.Job[RecordActivityArgs]) error {
	id, err := w.store.Insert(ctx, job.Args.Activity)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	log.Debug().
		Int64("job_id", job.ID).
		Int64("activity_id", id).
		Str("target_id", job.Args.Activity.TargetID).
		Msg("activity recorded")
	return nil
}

// Package activity delivers audit facts produced by the ledger after each commit.
// Every sink is best-effort from the caller's point of view.
package activity

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/loyalty-ledger/internal/model"
)

// Recorder receives one activity.
type Recorder interface {
	Record(ctx context.Context, a model.Activity) error
}

// Store persists activities.
type Store interface {
	Insert(ctx context.Context, a model.Activity) (int64, error)
}

// LogRecorder writes every activity to the structured log.
type LogRecorder struct {
	logger zerolog.Logger
}

// NewLogRecorder logs through the global zerolog logger.
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{logger: log.Logger}
}

// NewLogRecorderWithLogger logs through logger. Used in tests.
func NewLogRecorderWithLogger(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, a model.Activity) error {
	r.logger.Info().
		Str("actor_id", a.ActorID).
		Str("actor_role", string(a.ActorRole)).
		Str("target_id", a.TargetID).
		Str("target_role", string(a.TargetRole)).
		Int64("points_delta", a.PointsDelta).
		Time("occurred_at", a.OccurredAt).
		Msg(a.Description)
	return nil
}

// StoreRecorder writes the activity row synchronously. It is used when the job queue is disabled.
type StoreRecorder struct {
	store Store
}

func NewStoreRecorder(store Store) *StoreRecorder {
	return &StoreRecorder{store: store}
}

func (r *StoreRecorder) Record(ctx context.Context, a model.Activity) error {
	if _, err := r.store.Insert(ctx, a); err != nil {
		return fmt.Errorf("store activity: %w", err)
	}
	return nil
}

// Multi fans an activity out to every recorder. All recorders run even when one fails.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, a model.Activity) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

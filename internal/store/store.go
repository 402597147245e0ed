// Package store provides durable keyed storage for prediction records.
// It carries no business logic: uniqueness by match ID, whole-record
// overwrite on put, and a one-shot predicate scan are the entire contract.
package store

import (
	"context"

	"github.com/tipgate/tipgate/internal/prediction"
)

// Store is the entity store contract the cache engine builds on.
//
// Put overwrites the whole record keyed by MatchID and stamps LastUpdated
// with the write time; there is no partial-field update. Concurrent puts
// for the same key serialize to last-writer-wins — a reader never observes
// an interleaved record. Get and Delete return prediction.ErrNotFound for
// unknown keys. Scan visits every live record exactly once per call,
// returning those the keep predicate accepts; a nil predicate keeps all.
// Infrastructure failures wrap prediction.ErrStoreUnavailable.
type Store interface {
	Put(ctx context.Context, p prediction.Prediction) (prediction.Prediction, error)
	Get(ctx context.Context, matchID int64) (prediction.Prediction, error)
	Delete(ctx context.Context, matchID int64) error
	Scan(ctx context.Context, keep func(prediction.Prediction) bool) ([]prediction.Prediction, error)
	Size(ctx context.Context) (int64, error)
	Close(ctx context.Context) error
}

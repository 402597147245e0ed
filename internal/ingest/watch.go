// Package ingest feeds manual-entry prediction documents into the cache
// engine. A drop folder is watched for JSON payloads; each created or
// rewritten file is classified and upserted. Ingestion failures are
// reported and skipped — a malformed document never stops the feed.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tipgate/tipgate/internal/classify"
	"github.com/tipgate/tipgate/internal/prediction"
)

// debounceWindow coalesces the write bursts editors and atomic-save
// tools produce for a single document.
const debounceWindow = 200 * time.Millisecond

// Upserter is the slice of the cache engine the feed needs.
type Upserter interface {
	Upsert(ctx context.Context, raw classify.RawPrediction) (prediction.Prediction, error)
}

// FeedWatcher monitors the drop folder until stopped. Stop must be called
// to release filesystem resources.
type FeedWatcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for the underlying goroutine to exit.
func (w *FeedWatcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// Watch ingests every JSON document already present in the folder, then
// wires fsnotify so later drops and rewrites flow into the engine.
func Watch(ctx context.Context, folder string, sink Upserter, logger *slog.Logger) (*FeedWatcher, error) {
	if sink == nil {
		return nil, errors.New("ingest: upserter required")
	}
	if strings.TrimSpace(folder) == "" {
		return nil, errors.New("ingest: folder required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("component", "ingest"))

	root, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("ingest: resolve folder: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("ingest: stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ingest: %s is not a directory", root)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ingest: watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		cancel()
		return nil, fmt.Errorf("ingest: watch %s: %w", root, err)
	}

	ingestAll(watchCtx, root, sink, logger)

	done := make(chan struct{})
	feed := &FeedWatcher{cancel: cancel, done: done}

	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warn("watcher close failed", slog.Any("error", err))
			}
		}()

		pending := make(map[string]struct{})
		var flush <-chan time.Time

		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
					continue
				}
				if strings.ToLower(filepath.Ext(event.Name)) != ".json" {
					continue
				}
				pending[event.Name] = struct{}{}
				flush = time.After(debounceWindow)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher error", slog.Any("error", err))
			case <-flush:
				for path := range pending {
					ingestFile(watchCtx, path, sink, logger)
				}
				pending = make(map[string]struct{})
				flush = nil
			}
		}
	}()

	return feed, nil
}

func ingestAll(ctx context.Context, root string, sink Upserter, logger *slog.Logger) {
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Warn("initial folder read failed", slog.Any("error", err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".json" {
			continue
		}
		ingestFile(ctx, filepath.Join(root, entry.Name()), sink, logger)
	}
}

// ingestFile accepts either a single payload object or an array of them.
func ingestFile(ctx context.Context, path string, sink Upserter, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Renames surface as events for paths that no longer exist.
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		logger.Warn("feed document unreadable", slog.String("path", path), slog.Any("error", err))
		return
	}

	payloads, err := decodePayloads(data)
	if err != nil {
		logger.Warn("feed document malformed", slog.String("path", path), slog.Any("error", err))
		return
	}

	for _, raw := range payloads {
		stored, err := sink.Upsert(ctx, raw)
		if err != nil {
			logger.Warn("feed upsert rejected",
				slog.String("path", path),
				slog.Int64("match_id", raw.MatchID),
				slog.Any("error", err))
			continue
		}
		logger.Info("feed prediction ingested",
			slog.String("path", path),
			slog.Int64("match_id", stored.MatchID),
			slog.String("category", string(stored.Category)))
	}
}

func decodePayloads(data []byte) ([]classify.RawPrediction, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var batch []classify.RawPrediction
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, err
		}
		return batch, nil
	}
	var single classify.RawPrediction
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []classify.RawPrediction{single}, nil
}

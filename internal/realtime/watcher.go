// Package realtime pushes fresh program snapshots to subscribers whenever the
// program's modules, sessions or exercises change.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"alcyxob/program-studio/internal/domain"
	"alcyxob/program-studio/internal/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultCloseTimeout = 5 * time.Second

// ChangeEvent describes one write seen on a watched collection.
type ChangeEvent struct {
	Collection string             `json:"collection"`
	Operation  string             `json:"operation"`
	DocumentID primitive.ObjectID `json:"documentId"`
	// ModuleID and SessionID are set when the changed document carries them.
	ModuleID  primitive.ObjectID `json:"moduleId,omitempty"`
	SessionID primitive.ObjectID `json:"sessionId,omitempty"`
	// Fields names what an update set, Removed what it unset. Both are empty
	// for inserts and deletes.
	Fields  []string `json:"fields,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// FlagOnly reports whether the event only stored a completeness flag.
// Those writes come from reconciliation and must not trigger another one.
// Clearing the flag is not flag-only: it is how a writer marks a node stale.
func (e ChangeEvent) FlagOnly() bool {
	if e.Operation != "update" || len(e.Fields) == 0 || len(e.Removed) > 0 {
		return false
	}
	for _, f := range e.Fields {
		if f != "isComplete" && f != "updatedAt" {
			return false
		}
	}
	return true
}

// FlagCleared reports whether the event unset the completeness flag.
func (e ChangeEvent) FlagCleared() bool {
	if e.Operation != "update" {
		return false
	}
	for _, f := range e.Removed {
		if f == "isComplete" {
			return true
		}
	}
	return false
}

// Stream yields change events until ctx ends or the stream fails.
type Stream interface {
	Next(ctx context.Context) bool
	Event() ChangeEvent
	Err() error
	Close(ctx context.Context) error
}

// ChangeSource opens a change stream scoped to one program.
type ChangeSource interface {
	WatchProgram(ctx context.Context, programID primitive.ObjectID) (Stream, error)
}

// Snapshot is the full content tree of a program at one point in time.
type Snapshot struct {
	ProgramID primitive.ObjectID `json:"programId"`
	Modules   []domain.Module    `json:"modules"`
	Sessions  []domain.Session   `json:"sessions"`
	Exercises []domain.Exercise  `json:"exercises"`
	// Change is the event that triggered this snapshot; nil for the first one.
	Change *ChangeEvent `json:"change,omitempty"`
}

// SnapshotLoader reads the current tree of a program.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, programID primitive.ObjectID) (*Snapshot, error)
}

// ChangeHook is told about every event before the snapshot is reloaded.
type ChangeHook func(ctx context.Context, programID primitive.ObjectID, ev ChangeEvent)

// Watcher turns change streams into snapshot deliveries.
type Watcher struct {
	src    ChangeSource
	loader SnapshotLoader
	hook   ChangeHook
	log    *logger.Logger
}

func NewWatcher(src ChangeSource, loader SnapshotLoader, hook ChangeHook, log *logger.Logger) *Watcher {
	return &Watcher{src: src, loader: loader, hook: hook, log: log.With("component", "realtime.watcher")}
}

// Subscribe delivers an initial snapshot and then one snapshot per change.
// onError is called at most once, after which the subscription ends.
// No delivery starts after the returned unsubscribe func has been called.
func (w *Watcher) Subscribe(parent context.Context, programID primitive.ObjectID, onData func(*Snapshot), onError func(error)) (unsubscribe func()) {
	ctx, cancel := context.WithCancel(parent)
	var once sync.Once
	unsubscribe = func() { once.Do(cancel) }

	deliver := func(s *Snapshot) {
		if ctx.Err() != nil {
			return
		}
		onData(s)
	}
	fail := func(err error) {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return
		}
		if onError != nil {
			onError(err)
		}
	}

	go func() {
		defer unsubscribe()

		// Open the stream before the first load so no change falls in between.
		stream, err := w.src.WatchProgram(ctx, programID)
		if err != nil {
			fail(err)
			return
		}
		defer func() {
			closeCtx, cancelClose := context.WithTimeout(context.Background(), defaultCloseTimeout)
			defer cancelClose()
			_ = stream.Close(closeCtx)
		}()

		snap, err := w.loader.LoadSnapshot(ctx, programID)
		if err != nil {
			fail(err)
			return
		}
		deliver(snap)

		for stream.Next(ctx) {
			ev := stream.Event()
			if w.hook != nil {
				w.hook(ctx, programID, ev)
			}
			snap, err := w.loader.LoadSnapshot(ctx, programID)
			if err != nil {
				fail(err)
				return
			}
			snap.Change = &ev
			deliver(snap)
		}
		if err := stream.Err(); err != nil {
			w.log.Warn("change stream ended", "program_id", programID.Hex(), "error", err)
			fail(err)
		}
	}()
	return unsubscribe
}

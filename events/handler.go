package events

import (
	"context"
	"sync"

	"github.com/pitabwire/util"

	"github.com/huhn511/arche/internal"
)

// MissingTranslationRecorder tallies missing translation reports per
// (lang, code) pair, giving operators a list of gaps to fill.
type MissingTranslationRecorder struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMissingTranslationRecorder() *MissingTranslationRecorder {
	return &MissingTranslationRecorder{counts: map[string]int64{}}
}

func (r *MissingTranslationRecorder) Handle(ctx context.Context, metadata map[string]string, payload []byte) error {
	if metadata[EventTypeHeader] != EventTypeMissingTranslation {
		return nil
	}

	var event MissingTranslationEvent
	if err := internal.Unmarshal(payload, &event); err != nil {
		return err
	}

	key := event.Lang + "/" + event.Code

	r.mu.Lock()
	r.counts[key]++
	count := r.counts[key]
	r.mu.Unlock()

	util.Log(ctx).
		WithField("lang", event.Lang).
		WithField("code", event.Code).
		WithField("occurrences", count).
		Warn("translation missing")
	return nil
}

// Snapshot copies the current tallies keyed by lang/code.
func (r *MissingTranslationRecorder) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[string]int64, len(r.counts))
	for key, count := range r.counts {
		snapshot[key] = count
	}
	return snapshot
}

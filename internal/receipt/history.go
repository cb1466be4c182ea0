package receipt

import (
	"log/slog"
	"time"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// HistoryRecorder is a Publisher that records every finished item in a DB.
// Entries are an audit trail; nothing is resumed or retried from them.
type HistoryRecorder struct {
	db         DB
	timeSource TimeSource
}

// NewHistoryRecorder creates a HistoryRecorder using the wall clock
func NewHistoryRecorder(db DB) *HistoryRecorder {
	return NewHistoryRecorderWithTime(db, &defaultTimeSource{})
}

// NewHistoryRecorderWithTime creates a HistoryRecorder with a custom time source for testing
func NewHistoryRecorderWithTime(db DB, timeSrc TimeSource) *HistoryRecorder {
	return &HistoryRecorder{db: db, timeSource: timeSrc}
}

// StateChanged ignores intermediate states
func (h *HistoryRecorder) StateChanged(string, []State) {}

// BatchDone stores one entry per terminal item
func (h *HistoryRecorder) BatchDone(batchID string, snapshot []State) {
	now := h.timeSource.Now()
	entries := make([]*HistoryEntry, 0, len(snapshot))
	for _, state := range snapshot {
		if !state.Stage.Terminal() {
			continue
		}
		entry := &HistoryEntry{
			BatchID:    batchID,
			ItemID:     state.ID,
			Filename:   state.Filename,
			StoredID:   state.StoredID,
			Outcome:    state.Outcome,
			Error:      state.Error,
			FinishedAt: now,
		}
		if state.Record != nil {
			entry.Merchant = state.Record.Merchant
			entry.Date = state.Record.Date
			entry.Total = state.Record.Total
		}
		entries = append(entries, entry)
	}

	if err := h.db.SaveEntries(entries); err != nil {
		slog.Error("Failed to record batch history", "batch_id", batchID, "error", err)
	}
}

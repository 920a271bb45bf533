package correlation

import (
	"time"

	"seclog/pkg/models"
)

// window is an append-only list of occurrences bounded by a time span.
// Entries strictly newer than now-span survive a prune.
type window struct {
	span    time.Duration
	entries []occurrence
}

type occurrence struct {
	at    time.Time
	event *models.Event
}

func (w *window) add(at time.Time, event *models.Event) {
	w.entries = append(w.entries, occurrence{at: at, event: event})
}

func (w *window) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	idx := 0
	for idx < len(w.entries) {
		if w.entries[idx].at.After(cutoff) {
			break
		}
		idx++
	}
	if idx > 0 {
		w.entries = append(w.entries[:0:0], w.entries[idx:]...)
	}
}

func (w *window) len() int {
	return len(w.entries)
}

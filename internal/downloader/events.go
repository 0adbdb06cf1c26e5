package downloader

import (
	"github.com/cesargomez89/tracksync/internal/domain"
	"github.com/cesargomez89/tracksync/internal/fetcher"
)

type EventType string

const (
	EventState    EventType = "state"
	EventProgress EventType = "progress"
)

// Event is one message from a worker to whoever renders the run.
type Event struct {
	Type     EventType          `json:"type"`
	Result   domain.TrackResult `json:"result"`
	Progress fetcher.Progress   `json:"progress"`
}

func (w *Worker) emitState(r domain.TrackResult) {
	if w.events == nil {
		return
	}
	w.events <- Event{Type: EventState, Result: r}
}

func (w *Worker) emitProgress(t domain.Track, p fetcher.Progress) {
	if w.events == nil {
		return
	}
	select {
	case w.events <- Event{Type: EventProgress, Result: domain.TrackResult{Track: t, Status: domain.JobStatusRunning}, Progress: p}:
	default:
	}
}

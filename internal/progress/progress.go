// Package progress fans progress events out to listeners.
package progress

import (
	"sync"

	"github.com/rs/zerolog/log"

	"ImageHarvester/internal/models"
)

// Sink receives progress events. Emit must not block for long; the
// orchestrators call it from their worker goroutines.
type Sink interface {
	Emit(models.ProgressEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(models.ProgressEvent)

func (f SinkFunc) Emit(e models.ProgressEvent) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(models.ProgressEvent) {})

// Broadcaster delivers each event to every subscribed listener.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []Sink
}

// Subscribe adds a listener.
func (b *Broadcaster) Subscribe(s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, s)
}

func (b *Broadcaster) Emit(e models.ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.listeners {
		l.Emit(e)
	}
}

// Channel returns a listener that forwards events to a buffered channel,
// dropping events when the reader falls behind.
func Channel(size int) (Sink, <-chan models.ProgressEvent) {
	ch := make(chan models.ProgressEvent, size)
	return SinkFunc(func(e models.ProgressEvent) {
		select {
		case ch <- e:
		default:
		}
	}), ch
}

// Logger writes events to the global logger at info level.
func Logger() Sink {
	return SinkFunc(func(e models.ProgressEvent) {
		log.Info().
			Str("stage", string(e.Stage)).
			Int("current", e.Current).
			Int("total", e.Total).
			Int("progress", e.ProgressPct).
			Msg(e.Message)
	})
}

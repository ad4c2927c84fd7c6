package seeder

import (
	"context"
	"sync"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

// Broadcaster keeps the full progress history of a run and wakes
// subscribers when it grows. Publish never blocks on a slow reader.
type Broadcaster struct {
	mu      sync.Mutex
	history []types.ProgressEvent
	notify  chan struct{}
	closed  bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{notify: make(chan struct{})}
}

// Publish numbers the event and appends it. Events published after Close are dropped.
func (b *Broadcaster) Publish(ev types.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	ev.Seq = len(b.history) + 1
	b.history = append(b.history, ev)
	close(b.notify)
	b.notify = make(chan struct{})
}

func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.notify)
}

func (b *Broadcaster) History() []types.ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]types.ProgressEvent(nil), b.history...)
}

func (b *Broadcaster) since(cursor int) ([]types.ProgressEvent, <-chan struct{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var events []types.ProgressEvent
	if cursor < len(b.history) {
		events = append(events, b.history[cursor:]...)
	}
	return events, b.notify, b.closed
}

// Subscribe replays the history and then follows new events. The channel
// is closed once the broadcaster is closed and drained, or when ctx ends.
func (b *Broadcaster) Subscribe(ctx context.Context) <-chan types.ProgressEvent {
	out := make(chan types.ProgressEvent, 16)
	go func() {
		defer close(out)
		cursor := 0
		for {
			events, wait, closed := b.since(cursor)
			for _, ev := range events {
				select {
				case out <- ev:
					cursor++
				case <-ctx.Done():
					return
				}
			}
			if closed && len(events) == 0 {
				return
			}
			if len(events) > 0 {
				continue
			}
			select {
			case <-wait:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

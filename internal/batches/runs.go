package batches

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/rapport/internal/batch"
)

// run is the in-memory state of a batch while its coordinator is running.
// Progress is published from the coordinator's aggregator goroutine.
type run struct {
	id          uuid.UUID
	source      string
	concurrency int
	started     time.Time
	cancel      context.CancelFunc

	mu       sync.Mutex
	progress batch.Progress
	subs     map[chan batch.Progress]struct{}
	done     chan struct{}
}

func newRun(id uuid.UUID, source string, submitted, concurrency int, cancel context.CancelFunc) *run {
	return &run{
		id:          id,
		source:      source,
		concurrency: concurrency,
		started:     time.Now(),
		cancel:      cancel,
		progress:    batch.Progress{BatchID: id, Submitted: submitted},
		subs:        make(map[chan batch.Progress]struct{}),
		done:        make(chan struct{}),
	}
}

// publish records p and offers it to every subscriber. A subscriber that
// has not consumed the previous update gets it replaced, so readers always
// see the latest progress without blocking the aggregator.
func (r *run) publish(p batch.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = p
	for ch := range r.subs {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
	}
}

func (r *run) snapshot() Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fromProgress(r.progress, r.source, r.concurrency, r.started)
}

// subscribe returns a channel that receives the current progress
// immediately and every update after it. The channel is closed when the
// run finishes or the returned release func is called.
func (r *run) subscribe() (<-chan batch.Progress, func()) {
	ch := make(chan batch.Progress, 1)

	r.mu.Lock()
	if r.subs == nil {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	ch <- r.progress
	r.subs[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if _, ok := r.subs[ch]; ok {
				delete(r.subs, ch)
				close(ch)
			}
		})
	}
	return ch, release
}

// finish closes every subscription and marks the run done.
func (r *run) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for ch := range r.subs {
		close(ch)
	}
	r.subs = nil
	close(r.done)
}

type registry struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*run
}

func newRegistry() *registry {
	return &registry{runs: make(map[uuid.UUID]*run)}
}

func (g *registry) add(r *run) {
	g.mu.Lock()
	g.runs[r.id] = r
	g.mu.Unlock()
}

func (g *registry) get(id uuid.UUID) (*run, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.runs[id]
	return r, ok
}

func (g *registry) remove(id uuid.UUID) {
	g.mu.Lock()
	delete(g.runs, id)
	g.mu.Unlock()
}

func (g *registry) count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runs)
}

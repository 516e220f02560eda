package supervisor

import (
	"sync"

	"github.com/codecoder/codecoder/internal/event"
)

// subscriberQueueSize is the default bounded per-subscriber event buffer.
const subscriberQueueSize = 256

// historyCap bounds how many past events per task fanout retains for
// subscribe(since_seq) replay; a task's whole lifetime rarely emits more
// than a few dozen events, so this is a generous ceiling rather than a
// realistic limit.
const historyCap = 1000

// taskLog is one task's sequence counter plus its bounded replay history.
type taskLog struct {
	nextSeq int
	history []event.Event
	subs    map[uint64]chan event.Event
}

// fanout delivers task-scoped events to bounded per-subscriber queues,
// dropping (and closing) the slowest subscriber rather than blocking the
// task that produced the event. It also assigns each task-scoped event a
// strictly increasing per-task sequence number and retains a bounded
// history so a late subscriber can ask to replay events since a given seq.
type fanout struct {
	mu    sync.Mutex
	tasks map[string]*taskLog
	next  uint64
}

func newFanout() *fanout {
	return &fanout{tasks: make(map[string]*taskLog)}
}

// subscribe returns a channel of events for taskID and an unsubscribe func.
// When sinceSeq > 0, retained history events with Seq > sinceSeq are queued
// onto the channel in order before subscribe returns, up to the channel's
// subscriberQueueSize buffer; retained events beyond that, and events
// already trimmed from the history, are not replayed.
func (f *fanout) subscribe(taskID string, sinceSeq int) (<-chan event.Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	id := f.next
	ch := make(chan event.Event, subscriberQueueSize)

	tl := f.tasks[taskID]
	if tl == nil {
		tl = &taskLog{subs: make(map[uint64]chan event.Event)}
		f.tasks[taskID] = tl
	}

	if sinceSeq > 0 {
		for _, ev := range tl.history {
			if ev.Seq <= sinceSeq {
				continue
			}
			select {
			case ch <- ev:
			default:
				// Replay history exceeds the subscriber buffer; stop here
				// rather than block subscribe() itself.
			}
		}
	}

	tl.subs[id] = ch
	return ch, func() { f.unsubscribe(taskID, id) }
}

func (f *fanout) unsubscribe(taskID string, id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tl, ok := f.tasks[taskID]; ok {
		if ch, ok := tl.subs[id]; ok {
			close(ch)
			delete(tl.subs, id)
		}
		if len(tl.subs) == 0 && len(tl.history) == 0 {
			delete(f.tasks, taskID)
		}
	}
}

// deliver assigns ev the task's next sequence number, retains it in the
// bounded replay history, and fans it out to every current subscriber of
// taskID. A subscriber whose queue is full is dropped (its channel closed);
// no drop reason is delivered to it. The producer never blocks.
func (f *fanout) deliver(taskID string, ev event.Event) {
	f.mu.Lock()
	tl := f.tasks[taskID]
	if tl == nil {
		tl = &taskLog{subs: make(map[uint64]chan event.Event)}
		f.tasks[taskID] = tl
	}

	tl.nextSeq++
	ev.Seq = tl.nextSeq

	tl.history = append(tl.history, ev)
	if len(tl.history) > historyCap {
		tl.history = tl.history[len(tl.history)-historyCap:]
	}

	var slow []uint64
	for id, ch := range tl.subs {
		select {
		case ch <- ev:
		default:
			slow = append(slow, id)
		}
	}
	for _, id := range slow {
		if ch, ok := tl.subs[id]; ok {
			close(ch)
			delete(tl.subs, id)
		}
	}
	f.mu.Unlock()
}

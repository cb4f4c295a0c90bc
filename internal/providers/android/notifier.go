package android

import "sync"

// notifier fans status changes out to subscribers. Slow subscribers only
// ever see the most recent status.
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Status
}

func (n *notifier) subscribe() (<-chan Status, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]chan Status)
	}
	id := n.next
	n.next++
	ch := make(chan Status, 1)
	n.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs, id)
			close(ch)
		})
	}
}

func (n *notifier) publish(s Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

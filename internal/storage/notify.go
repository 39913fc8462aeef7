package storage

import "sync"

// Notifier fans out change signals per collection. A watcher channel holds at
// most one pending signal, so bursts of writes collapse into one wake-up.
type Notifier struct {
	mu       sync.Mutex
	next     int
	watchers map[int]watcher
}

type watcher struct {
	collection Collection
	ch         chan struct{}
}

func newNotifier() *Notifier {
	return &Notifier{watchers: make(map[int]watcher)}
}

// Watch returns a channel that receives a signal after each committed write
// to c, and a cancel func that stops delivery and closes the channel.
func (n *Notifier) Watch(c Collection) (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan struct{}, 1)
	n.watchers[id] = watcher{collection: c, ch: ch}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.watchers, id)
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (n *Notifier) publish(cs ...Collection) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, w := range n.watchers {
		for _, c := range cs {
			if w.collection != c {
				continue
			}
			select {
			case w.ch <- struct{}{}:
			default:
			}
		}
	}
}

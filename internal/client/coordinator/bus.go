package coordinator

import "sync"

// bus fans events out to subscribers in publish order. Each subscriber has its own
// unbounded queue, so a slow reader never blocks Publish or other readers.
// Subscribers only see events published after they subscribed.
type bus struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

type subscriber struct {
	mu    sync.Mutex
	queue []Event

	wake chan struct{}
	done chan struct{}
	out  chan Event

	once sync.Once
}

func newBus() *bus {
	return &bus{subs: make(map[uint64]*subscriber)}
}

// subscribe returns a channel of future events and a function that ends the
// subscription and closes the channel.
func (b *bus) subscribe() (<-chan Event, func()) {
	s := &subscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan Event),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.out)
		return s.out, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	go s.run()

	return s.out, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		s.stop()
	}
}

func (b *bus) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs {
		s.push(e)
	}
}

func (b *bus) close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)
	b.closed = true
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

func (s *subscriber) push(e Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

func (s *subscriber) run() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		e := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- e:
		case <-s.done:
			return
		}
	}
}

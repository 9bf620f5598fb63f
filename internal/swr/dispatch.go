package swr

import "sync"

type delivery struct {
	sub     *Subscription
	result  Result
	version uint64
}

// dispatcher delivers results to listeners one at a time, in the order they
// were committed. Listeners may call back into the store.
type dispatcher struct {
	mu      sync.Mutex
	queue   []delivery
	wake    chan struct{}
	stopped bool
	done    chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) push(dl delivery) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, dl)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for range d.wake {
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				stopped := d.stopped
				d.mu.Unlock()
				if stopped {
					return
				}
				break
			}
			batch := d.queue
			d.queue = nil
			d.mu.Unlock()

			for _, dl := range batch {
				deliver(dl)
			}
		}
	}
}

func deliver(dl delivery) {
	sub := dl.sub
	if dl.version <= sub.version || !sub.Active() {
		return
	}
	sub.version = dl.version
	sub.listener(dl.result)
}

// close delivers what is queued and stops the dispatcher.
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	<-d.done
}

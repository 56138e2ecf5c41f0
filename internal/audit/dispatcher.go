package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Options tunes a Dispatcher.
//
// With DropIfFull set, Emit never waits: an event that does not fit in the queue is
// counted and passed to OnDrop. Otherwise Emit waits for queue space until ctx is done.
type Options struct {
	BufferSize int
	DropIfFull bool
	OnDrop     func(Event)
}

// Dispatcher queues events and delivers them to one Sink from a single goroutine, in
// emission order. A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	sink   Sink
	opts   Options
	queue  chan Event
	stop   chan struct{}
	exited chan struct{}

	dropped  atomic.Uint64
	panicked atomic.Uint64
	closing  atomic.Bool
	once     sync.Once
}

// NewDispatcher starts the delivery goroutine. A nil sink discards events.
func NewDispatcher(sink Sink, opts Options) *Dispatcher {
	if sink == nil {
		sink = NoOpSink{}
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1
	}
	d := &Dispatcher{
		sink:   sink,
		opts:   opts,
		queue:  make(chan Event, opts.BufferSize),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.exited)
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver isolates the loop from a panicking sink.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if recover() != nil {
			d.panicked.Add(1)
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit queues ev. Events emitted after Close are discarded.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.opts.DropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
			if d.opts.OnDrop != nil {
				d.opts.OnDrop(ev)
			}
		}
		return
	}

	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close stops accepting events, delivers what is queued and waits for the loop to exit.
// It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		<-d.exited
	})
}

// Dropped counts events discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkPanics counts deliveries aborted by a panicking sink.
func (d *Dispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panicked.Load()
}

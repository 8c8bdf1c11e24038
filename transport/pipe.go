// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package transport

import (
	"context"
	"sync"
)

// Bus is a set of named broadcast channels inside one process.
type Bus struct {
	mu       sync.Mutex
	channels map[string]map[*Pipe]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{channels: make(map[string]map[*Pipe]struct{})}
}

// DefaultBus is the process-wide bus used when no bus is given.
var DefaultBus = NewBus()

func (b *Bus) join(p *Pipe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members, ok := b.channels[p.name]
	if !ok {
		members = make(map[*Pipe]struct{})
		b.channels[p.name] = members
	}
	members[p] = struct{}{}
}

func (b *Bus) leave(p *Pipe) {
	b.mu.Lock()
	defer b.mu.Unlock()
	members := b.channels[p.name]
	delete(members, p)
	if len(members) == 0 {
		delete(b.channels, p.name)
	}
}

// post hands data to every member of the channel except from.
func (b *Bus) post(from *Pipe, data []byte) {
	b.mu.Lock()
	targets := make([]*Pipe, 0, len(b.channels[from.name]))
	for p := range b.channels[from.name] {
		if p != from {
			targets = append(targets, p)
		}
	}
	b.mu.Unlock()

	for _, p := range targets {
		p.enqueue(data)
	}
}

// Members returns the number of pipes joined to name.
func (b *Bus) Members(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels[name])
}

// Pipe is a member of a named bus channel. Sends reach every other member,
// never the sender, with no acknowledgement. Each member receives in send
// order on its own goroutine.
type Pipe struct {
	base
	bus  *Bus
	name string

	qmu   sync.Mutex
	queue [][]byte
	wake  chan struct{}
	done  chan struct{}
}

// PipeOption configures a Pipe.
type PipeOption func(*Pipe)

// WithBus joins the pipe to bus instead of DefaultBus.
func WithBus(bus *Bus) PipeOption {
	return func(p *Pipe) {
		p.bus = bus
	}
}

// NewPipe joins channel name and returns a connected pipe.
func NewPipe(name string, opts ...PipeOption) *Pipe {
	p := &Pipe{
		base: base{kind: "pipe"},
		bus:  DefaultBus,
		name: name,
		wake: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.start()
	p.connected = true
	return p
}

// Name returns the channel name.
func (p *Pipe) Name() string { return p.name }

func (p *Pipe) start() {
	p.done = make(chan struct{})
	p.bus.join(p)
	go p.deliver(p.done)
}

// Open rejoins the channel after Close; otherwise it does nothing.
func (p *Pipe) Open(ctx context.Context) error {
	return p.open(ctx, func(context.Context) error {
		p.start()
		return nil
	})
}

// Close leaves the channel. Closing twice is a no-op.
func (p *Pipe) Close() error {
	if !p.setConnected(false) {
		return nil
	}
	p.bus.leave(p)
	close(p.done)

	p.qmu.Lock()
	p.queue = nil
	p.qmu.Unlock()

	p.emit(EventClose, nil)
	return nil
}

// Send posts payload to the other members of the channel.
func (p *Pipe) Send(ctx context.Context, payload interface{}) error {
	if err := p.Open(ctx); err != nil {
		return err
	}
	data, err := encode(payload)
	if err != nil {
		return err
	}
	p.bus.post(p, data)
	return nil
}

func (p *Pipe) enqueue(data []byte) {
	p.qmu.Lock()
	p.queue = append(p.queue, data)
	p.qmu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pipe) deliver(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-p.wake:
		}
		for {
			p.qmu.Lock()
			if len(p.queue) == 0 {
				p.qmu.Unlock()
				break
			}
			data := p.queue[0]
			p.queue = p.queue[1:]
			p.qmu.Unlock()

			select {
			case <-done:
				return
			default:
			}
			_ = p.emitPayloads(data)
		}
	}
}

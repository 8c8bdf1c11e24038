// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package event implements a named-event listener registry.
package event

import "sync"

// Listener receives the data passed to Emit.
type Listener func(data interface{})

// Subscription identifies one registered listener.
type Subscription struct {
	name    string
	once    bool
	l       Listener
	emitter *Emitter
}

// Unsubscribe removes the listener. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.emitter != nil {
		s.emitter.Off(s)
	}
}

// Emitter dispatches events to listeners registered by name.
// The zero value is ready to use.
type Emitter struct {
	mu        sync.Mutex
	listeners map[string][]*Subscription
}

// On registers l for every emission of name.
func (e *Emitter) On(name string, l Listener) *Subscription {
	return e.add(name, l, false)
}

// Once registers l for the next emission of name only.
func (e *Emitter) Once(name string, l Listener) *Subscription {
	return e.add(name, l, true)
}

func (e *Emitter) add(name string, l Listener, once bool) *Subscription {
	sub := &Subscription{name: name, once: once, l: l, emitter: e}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[string][]*Subscription)
	}
	e.listeners[name] = append(e.listeners[name], sub)
	return sub
}

// Off removes sub. Unknown subscriptions are ignored.
func (e *Emitter) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.remove(sub)
}

func (e *Emitter) remove(sub *Subscription) bool {
	subs := e.listeners[sub.name]
	for i, s := range subs {
		if s == sub {
			next := make([]*Subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(e.listeners, sub.name)
			} else {
				e.listeners[sub.name] = next
			}
			return true
		}
	}
	return false
}

// Emit calls the listeners of name in registration order and reports
// whether there was any. Listeners run on the caller's goroutine, outside
// the registry lock, so they may register or remove listeners.
func (e *Emitter) Emit(name string, data interface{}) bool {
	e.mu.Lock()
	subs := e.listeners[name]
	fire := make([]*Subscription, 0, len(subs))
	for _, s := range subs {
		if s.once {
			// a once listener fires at most one time, even under concurrent emits
			if !e.remove(s) {
				continue
			}
		}
		fire = append(fire, s)
	}
	e.mu.Unlock()

	for _, s := range fire {
		s.l(data)
	}
	return len(fire) > 0
}

// ListenerCount returns the number of listeners registered for name.
func (e *Emitter) ListenerCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[name])
}

// RemoveAll drops every listener.
func (e *Emitter) RemoveAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
}

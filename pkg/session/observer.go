package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/logging"
)

// Listener receives pause and terminate events. A returned error or panic
// is logged and does not stop delivery to other listeners.
type Listener interface {
	OnPause(ev PauseEvent) error
	OnTerminate(ev TerminationEvent) error
}

// ListenerFuncs adapts functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Pause     func(PauseEvent) error
	Terminate func(TerminationEvent) error
}

// OnPause implements Listener.
func (f ListenerFuncs) OnPause(ev PauseEvent) error {
	if f.Pause == nil {
		return nil
	}
	return f.Pause(ev)
}

// OnTerminate implements Listener.
func (f ListenerFuncs) OnTerminate(ev TerminationEvent) error {
	if f.Terminate == nil {
		return nil
	}
	return f.Terminate(ev)
}

// Channel fans events out to listeners synchronously, in subscription order.
type Channel struct {
	listeners []subscription
	nextID    uint64
	log       logging.LeveledLogger

	mu sync.RWMutex
}

type subscription struct {
	id uint64
	l  Listener
}

// NewChannel creates an observer channel. log may be nil.
func NewChannel(log logging.LeveledLogger) *Channel {
	return &Channel{log: log}
}

// Subscribe appends a listener and returns a function that removes it.
func (c *Channel) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, subscription{id: id, l: l})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, sub := range c.listeners {
			if sub.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of listeners.
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners)
}

// NotifyPause delivers ev to every listener. The returned error joins the
// failures of individual listeners.
func (c *Channel) NotifyPause(ev PauseEvent) error {
	return c.notify("pause", func(l Listener) error { return l.OnPause(ev) })
}

// NotifyTerminate delivers ev to every listener. The returned error joins
// the failures of individual listeners.
func (c *Channel) NotifyTerminate(ev TerminationEvent) error {
	return c.notify("terminate", func(l Listener) error { return l.OnTerminate(ev) })
}

func (c *Channel) notify(kind string, deliver func(Listener) error) error {
	c.mu.RLock()
	listeners := append([]subscription(nil), c.listeners...)
	c.mu.RUnlock()

	var errs []error
	for i, sub := range listeners {
		if err := safeDeliver(sub.l, deliver); err != nil {
			if c.log != nil {
				c.log.Warnf("%s listener %d failed: %v", kind, i, err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func safeDeliver(l Listener, deliver func(Listener) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session: listener panic: %v", r)
		}
	}()
	return deliver(l)
}

// Package presence tracks the single "who is typing" slot of the open
// widget. The slot is overwritten, never merged: each event replaces the
// party and re-arms one owned expiry timer.
package presence

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

// TTL is how long a typing signal stays set without a refreshing event.
const TTL = 5000 * time.Millisecond

// Controller owns the typing-presence slot.
//
// A single cancellable timer guards the slot. Re-arming stops the previous
// timer first; an unmanaged timer per event would race, and a stale timer
// could clear an in-progress typing state early.
type Controller struct {
	sync.Mutex

	ttl    time.Duration
	party  string
	epoch  uint64
	timer  *time.Timer
	closed bool
}

func NewController() *Controller {
	return &Controller{ttl: TTL}
}

// OnTypingEvent records that senderID started or stopped typing.
// isTyping=true sets the slot and restarts the expiry window from now;
// isTyping=false clears the slot immediately.
func (c *Controller) OnTypingEvent(senderID string, isTyping bool) {
	c.Lock()
	defer c.Unlock()

	if c.closed {
		return
	}

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	if !isTyping {
		c.party = ""
		return
	}

	c.party = senderID
	c.epoch++
	resetTotal.Inc()

	epoch := c.epoch
	c.timer = time.AfterFunc(c.ttl, func() { c.expire(epoch) })
	glog.V(5).Infof("presence: %s typing, expiry in %s", senderID, c.ttl)
}

// expire clears the slot unless a newer event re-armed it after this
// timer was scheduled but before it could be stopped.
func (c *Controller) expire(epoch uint64) {
	c.Lock()
	defer c.Unlock()

	if c.epoch != epoch {
		return
	}
	glog.V(5).Infof("presence: %s typing expired", c.party)
	c.party = ""
	c.timer = nil
}

// CurrentTypingParty returns the typing party id, or "" when nobody is
// typing.
func (c *Controller) CurrentTypingParty() string {
	c.Lock()
	defer c.Unlock()
	return c.party
}

// Stop cancels the pending timer and freezes the controller. Called on
// widget teardown before the transport drops its handlers so a late
// expiry never mutates torn-down state.
func (c *Controller) Stop() {
	c.Lock()
	defer c.Unlock()

	c.closed = true
	c.party = ""
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

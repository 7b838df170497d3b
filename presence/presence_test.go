package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// short TTL keeps the timing tests fast; margins are generous enough for
// slow CI machines.
const testTTL = 100 * time.Millisecond

func newTestController() *Controller {
	c := NewController()
	c.ttl = testTTL
	return c
}

func TestTypingSetsAndExpires(t *testing.T) {
	c := newTestController()
	defer c.Stop()

	c.OnTypingEvent("broker-7", true)
	assert.Equal(t, "broker-7", c.CurrentTypingParty())

	time.Sleep(2 * testTTL)
	assert.Equal(t, "", c.CurrentTypingParty())
}

func TestRefreshResetsExpiry(t *testing.T) {
	c := newTestController()
	defer c.Stop()

	// Second event 60% into the window: the signal must stay set for a
	// full TTL after the second event, i.e. past the point where a stale
	// first-event timer would have fired.
	c.OnTypingEvent("broker-7", true)
	time.Sleep(testTTL * 6 / 10)
	c.OnTypingEvent("broker-7", true)

	time.Sleep(testTTL * 7 / 10) // 1.3*TTL after the first event
	assert.Equal(t, "broker-7", c.CurrentTypingParty(), "stale timer cleared an active signal")

	time.Sleep(testTTL)
	assert.Equal(t, "", c.CurrentTypingParty())
}

func TestStopTypingClearsImmediately(t *testing.T) {
	c := newTestController()
	defer c.Stop()

	c.OnTypingEvent("broker-7", true)
	c.OnTypingEvent("broker-7", false)
	assert.Equal(t, "", c.CurrentTypingParty())
}

func TestNewPartyOverwrites(t *testing.T) {
	c := newTestController()
	defer c.Stop()

	c.OnTypingEvent("broker-7", true)
	c.OnTypingEvent("customer-3", true)
	assert.Equal(t, "customer-3", c.CurrentTypingParty())
}

func TestStopFreezesController(t *testing.T) {
	c := newTestController()

	c.OnTypingEvent("broker-7", true)
	c.Stop()
	assert.Equal(t, "", c.CurrentTypingParty())

	// Events after teardown must not resurrect the slot.
	c.OnTypingEvent("broker-7", true)
	assert.Equal(t, "", c.CurrentTypingParty())
}

package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	threadID = "chat-1"
	broker   = "broker-7"
	customer = "customer-3"
)

// newTestStore returns a store with a controllable clock.
func newTestStore() (*Store, *time.Time) {
	s := NewStore()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func echoOf(local Message, canonicalID string, withRef bool) Message {
	echo := Message{
		ID:        canonicalID,
		ThreadID:  local.ThreadID,
		From:      local.From,
		To:        local.To,
		Text:      local.Text,
		CreatedAt: local.CreatedAt,
		UpdatedAt: local.CreatedAt,
	}
	if withRef {
		echo.ClientRef = local.ClientRef
	}
	return echo
}

func TestAppendLocal(t *testing.T) {
	s, _ := newTestStore()

	m := s.AppendLocal(threadID, customer, broker, "Hello", nil, nil)

	assert.True(t, m.Provisional())
	assert.Equal(t, StatusSending, m.Status)
	assert.Equal(t, m.ID, m.ClientRef)

	msgs := s.Messages(threadID)
	require.Len(t, msgs, 1)
	assert.Equal(t, m.ID, msgs[0].ID)
}

func TestReconcileWithinWindow(t *testing.T) {
	s, now := newTestStore()

	local := s.AppendLocal(threadID, customer, broker, "Hello", nil, nil)
	*now = now.Add(800 * time.Millisecond)

	s.IngestRemote(echoOf(local, "srv-100", false))

	msgs := s.Messages(threadID)
	require.Len(t, msgs, 1, "echo must merge, not duplicate")
	assert.Equal(t, "srv-100", msgs[0].ID)
	assert.Equal(t, StatusSent, msgs[0].Status)
	assert.False(t, msgs[0].Provisional())
}

func TestReconcileKeepsIndex(t *testing.T) {
	s, now := newTestStore()

	s.IngestRemote(Message{ID: "srv-1", ThreadID: threadID, From: broker, Text: "earlier"})
	local := s.AppendLocal(threadID, customer, broker, "Hello", nil, nil)
	s.IngestRemote(Message{ID: "srv-2", ThreadID: threadID, From: broker, Text: "later"})

	*now = now.Add(time.Second)
	s.IngestRemote(echoOf(local, "srv-3", false))

	msgs := s.Messages(threadID)
	require.Len(t, msgs, 3)
	// The reconciled record stays in its original slot.
	assert.Equal(t, []string{"srv-1", "srv-3", "srv-2"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestLateEchoAppends(t *testing.T) {
	s, now := newTestStore()

	local := s.AppendLocal(threadID, customer, broker, "Hello", nil, nil)
	*now = now.Add(ReconcileWindow + time.Millisecond)

	s.IngestRemote(echoOf(local, "srv-100", false))

	// Outside the window the heuristic no longer applies; the echo lands
	// as a second record and the provisional one keeps sending.
	msgs := s.Messages(threadID)
	require.Len(t, msgs, 2)
	assert.Equal(t, StatusSending, msgs[0].Status)
	assert.Equal(t, "srv-100", msgs[1].ID)
}

func TestClientRefBeatsHeuristic(t *testing.T) {
	s, now := newTestStore()

	// Two identical texts in flight: the body+sender heuristic alone
	// cannot tell them apart, the echoed clientRef can.
	first := s.AppendLocal(threadID, customer, broker, "ok", nil, nil)
	second := s.AppendLocal(threadID, customer, broker, "ok", nil, nil)
	*now = now.Add(time.Second)

	// Echoes arrive out of order.
	s.IngestRemote(echoOf(second, "srv-2", true))
	s.IngestRemote(echoOf(first, "srv-1", true))

	msgs := s.Messages(threadID)
	require.Len(t, msgs, 2)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.Equal(t, "srv-2", msgs[1].ID)
}

func TestClientRefOutlivesWindow(t *testing.T) {
	s, now := newTestStore()

	local := s.AppendLocal(threadID, customer, broker, "Hello", nil, nil)
	*now = now.Add(ReconcileWindow + time.Minute)

	s.IngestRemote(echoOf(local, "srv-9", true))

	msgs := s.Messages(threadID)
	require.Len(t, msgs, 1, "exact clientRef match is not window-bound")
	assert.Equal(t, "srv-9", msgs[0].ID)
}

func TestDuplicateDeliveryDropped(t *testing.T) {
	s, _ := newTestStore()

	msg := Message{ID: "srv-42", ThreadID: threadID, From: broker, Text: "hi"}
	s.IngestRemote(msg)
	s.IngestRemote(msg)

	assert.Len(t, s.Messages(threadID), 1)
}

func TestMalformedRemoteIgnored(t *testing.T) {
	s, _ := newTestStore()

	s.IngestRemote(Message{ThreadID: threadID, Text: "no id"})
	s.IngestRemote(Message{ID: "srv-1", Text: "no thread"})

	assert.Empty(t, s.Messages(threadID))
}

func TestSeed(t *testing.T) {
	s, _ := newTestStore()

	// A send racing ahead of the history fetch stays behind the batch.
	local := s.AppendLocal(threadID, customer, broker, "racing", nil, nil)

	err := s.Seed(threadID, []Message{
		{ID: "srv-1", ThreadID: threadID, From: broker, Text: "old 1"},
		{ID: "srv-2", ThreadID: threadID, From: customer, Text: "old 2"},
	})
	require.NoError(t, err)

	msgs := s.Messages(threadID)
	require.Len(t, msgs, 3)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.Equal(t, StatusSent, msgs[0].Status)
	assert.Equal(t, local.ID, msgs[2].ID)
}

func TestSeedAfterLiveRejected(t *testing.T) {
	s, _ := newTestStore()

	s.IngestRemote(Message{ID: "srv-1", ThreadID: threadID, From: broker, Text: "live"})

	err := s.Seed(threadID, []Message{{ID: "srv-0", ThreadID: threadID}})
	assert.ErrorIs(t, err, ErrThreadLive)
	assert.Len(t, s.Messages(threadID), 1)
}

func TestStatusTransitions(t *testing.T) {
	s, _ := newTestStore()

	local := s.AppendLocal(threadID, customer, broker, "Hello", nil, nil)

	assert.True(t, s.MarkFailed(threadID, local.ID))
	got, ok := s.Get(threadID, local.ID)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, got.Status)

	// MarkFailed only moves sending records.
	assert.False(t, s.MarkFailed(threadID, local.ID))

	assert.True(t, s.MarkSending(threadID, local.ID))
	got, _ = s.Get(threadID, local.ID)
	assert.Equal(t, StatusSending, got.Status)
}

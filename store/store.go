// Package store holds the ordered per-thread message sequences and owns
// the optimistic-insert / authoritative-merge reconciliation step.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
)

// ReconcileWindow is how long a provisional record stays eligible for
// heuristic matching against its authoritative echo.
const ReconcileWindow = 5000 * time.Millisecond

// ErrThreadLive rejects history seeding after live events arrived.
var ErrThreadLive = errors.New("store: thread already received live events")

type thread struct {
	msgs []*Message
	live bool
}

// Store is the message store for all threads of one open widget.
// Mutations are serialized by the embedded mutex; renders read snapshots.
type Store struct {
	sync.Mutex

	window  time.Duration
	now     func() time.Time
	threads map[string]*thread
}

func NewStore() *Store {
	return &Store{
		window:  ReconcileWindow,
		now:     time.Now,
		threads: make(map[string]*thread),
	}
}

func (s *Store) thread(threadID string) *thread {
	th, ok := s.threads[threadID]
	if !ok {
		th = &thread{}
		s.threads[threadID] = th
	}
	return th
}

// AppendLocal constructs a provisional record for a just-sent message and
// inserts it at the tail of the thread's sequence. It never blocks and
// never fails; the returned copy is safe to render immediately.
func (s *Store) AppendLocal(threadID, from, to, text string, attachments []string, leadCards []LeadCard) Message {
	s.Lock()
	defer s.Unlock()

	now := s.now()
	id := NewProvisionalID()
	m := &Message{
		ID:          id,
		ClientRef:   id,
		ThreadID:    threadID,
		From:        from,
		To:          to,
		Text:        text,
		Attachments: attachments,
		LeadCards:   leadCards,
		Status:      StatusSending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	th := s.thread(threadID)
	th.msgs = append(th.msgs, m)
	appendedTotal.Inc()
	return *m
}

// IngestRemote merges an authoritative message from the live stream.
//
// Matching order:
//  1. a record with the same canonical id exists: re-delivery, dropped;
//  2. a provisional record carries the echoed clientRef: replaced in place;
//  3. a provisional record from the same sender with the same body exists
//     inside the reconciliation window: replaced in place;
//  4. otherwise the message is appended at the tail.
//
// In-place replacement keeps the record's index, so its visual position
// never jumps.
func (s *Store) IngestRemote(msg Message) {
	if msg.ID == "" || msg.ThreadID == "" {
		glog.Errorf("store: ignore malformed remote message: %+v", msg)
		return
	}

	s.Lock()
	defer s.Unlock()

	th := s.thread(msg.ThreadID)
	th.live = true

	for _, m := range th.msgs {
		if m.ID == msg.ID {
			glog.V(5).Infof("store: drop duplicate delivery, id: %s", msg.ID)
			duplicateTotal.Inc()
			return
		}
	}

	msg.Status = StatusSent

	if i := s.match(th, &msg); i >= 0 {
		old := th.msgs[i]
		if msg.ClientRef == "" {
			msg.ClientRef = old.ClientRef
		}
		cp := msg
		th.msgs[i] = &cp
		glog.V(5).Infof("store: reconciled %s -> %s at index %d", old.ID, msg.ID, i)
		reconciledTotal.Inc()
		return
	}

	cp := msg
	th.msgs = append(th.msgs, &cp)
	ingestedTotal.Inc()
}

// match finds the provisional record the incoming echo confirms, exact
// clientRef first, then the body+sender+window heuristic. Returns -1 when
// nothing matches.
func (s *Store) match(th *thread, msg *Message) int {
	if msg.ClientRef != "" {
		for i, m := range th.msgs {
			if m.Provisional() && m.ClientRef == msg.ClientRef {
				return i
			}
		}
	}

	now := s.now()
	for i, m := range th.msgs {
		if m.Provisional() && m.From == msg.From && m.Text == msg.Text &&
			now.Sub(m.CreatedAt) < s.window {
			return i
		}
	}
	return -1
}

// Seed loads canonical history fetched over REST. Valid only before the
// first live event for the thread; locally appended records that raced
// ahead of the fetch stay behind the seeded batch.
func (s *Store) Seed(threadID string, history []Message) error {
	s.Lock()
	defer s.Unlock()

	th := s.thread(threadID)
	if th.live {
		return ErrThreadLive
	}

	seeded := make([]*Message, 0, len(history)+len(th.msgs))
	for _, m := range history {
		cp := m
		cp.Status = StatusSent
		seeded = append(seeded, &cp)
	}
	th.msgs = append(seeded, th.msgs...)
	return nil
}

// MarkFailed moves a still-provisional record into the terminal failed
// state. Reports whether the record was found and still sending.
func (s *Store) MarkFailed(threadID, id string) bool {
	return s.setStatus(threadID, id, StatusSending, StatusFailed)
}

// MarkSending re-enters a failed record into the sending state for a
// manual resend.
func (s *Store) MarkSending(threadID, id string) bool {
	return s.setStatus(threadID, id, StatusFailed, StatusSending)
}

func (s *Store) setStatus(threadID, id string, from, to Status) bool {
	s.Lock()
	defer s.Unlock()

	for _, m := range s.thread(threadID).msgs {
		if m.ID == id && m.Status == from {
			m.Status = to
			m.UpdatedAt = s.now()
			return true
		}
	}
	return false
}

// Get returns a copy of one record.
func (s *Store) Get(threadID, id string) (Message, bool) {
	s.Lock()
	defer s.Unlock()

	for _, m := range s.thread(threadID).msgs {
		if m.ID == id {
			return *m, true
		}
	}
	return Message{}, false
}

// Messages returns a render snapshot of the thread's sequence, in
// insertion order.
func (s *Store) Messages(threadID string) []Message {
	s.Lock()
	defer s.Unlock()

	th := s.thread(threadID)
	out := make([]Message, 0, len(th.msgs))
	for _, m := range th.msgs {
		out = append(out, *m)
	}
	return out
}

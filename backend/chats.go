package backend

import (
	"strings"
	"sync"
	"time"

	"github.com/pborman/uuid"

	"github.com/estately/chatkit/store"
	"github.com/estately/chatkit/ws"
)

// chat is one provisioned thread: a participant pair and its history.
type chat struct {
	id           string
	participants [2]string
	msgs         []store.Message
}

func (c *chat) hasParticipant(uid string) bool {
	return c.participants[0] == uid || c.participants[1] == uid
}

func (c *chat) counterpartOf(uid string) string {
	if c.participants[0] == uid {
		return c.participants[1]
	}
	return c.participants[0]
}

// chatStore provisions threads idempotently on the participant pair and
// keeps per-thread history in memory.
type chatStore struct {
	sync.Mutex

	chats  map[string]*chat
	byPair map[string]string
}

func newChatStore() *chatStore {
	return &chatStore{
		chats:  make(map[string]*chat),
		byPair: make(map[string]string),
	}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// provision returns the thread for the pair, creating it on first use.
func (s *chatStore) provision(a, b string) *chat {
	s.Lock()
	defer s.Unlock()

	key := pairKey(a, b)
	if id, ok := s.byPair[key]; ok {
		return s.chats[id]
	}

	c := &chat{
		id:           "chat-" + strings.ReplaceAll(uuid.New(), "-", ""),
		participants: [2]string{a, b},
	}
	s.chats[c.id] = c
	s.byPair[key] = c.id
	return c
}

func (s *chatStore) get(id string) *chat {
	s.Lock()
	defer s.Unlock()
	return s.chats[id]
}

// appendMessage assigns the canonical id and persists one relayed
// message, echoing the sender's clientRef.
func (s *chatStore) appendMessage(c *chat, from string, req *ws.SendMessage) store.Message {
	now := time.Now().UTC()
	msg := store.Message{
		ID:          "m-" + strings.ReplaceAll(uuid.New(), "-", ""),
		ClientRef:   req.ClientRef,
		ThreadID:    c.id,
		From:        from,
		To:          req.To,
		Text:        req.Text,
		Attachments: req.Attachments,
		LeadCards:   req.LeadCard,
		Status:      store.StatusSent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.Lock()
	c.msgs = append(c.msgs, msg)
	s.Unlock()
	return msg
}

func (s *chatStore) history(c *chat) []store.Message {
	s.Lock()
	defer s.Unlock()
	out := make([]store.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

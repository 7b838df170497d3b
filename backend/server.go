// Package backend is the in-memory development backend for the chat
// widget: it terminates the websocket channels, relays messages and
// typing signals between the two parties of a thread, and serves the
// REST provisioning/history endpoints the widget consumes. It holds no
// durable state and exists for local development and integration tests.
package backend

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/pborman/uuid"

	"github.com/estately/chatkit/auth"
	"github.com/estately/chatkit/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dev backend: the widget runs on arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server relays live events and serves the REST collaborators.
type Server struct {
	authClient auth.Client
	hstore     *handlerStore
	chats      *chatStore
}

func NewServer(authClient auth.Client) *Server {
	return &Server{
		authClient: authClient,
		hstore:     newHandlerStore(),
		chats:      newChatStore(),
	}
}

// Handler returns the full HTTP surface: /ws plus the REST endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWs)
	mux.HandleFunc("/chats", s.provisionChat)
	mux.HandleFunc("/chats/", s.chatHistory)
	return mux
}

// Close drops all live sessions.
func (s *Server) Close() {
	s.hstore.close()
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	uid, err := s.authClient.Auth(r)
	if err != nil {
		glog.Errorf("backend: authenticate error: %v", err)
		http.Error(w, "Authenticate error", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("backend: upgrade error, uid: %s, err: %v", uid, err)
		return
	}

	h := &handler{
		srv:      s,
		uid:      uid,
		sid:      strings.ReplaceAll(uuid.New(), "-", ""),
		conn:     conn,
		dataChan: make(chan *ws.ServerEvent, 16),
		open:     make(map[string]bool),
	}
	s.hstore.add(h)
	glog.Infof("backend: session online: %s", h)

	go h.recvLoop()
	go h.sendLoop()
}

func (s *Server) delHandler(sid string) {
	s.hstore.del(sid)
}

// route dispatches one inbound client event.
func (s *Server) route(h *handler, ev *ws.ClientEvent) {
	switch {
	case ev.SendMessage != nil:
		s.relayMessage(h, ev.SendMessage)
	case ev.Typing != nil:
		s.relayTyping(h, ev.Typing)
	case ev.OpenChat != nil:
		h.markOpen(ev.OpenChat.ChatID)
		glog.V(5).Infof("backend: %s opened chat %s", h, ev.OpenChat.ChatID)
	default:
		glog.Errorf("backend: unsupported event from %s", h)
	}
}

// relayMessage persists the message under a canonical id and pushes it
// to every session of both participants. The sender's sessions receive
// it too: that push is the authoritative echo the widget reconciles
// against.
func (s *Server) relayMessage(h *handler, req *ws.SendMessage) {
	c := s.chats.get(req.ChatID)
	if c == nil || !c.hasParticipant(h.uid) {
		glog.Errorf("backend: %s sent to unknown or foreign chat %s", h, req.ChatID)
		return
	}

	msg := s.chats.appendMessage(c, h.uid, req)

	for _, uid := range c.participants {
		for _, target := range s.hstore.getByUID(uid) {
			cp := msg
			target.push(&ws.ServerEvent{Message: &cp})
		}
	}
}

// relayTyping forwards a typing signal to the counterpart's sessions
// that announced the chat.
func (s *Server) relayTyping(h *handler, t *ws.TypingState) {
	c := s.chats.get(t.ChatID)
	if c == nil || !c.hasParticipant(h.uid) {
		return
	}

	ev := &ws.ServerEvent{Typing: &ws.TypingState{UserID: h.uid, IsTyping: t.IsTyping}}
	for _, target := range s.hstore.getByUID(c.counterpartOf(h.uid)) {
		if target.hasOpen(c.id) {
			target.push(ev)
		}
	}
}

type provisionReq struct {
	Participants []string `json:"participants"`
}

func (s *Server) provisionChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req provisionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Participants) != 2 {
		http.Error(w, "expected participants: [id, id]", http.StatusBadRequest)
		return
	}

	c := s.chats.provision(req.Participants[0], req.Participants[1])
	writeJSON(w, map[string]string{"chatId": c.id})
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	// /chats/{id}/messages
	rest := strings.TrimPrefix(r.URL.Path, "/chats/")
	id := strings.TrimSuffix(rest, "/messages")
	if id == rest || id == "" {
		http.NotFound(w, r)
		return
	}

	c := s.chats.get(id)
	if c == nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, map[string]interface{}{"messages": s.chats.history(c)})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("backend: write response: %v", err)
	}
}

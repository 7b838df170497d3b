package backend

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/estately/chatkit/ws"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 3 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 25 * time.Second

	// websocket max message size to read.
	readLimit = 4096
)

// handler manages one active widget connection.
type handler struct {
	sync.Mutex

	srv *Server

	uid  string
	sid  string
	conn *websocket.Conn

	dataChan chan *ws.ServerEvent

	// chat ids this session announced interest in
	open map[string]bool

	closing bool
}

func (h *handler) String() string {
	return fmt.Sprintf("{uid: %s, sid: %s}", h.uid, h.sid)
}

// close tears the session down. unregister is false only during server
// shutdown, when the handler store is already iterating its sessions and
// must not be re-locked.
func (h *handler) close(unregister bool) {
	h.Lock()
	if h.closing {
		h.Unlock()
		return
	}
	h.closing = true

	h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = h.conn.WriteMessage(websocket.CloseMessage, []byte{})
	h.conn.Close()

	close(h.dataChan)
	h.Unlock()

	if unregister {
		h.srv.delHandler(h.sid)
	}
}

func (h *handler) push(ev *ws.ServerEvent) {
	h.Lock()
	defer h.Unlock()
	if h.closing {
		return
	}
	select {
	case h.dataChan <- ev:
	default:
		glog.Errorf("backend: session %s push queue full, event dropped", h)
	}
}

func (h *handler) markOpen(chatID string) {
	h.Lock()
	h.open[chatID] = true
	h.Unlock()
}

func (h *handler) hasOpen(chatID string) bool {
	h.Lock()
	defer h.Unlock()
	return h.open[chatID]
}

func (h *handler) recvLoop() {
	defer func() {
		glog.V(5).Infof("backend: recvLoop exited, session: %s", h)
		h.close(true)
	}()

	h.conn.SetReadLimit(readLimit)
	h.conn.SetReadDeadline(time.Now().Add(pongWait))
	h.conn.SetPongHandler(func(string) error {
		h.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := h.conn.ReadMessage()
		if err != nil {
			glog.V(5).Infof("backend: read error, session %s: %v", h, err)
			return
		}
		if msgType != websocket.TextMessage {
			glog.Errorf("backend: unexpected message type %d from %s", msgType, h)
			continue
		}

		glog.V(5).Infof("backend: incoming frame from %s: %s", h, data)

		var ev ws.ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			glog.Errorf("backend: malformed frame from %s: %v", h, err)
			continue
		}

		h.srv.route(h, &ev)
	}
}

func (h *handler) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		glog.V(5).Infof("backend: sendLoop exited, session: %s", h)
	}()

	for {
		select {
		case ev, ok := <-h.dataChan:
			if !ok {
				h.conn.Close()
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				glog.Errorf("backend: marshal event: %v", err)
				continue
			}
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				glog.Errorf("backend: write error, session %s: %v", h, err)
				h.close(true)
				return
			}
		case <-pingTicker.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				glog.Errorf("backend: ping error, session %s: %v", h, err)
				h.close(true)
				return
			}
		}
	}
}

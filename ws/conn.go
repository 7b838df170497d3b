// Package ws owns the widget's single bidirectional channel to the chat
// backend: dial-with-auth, inbound event dispatch and fire-and-forget
// outbound emission.
package ws

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/estately/chatkit/store"
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

	// Outbound queue depth; emits never block, overflow is dropped.
	sendQueueLen = 16
)

// MessageHandler consumes inbound `message` events.
type MessageHandler func(msg store.Message)

// TypingHandler consumes inbound `typing` events.
type TypingHandler func(userID string, isTyping bool)

// Conn is one authenticated channel for one local identity. Exactly one
// live Conn may exist per identity; switching identity closes the old
// Conn before dialing a new one (see widget.Widget.SetIdentity).
type Conn struct {
	sync.Mutex

	conn     *websocket.Conn
	sendChan chan *ClientEvent

	onMessage MessageHandler
	onTyping  TypingHandler

	closing bool
	done    chan struct{}
}

// Dial opens and authenticates the channel. The identity id and bearer
// token travel as handshake query parameters. On error no Conn is
// produced and the caller operates in local-only mode.
func Dial(rawURL, userID, token string) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		openFailureTotal.Inc()
		return nil, fmt.Errorf("ws: parse url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("x-uid", userID)
	q.Set("x-token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		openFailureTotal.Inc()
		return nil, fmt.Errorf("ws: dial %s: %w", rawURL, err)
	}

	openTotal.Inc()
	glog.Infof("ws: channel open, uid: %s", userID)

	return &Conn{
		conn:     conn,
		sendChan: make(chan *ClientEvent, sendQueueLen),
		done:     make(chan struct{}),
	}, nil
}

// OnMessage registers the inbound message listener. Must be called
// before Start.
func (c *Conn) OnMessage(h MessageHandler) { c.onMessage = h }

// OnTyping registers the inbound typing listener. Must be called before
// Start.
func (c *Conn) OnTyping(h TypingHandler) { c.onTyping = h }

// Start launches the receive and send loops.
func (c *Conn) Start() {
	go c.recvLoop()
	go c.sendLoop()
}

// SendMessage relays one chat message. Fire-and-forget: no delivery
// confirmation, never blocks.
func (c *Conn) SendMessage(msg *SendMessage) {
	c.emit(&ClientEvent{SendMessage: msg})
}

// SendTyping relays the local typing state for a thread.
func (c *Conn) SendTyping(threadID string, isTyping bool) {
	c.emit(&ClientEvent{Typing: &TypingState{ChatID: threadID, IsTyping: isTyping}})
}

// AnnounceOpen announces interest in a thread's live events.
func (c *Conn) AnnounceOpen(threadID string) {
	c.emit(&ClientEvent{OpenChat: &OpenChat{ChatID: threadID}})
}

func (c *Conn) emit(ev *ClientEvent) {
	c.Lock()
	defer c.Unlock()
	if c.closing {
		glog.V(5).Infof("ws: drop outbound event, channel closing")
		return
	}
	select {
	case c.sendChan <- ev:
	default:
		glog.Errorf("ws: outbound queue full, event dropped")
		droppedOutboundTotal.Inc()
	}
}

// Close releases the channel. Idempotent. When Close returns no further
// handler invocations are in flight for new frames; callers tear down
// dependent state (presence timers) after this.
func (c *Conn) Close() {
	c.Lock()
	if c.closing {
		c.Unlock()
		return
	}
	c.closing = true
	close(c.sendChan)
	c.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
	c.conn.Close()

	<-c.done
	glog.Infof("ws: channel closed")
}

// closeOnError tears the channel down from inside a loop.
func (c *Conn) closeOnError(err error) {
	c.Lock()
	if c.closing {
		c.Unlock()
		return
	}
	c.closing = true
	close(c.sendChan)
	c.Unlock()

	glog.Errorf("ws: closing channel: %v", err)
	c.conn.Close()
}

// Done reports loop termination, for tests and orderly shutdown.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) recvLoop() {
	defer func() {
		close(c.done)
		glog.V(5).Info("ws: recvLoop exited")
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.closeOnError(fmt.Errorf("read: %w", err))
			return
		}

		if msgType != websocket.TextMessage {
			glog.Errorf("ws: unexpected message type %d, frame ignored", msgType)
			continue
		}

		glog.V(5).Infof("ws: inbound frame: %s", data)

		var ev ServerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			glog.Errorf("ws: malformed inbound frame %q: %v", data, err)
			continue
		}

		switch {
		case ev.Message != nil:
			if c.onMessage != nil {
				c.onMessage(*ev.Message)
			}
		case ev.Typing != nil:
			if c.onTyping != nil {
				c.onTyping(ev.Typing.UserID, ev.Typing.IsTyping)
			}
		default:
			glog.V(5).Infof("ws: inbound frame with no known event, ignored")
		}
	}
}

func (c *Conn) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		glog.V(5).Info("ws: sendLoop exited")
	}()

	for {
		select {
		case ev, ok := <-c.sendChan:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				glog.Errorf("ws: marshal outbound event: %v", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.closeOnError(fmt.Errorf("write: %w", err))
				return
			}
		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.closeOnError(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

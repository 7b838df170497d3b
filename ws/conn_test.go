package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estately/chatkit/store"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// testBackend is a one-connection websocket peer: it decodes client
// frames into recvC and writes anything queued on pushC.
type testBackend struct {
	srv   *httptest.Server
	recvC chan ClientEvent
	pushC chan interface{}
	uid   chan string
}

func newTestBackend(t *testing.T) *testBackend {
	b := &testBackend{
		recvC: make(chan ClientEvent, 16),
		pushC: make(chan interface{}, 16),
		uid:   make(chan string, 1),
	}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.uid <- r.URL.Query().Get("x-uid")
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		go func() {
			for raw := range b.pushC {
				_ = conn.WriteJSON(raw)
			}
			_ = conn.Close()
		}()

		for {
			var ev ClientEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			b.recvC <- ev
		}
	}))
	t.Cleanup(func() {
		close(b.pushC)
		b.srv.Close()
	})
	return b
}

func (b *testBackend) wsURL() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

func recvFrame(t *testing.T, c chan ClientEvent) ClientEvent {
	select {
	case ev := <-c:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client frame")
		return ClientEvent{}
	}
}

func TestDialCarriesAuth(t *testing.T) {
	b := newTestBackend(t)

	conn, err := Dial(b.wsURL(), "customer-3", "tok-1")
	require.NoError(t, err)
	conn.Start()
	defer conn.Close()

	assert.Equal(t, "customer-3", <-b.uid)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial("ws://127.0.0.1:1/ws", "customer-3", "tok-1")
	assert.Error(t, err, "no listener, dial must fail")
}

func TestOutboundEvents(t *testing.T) {
	b := newTestBackend(t)

	conn, err := Dial(b.wsURL(), "customer-3", "tok-1")
	require.NoError(t, err)
	conn.Start()
	defer conn.Close()

	conn.AnnounceOpen("chat-1")
	conn.SendTyping("chat-1", true)
	conn.SendMessage(&SendMessage{ChatID: "chat-1", To: "broker-7", Text: "Hello", ClientRef: "local:abc"})

	ev := recvFrame(t, b.recvC)
	require.NotNil(t, ev.OpenChat)
	assert.Equal(t, "chat-1", ev.OpenChat.ChatID)

	ev = recvFrame(t, b.recvC)
	require.NotNil(t, ev.Typing)
	assert.True(t, ev.Typing.IsTyping)

	ev = recvFrame(t, b.recvC)
	require.NotNil(t, ev.SendMessage)
	assert.Equal(t, "Hello", ev.SendMessage.Text)
	assert.Equal(t, "local:abc", ev.SendMessage.ClientRef)
}

func TestInboundDispatch(t *testing.T) {
	b := newTestBackend(t)

	conn, err := Dial(b.wsURL(), "customer-3", "tok-1")
	require.NoError(t, err)

	msgC := make(chan store.Message, 1)
	typC := make(chan string, 1)
	conn.OnMessage(func(m store.Message) { msgC <- m })
	conn.OnTyping(func(uid string, isTyping bool) {
		if isTyping {
			typC <- uid
		}
	})
	conn.Start()
	defer conn.Close()

	// A frame the codec does not know and a malformed frame are both
	// ignored without killing the channel.
	b.pushC <- map[string]string{"unknown": "event"}
	b.pushC <- ServerEvent{Typing: &TypingState{UserID: "broker-7", IsTyping: true}}
	b.pushC <- ServerEvent{Message: &store.Message{ID: "srv-1", ThreadID: "chat-1", From: "broker-7", Text: "hi"}}

	select {
	case uid := <-typC:
		assert.Equal(t, "broker-7", uid)
	case <-time.After(2 * time.Second):
		t.Fatal("typing event not dispatched")
	}

	select {
	case m := <-msgC:
		assert.Equal(t, "srv-1", m.ID)
		assert.Equal(t, "hi", m.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("message event not dispatched")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := newTestBackend(t)

	conn, err := Dial(b.wsURL(), "customer-3", "tok-1")
	require.NoError(t, err)
	conn.Start()

	conn.Close()
	conn.Close()

	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loops did not terminate")
	}

	// Emits after close are silently dropped.
	conn.SendTyping("chat-1", false)
}

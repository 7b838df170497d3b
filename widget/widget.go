// Package widget wires the chat engine together: transport, message
// store, presence, thread resolution and entitlement-gated rendering.
package widget

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/estately/chatkit/identity"
	"github.com/estately/chatkit/presence"
	"github.com/estately/chatkit/redact"
	"github.com/estately/chatkit/session"
	"github.com/estately/chatkit/store"
	"github.com/estately/chatkit/ws"
)

const (
	// Send attempts before a provisional record goes terminal-failed.
	defaultMaxSendAttempts = 3

	backoffMinInterval = 1 * time.Second
	backoffMaxInterval = 60 * time.Second
	backoffMultiplier  = 1.5
)

// Transport is the outbound/inbound surface of one open channel.
// *ws.Conn implements it; tests substitute a fake.
type Transport interface {
	OnMessage(ws.MessageHandler)
	OnTyping(ws.TypingHandler)
	Start()
	SendMessage(*ws.SendMessage)
	SendTyping(threadID string, isTyping bool)
	AnnounceOpen(threadID string)
	Close()
}

// DialFunc opens an authenticated channel.
type DialFunc func(url, userID, token string) (Transport, error)

func defaultDial(url, userID, token string) (Transport, error) {
	return ws.Dial(url, userID, token)
}

// Config carries the widget's external endpoints and entitlement.
type Config struct {
	// WsURL is the websocket endpoint of the chat backend.
	WsURL string
	// APIURL is the REST base for chat provisioning and history.
	APIURL string
	// Entitled permits unredacted contact-detail exchange.
	Entitled bool
}

// Widget is one open chat widget for one local identity. The embedded
// mutex guards the channel handle and thread fields against the retry
// timers, which run off the UI goroutine.
type Widget struct {
	sync.Mutex

	conf Config
	dial DialFunc

	store    *store.Store
	presence *presence.Controller
	sessions *session.Manager

	// conn is nil in local-only mode: sends still populate the store
	// optimistically, outbound emission is skipped.
	conn Transport

	id          identity.Identity
	counterpart string
	threadID    string

	// retry knobs, shortened in tests
	checkDelay  time.Duration
	maxAttempts int
	backoffMin  time.Duration
	backoffMax  time.Duration
}

func New(conf Config, id identity.Identity) *Widget {
	s := store.NewStore()
	return &Widget{
		conf:        conf,
		dial:        defaultDial,
		store:       s,
		presence:    presence.NewController(),
		sessions:    session.NewManager(conf.APIURL, s),
		id:          id,
		checkDelay:  store.ReconcileWindow,
		maxAttempts: defaultMaxSendAttempts,
		backoffMin:  backoffMinInterval,
		backoffMax:  backoffMaxInterval,
	}
}

// Connect opens the channel for the current identity. A failed open is
// logged and leaves the widget in local-only mode; nothing here blocks
// the user from composing.
func (w *Widget) Connect() {
	w.SetIdentity(w.id)
}

// SetIdentity switches the local identity: the prior channel is closed
// before the new one opens, so one identity never holds two live
// channels (and listeners are never registered twice).
func (w *Widget) SetIdentity(id identity.Identity) {
	w.Lock()
	if w.conn != nil {
		prior := w.conn
		w.conn = nil
		w.Unlock()
		prior.Close()
		w.Lock()
	}
	w.id = id
	threadID := w.threadID
	w.Unlock()

	conn, err := w.dial(w.conf.WsURL, id.UserID, id.Token)
	if err != nil {
		glog.Errorf("widget: channel open failed, running local-only: %v", err)
		return
	}

	conn.OnMessage(w.store.IngestRemote)
	conn.OnTyping(w.onTyping)
	conn.Start()

	w.Lock()
	w.conn = conn
	w.Unlock()

	if threadID != "" {
		conn.AnnounceOpen(threadID)
	}
}

// transport snapshots the channel handle; nil means local-only.
func (w *Widget) transport() Transport {
	w.Lock()
	defer w.Unlock()
	return w.conn
}

func (w *Widget) onTyping(userID string, isTyping bool) {
	w.Lock()
	self := w.id.UserID
	w.Unlock()
	if userID == self {
		return
	}
	w.presence.OnTypingEvent(userID, isTyping)
}

// Open resolves the counterpart into a thread, seeds history and
// announces interest in the thread's live events. The returned error is
// recoverable: retry on the next user interaction.
func (w *Widget) Open(ctx context.Context, counterpartID string) error {
	w.Lock()
	localID := w.id.UserID
	w.Unlock()

	threadID, err := w.sessions.ResolveThread(ctx, localID, counterpartID)
	if err != nil {
		return err
	}

	w.Lock()
	w.counterpart = counterpartID
	w.threadID = threadID
	w.Unlock()

	if conn := w.transport(); conn != nil {
		conn.AnnounceOpen(threadID)
	}
	return nil
}

// Send inserts the message optimistically and relays it. The returned
// record renders immediately with status sending.
func (w *Widget) Send(text string, attachments []string, leadCards []store.LeadCard) store.Message {
	w.Lock()
	threadID, from, to := w.threadID, w.id.UserID, w.counterpart
	w.Unlock()

	m := w.store.AppendLocal(threadID, from, to, text, attachments, leadCards)
	w.emit(m)
	w.watch(m.ThreadID, m.ID, 1, w.checkDelay)
	return m
}

// Resend re-enters a failed record into the sending state with a fresh
// retry budget.
func (w *Widget) Resend(id string) bool {
	w.Lock()
	threadID := w.threadID
	w.Unlock()

	if !w.store.MarkSending(threadID, id) {
		return false
	}
	m, _ := w.store.Get(threadID, id)
	w.emit(m)
	w.watch(m.ThreadID, m.ID, 1, w.checkDelay)
	return true
}

func (w *Widget) emit(m store.Message) {
	conn := w.transport()
	if conn == nil {
		glog.V(5).Infof("widget: no channel, emission skipped for %s", m.ID)
		return
	}
	conn.SendMessage(&ws.SendMessage{
		ChatID:      m.ThreadID,
		To:          m.To,
		Text:        m.Text,
		Attachments: m.Attachments,
		LeadCard:    m.LeadCards,
		ClientRef:   m.ClientRef,
	})
}

// watch re-checks a provisional record after delay: still sending means
// the echo never came, so re-emit with backoff until the attempt budget
// is spent, then mark the record terminally failed for a manual resend.
func (w *Widget) watch(threadID, id string, attempt int, delay time.Duration) {
	time.AfterFunc(delay, func() {
		m, ok := w.store.Get(threadID, id)
		if !ok || m.Status != store.StatusSending {
			return
		}

		if attempt >= w.maxAttempts {
			if w.store.MarkFailed(threadID, id) {
				glog.Errorf("widget: message %s unconfirmed after %d attempts, marked failed", id, attempt)
				sendFailedTotal.Inc()
			}
			return
		}

		glog.Warningf("widget: message %s unconfirmed, resending (attempt %d)", id, attempt+1)
		sendRetryTotal.Inc()
		w.emit(m)
		w.watch(threadID, id, attempt+1, w.nextBackoff(delay))
	})
}

func (w *Widget) nextBackoff(d time.Duration) time.Duration {
	if d < w.backoffMin {
		d = w.backoffMin
	}
	d = time.Duration(float64(d) * backoffMultiplier)
	if d > w.backoffMax {
		d = w.backoffMax
	}
	return d
}

// Typing relays the local keystroke signal for the open thread.
func (w *Widget) Typing(isTyping bool) {
	w.Lock()
	conn, threadID := w.conn, w.threadID
	w.Unlock()

	if conn == nil || threadID == "" {
		return
	}
	conn.SendTyping(threadID, isTyping)
}

// TypingParty returns the counterpart currently typing, "" for nobody.
func (w *Widget) TypingParty() string {
	return w.presence.CurrentTypingParty()
}

// Render snapshots the open thread with contact details masked unless
// the entitlement flag permits them.
func (w *Widget) Render() []store.Message {
	w.Lock()
	threadID, entitled := w.threadID, w.conf.Entitled
	w.Unlock()

	msgs := w.store.Messages(threadID)
	for i := range msgs {
		msgs[i].Text = redact.MaskSensitiveData(msgs[i].Text, entitled)
	}
	return msgs
}

// Close tears the widget down: channel first, so no further inbound
// events arrive, then the presence timer.
func (w *Widget) Close() {
	w.Lock()
	conn := w.conn
	w.conn = nil
	w.Unlock()

	if conn != nil {
		conn.Close()
	}
	w.presence.Stop()
}

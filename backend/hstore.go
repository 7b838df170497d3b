package backend

import "sync"

// handlerStore tracks the live widget sessions.
type handlerStore struct {
	sync.RWMutex
	handlers map[string]*handler
}

func newHandlerStore() *handlerStore {
	return &handlerStore{handlers: make(map[string]*handler)}
}

func (hs *handlerStore) add(h *handler) {
	hs.Lock()
	hs.handlers[h.sid] = h
	hs.Unlock()
}

func (hs *handlerStore) del(sid string) {
	hs.Lock()
	delete(hs.handlers, sid)
	hs.Unlock()
}

func (hs *handlerStore) getByUID(uid string) []*handler {
	hs.RLock()
	defer hs.RUnlock()

	var out []*handler
	for _, h := range hs.handlers {
		if h.uid == uid {
			out = append(out, h)
		}
	}
	return out
}

func (hs *handlerStore) close() {
	hs.RLock()
	defer hs.RUnlock()
	for _, h := range hs.handlers {
		h.close(false)
	}
}

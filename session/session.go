// Package session resolves a counterpart selection into a durable thread
// id and seeds the message store from REST history before live events
// arrive.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/estately/chatkit/store"
)

const requestTimeout = 10 * time.Second

// Seeder receives the fetched history batch. *store.Store implements it.
type Seeder interface {
	Seed(threadID string, history []store.Message) error
}

// Manager caches one resolved thread per counterpart for the lifetime of
// the open widget.
type Manager struct {
	sync.Mutex

	baseURL string
	client  *http.Client
	seeder  Seeder

	// counterpart id -> thread id
	threads map[string]string
}

func NewManager(baseURL string, seeder Seeder) *Manager {
	return &Manager{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		seeder:  seeder,
		threads: make(map[string]string),
	}
}

type provisionReq struct {
	Participants []string `json:"participants"`
}

type provisionResp struct {
	ChatID string `json:"chatId"`
}

type historyResp struct {
	Messages []store.Message `json:"messages"`
}

// ResolveThread provisions (or looks up) the thread for the participant
// pair and seeds the store from history. The result is cached; a failed
// resolution is not, so the next user interaction retries from scratch.
func (m *Manager) ResolveThread(ctx context.Context, localID, counterpartID string) (string, error) {
	m.Lock()
	if id, ok := m.threads[counterpartID]; ok {
		m.Unlock()
		return id, nil
	}
	m.Unlock()

	threadID, err := m.provision(ctx, localID, counterpartID)
	if err != nil {
		return "", fmt.Errorf("session: provision thread: %w", err)
	}

	history, err := m.fetchHistory(ctx, threadID)
	if err != nil {
		// Not cached either: the retry re-runs provisioning (idempotent
		// on the participant pair) and gets another shot at history.
		return "", fmt.Errorf("session: fetch history: %w", err)
	}

	if err := m.seeder.Seed(threadID, history); err != nil {
		// Live events beat the fetch; the stream is authoritative now.
		glog.Warningf("session: seed skipped for %s: %v", threadID, err)
	}

	m.Lock()
	m.threads[counterpartID] = threadID
	m.Unlock()

	glog.Infof("session: resolved thread %s for counterpart %s", threadID, counterpartID)
	return threadID, nil
}

func (m *Manager) provision(ctx context.Context, localID, counterpartID string) (string, error) {
	body, err := json.Marshal(provisionReq{Participants: []string{localID, counterpartID}})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chats", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out provisionResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.ChatID == "" {
		return "", errors.New("empty chatId in response")
	}
	return out.ChatID, nil
}

func (m *Manager) fetchHistory(ctx context.Context, threadID string) ([]store.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/chats/"+threadID+"/messages", nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out historyResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

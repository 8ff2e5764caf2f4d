package http

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/aretw0/kiosk/pkg/domain"
)

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // conversation id -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates a StreamManager with no subscribers.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Subscribe registers a buffered channel for the diffs of a conversation. The
// returned cancel closes the channel and may be called more than once.
func (sm *StreamManager) Subscribe(conversationID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[conversationID]; !ok {
		sm.subscribers[conversationID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[conversationID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[conversationID]; ok {
			if _, live := subs[ch]; !live {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, conversationID)
			}
		}
	}
}

// Subscribers returns the number of open streams of a conversation.
func (sm *StreamManager) Subscribers(conversationID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[conversationID])
}

// Broadcast sends msg to every subscriber of a conversation without blocking.
// Subscribers whose buffer is full miss the message.
func (sm *StreamManager) Broadcast(conversationID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[conversationID] {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("SSE: client buffer full, dropping message", "conversation_id", conversationID)
		}
	}
}

// FlowEvent announces a swapped flow document.
type FlowEvent struct {
	Fingerprint string   `json:"fingerprint"`
	Version     string   `json:"version,omitempty"`
	StoreName   string   `json:"storeName,omitempty"`
	Languages   []string `json:"languages"`
}

// SubscribeEvents handles GET /events (SSE).
//
// Without parameters the stream carries a "flow" event for every swapped
// document. With ?conversation=<id> it carries the state diffs produced by
// transitions of that conversation, optionally filtered by ?watch=node,inputs,history,pending.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	conversationID := r.URL.Query().Get("conversation")
	if conversationID == "" {
		s.streamFlows(w, r, flusher)
		return
	}

	s.logger.Info("SSE: subscribing to conversation", "conversation_id", conversationID)
	ch, cancel := s.Streams.Subscribe(conversationID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	var watchList []string
	if watch := r.URL.Query().Get("watch"); watch != "" {
		watchList = strings.Split(watch, ",")
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE: client disconnected", "conversation_id", conversationID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watchList) > 0 && !watched(msg, watchList) {
				continue
			}
			fmt.Fprintf(w, "event: diff\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) streamFlows(w http.ResponseWriter, r *http.Request, flusher http.Flusher) {
	events := make(chan FlowEvent, 4)
	unsubscribe := s.flows.Subscribe(func(doc *domain.FlowDocument) {
		select {
		case events <- FlowEvent{
			Fingerprint: doc.Fingerprint(),
			Version:     doc.Version,
			StoreName:   doc.StoreName,
			Languages:   doc.LanguageCodes(),
		}:
		default:
			s.logger.Warn("SSE: client buffer full, dropping flow event")
		}
	})
	defer unsubscribe()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("flow event encode failed", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: flow\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// watched reports whether a serialized diff touches one of the fields.
func watched(msg string, fields []string) bool {
	var diff domain.StateDiff
	if err := json.Unmarshal([]byte(msg), &diff); err != nil {
		return true
	}
	for _, field := range fields {
		switch strings.TrimSpace(field) {
		case "node":
			if diff.CurrentNodeID != nil {
				return true
			}
		case "inputs":
			if len(diff.Inputs) > 0 {
				return true
			}
		case "history":
			if len(diff.Appended) > 0 || len(diff.Spoken) > 0 {
				return true
			}
		case "pending":
			if diff.Pending != nil || diff.PendingCleared {
				return true
			}
		}
	}
	return false
}

// Package sse provides the Server-Sent Events change feed.
package sse

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/debemdeboas/quill/internal/metrics"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/rs/zerolog"
)

var sseLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	sseLogger = l
}

const MsgReload = "reload"

// Client receives messages about DocumentID, or about every document when
// DocumentID is empty.
type Client struct {
	Msg        chan string
	DocumentID model.DocumentID
}

func (c *Client) wants(id model.DocumentID) bool {
	return c.DocumentID == "" || c.DocumentID == id
}

type SSEClients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewSSEClients() *SSEClients {
	return &SSEClients{
		clients: make(map[*Client]bool),
	}
}

func (s *SSEClients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
	metrics.EventClients.Inc()
}

func (s *SSEClients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.clients[client] {
		return
	}
	delete(s.clients, client)
	close(client.Msg)
	metrics.EventClients.Dec()
}

func (s *SSEClients) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends msg to interested clients without blocking; a client that
// is not ready misses the message.
func (s *SSEClients) Broadcast(id model.DocumentID, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.wants(id) {
			select {
			case client.Msg <- msg:
			default:
			}
		}
	}
}

// ServeHTTP streams messages to the caller. The optional "document" query
// parameter narrows the feed to one document.
func (s *SSEClients) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Del("X-Content-Type-Options")

	client := &Client{
		Msg:        make(chan string, 1),
		DocumentID: model.DocumentID(r.URL.Query().Get("document")),
	}
	s.Add(client)
	defer s.Delete(client)

	fmt.Fprintf(w, "event: connected\ndata: SSE connection established\n\n")
	flusher.Flush()

	sseLogger.Debug().Str("document_id", string(client.DocumentID)).Msg("SSE client connected")
	defer sseLogger.Debug().Msg("SSE client disconnected")

	done := r.Context().Done()
	for {
		select {
		case msg := <-client.Msg:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-done:
			return
		}
	}
}

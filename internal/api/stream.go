package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"campaign-compliance/internal/pipeline"
)

// StageMessage describes websocket payloads emitted during draft runs.
type StageMessage struct {
	Type      string         `json:"type"`
	RunID     string         `json:"run_id"`
	Stage     pipeline.Stage `json:"stage,omitempty"`
	Attempt   int            `json:"attempt,omitempty"`
	Round     int            `json:"round,omitempty"`
	Score     int            `json:"score,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func stageMessage(event pipeline.StageEvent) StageMessage {
	return StageMessage{
		Type:    "stage",
		RunID:   event.RunID,
		Stage:   event.Stage,
		Attempt: event.Attempt,
		Round:   event.Round,
		Message: event.Message,
	}
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// StageNotifier keeps track of websocket clients and broadcasts run progress.
type StageNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *StageMessage
}

// NewStageNotifier constructs a notifier instance.
func NewStageNotifier() *StageNotifier {
	return &StageNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and replays the last status.
func (n *StageNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client and closes the socket.
func (n *StageNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the event to every client. Clients that fail a write are
// dropped.
func (n *StageNotifier) Broadcast(event StageMessage) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	snapshot := event
	n.lastStatus = &snapshot

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// Observer adapts the notifier to the pipeline's stage callback.
func (n *StageNotifier) Observer() pipeline.Observer {
	return func(event pipeline.StageEvent) {
		n.Broadcast(stageMessage(event))
	}
}

// LastStatus returns a copy of the most recent message, if any.
func (n *StageNotifier) LastStatus() *StageMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	copy := *n.lastStatus
	return &copy
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}

package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client represents a websocket client connection. Devices and dashboards
// share the same endpoint; a client that pushes sensor data is simply one
// that sends messages.
type Client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
}

// EventType defines types of realtime events
type EventType string

const (
	// EventTypeSensorUpdate for new accepted sensor readings
	EventTypeSensorUpdate EventType = "sensor_update"
	// EventTypeAlert for threshold alerts
	EventTypeAlert EventType = "alert"
	// EventTypeTraining for retrain lifecycle events
	EventTypeTraining EventType = "training"
	// EventTypePumpCommand for manual pump control commands
	EventTypePumpCommand EventType = "pump_command"
)

// EventMessage represents a message sent to clients
type EventMessage struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

type outbound struct {
	message *EventMessage
	origin  *Client
}

// BroadcastService manages websocket connections and fans accepted events
// out to every connected client, excluding the originator so a device never
// hears its own reading echoed back.
type BroadcastService struct {
	logger     *utils.Logger
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	mutex      sync.RWMutex

	// onMessage is invoked for every inbound client frame, set once before
	// any client connects
	onMessage func(client *Client, data []byte)
}

// NewBroadcastService creates a new broadcast service
func NewBroadcastService(logger *utils.Logger) *BroadcastService {
	service := &BroadcastService{
		logger:     logger.Named("broadcast_service"),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 64),
	}

	go service.run()
	return service
}

// SetMessageHandler installs the inbound frame handler. Devices push sensor
// readings as frames on the shared endpoint.
func (s *BroadcastService) SetMessageHandler(fn func(client *Client, data []byte)) {
	s.onMessage = fn
}

// RegisterClient adds a new websocket client
func (s *BroadcastService) RegisterClient(conn *websocket.Conn, remote string) *Client {
	client := &Client{
		conn:   conn,
		remote: remote,
		send:   make(chan []byte, 256),
	}

	s.register <- client

	go s.readPump(client)
	go s.writePump(client)

	return client
}

// ClientCount returns the number of connected clients
func (s *BroadcastService) ClientCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.clients)
}

// Broadcast sends an event to all connected clients
func (s *BroadcastService) Broadcast(eventType EventType, payload interface{}) {
	s.BroadcastExcept(nil, eventType, payload)
}

// BroadcastExcept sends an event to all connected clients except origin
func (s *BroadcastService) BroadcastExcept(origin *Client, eventType EventType, payload interface{}) {
	message := &EventMessage{
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	s.broadcast <- outbound{message: message, origin: origin}
}

// run processes registration and fan-out in the main loop
func (s *BroadcastService) run() {
	for {
		select {
		case client := <-s.register:
			s.mutex.Lock()
			s.clients[client] = true
			s.mutex.Unlock()
			s.logger.Debug("Client registered", zap.String("remote", client.remote))

		case client := <-s.unregister:
			s.mutex.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			s.mutex.Unlock()
			s.logger.Debug("Client unregistered", zap.String("remote", client.remote))

		case out := <-s.broadcast:
			jsonMessage, err := json.Marshal(out.message)
			if err != nil {
				s.logger.Error("Failed to marshal event message",
					zap.Error(err),
					zap.String("type", string(out.message.Type)))
				continue
			}

			// Removal needs the write lock, so full-buffer clients are only
			// collected here and dropped after the read lock is released
			var doomed []*Client
			s.mutex.RLock()
			for client := range s.clients {
				if client == out.origin {
					continue
				}
				select {
				case client.send <- jsonMessage:
				default:
					doomed = append(doomed, client)
				}
			}
			s.mutex.RUnlock()

			for _, client := range doomed {
				s.dropClient(client)
			}
		}
	}
}

// dropClient disconnects a client whose buffer is full so one slow dashboard
// cannot stall the hub
func (s *BroadcastService) dropClient(client *Client) {
	s.mutex.Lock()
	if _, ok := s.clients[client]; ok {
		delete(s.clients, client)
		close(client.send)
	}
	s.mutex.Unlock()
	s.logger.Warn("Client buffer full, connection closed",
		zap.String("remote", client.remote))
}

// readPump reads messages from the client
func (s *BroadcastService) readPump(client *Client) {
	defer func() {
		s.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(4096) // 4KB max message size
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				s.logger.Warn("Unexpected websocket close",
					zap.Error(err),
					zap.String("remote", client.remote))
			}
			break
		}

		if s.onMessage != nil {
			s.onMessage(client, message)
		}
	}
}

// writePump writes messages to the client
func (s *BroadcastService) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := client.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current websocket message
			n := len(client.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-client.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

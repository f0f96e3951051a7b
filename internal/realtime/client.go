package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fleetcab/cab-dispatch/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is a WebSocket-backed observer.
type Client struct {
	id       string
	audience string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	logger   *logger.Logger
}

// inboundMessage is a message from the connected peer. Location reports may
// come from any connected caller; only the payload shape is validated here.
type inboundMessage struct {
	Type      string   `json:"type"`
	VehicleID string   `json:"vehicle_id,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
}

// NewClient creates a client observing the given audience.
func NewClient(hub *Hub, conn *websocket.Conn, audience string, log *logger.Logger) *Client {
	return &Client{
		id:       uuid.NewString(),
		audience: audience,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		logger:   log,
	}
}

// ID implements Observer.
func (c *Client) ID() string { return c.id }

// Audience implements Observer.
func (c *Client) Audience() string { return c.audience }

// Deliver implements Observer. Never blocks; a full buffer drops the event.
func (c *Client) Deliver(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close implements Observer.
func (c *Client) Close() {
	close(c.send)
}

// ReadPump pumps messages from the WebSocket connection into the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket read error",
					logger.Err(err),
					logger.String("client_id", c.id),
				)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps hub events out to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Flush anything already queued into the same frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("Failed to unmarshal client message",
			logger.Err(err),
			logger.String("client_id", c.id),
		)
		return
	}

	switch msg.Type {
	case "update_location":
		// Reject payloads missing the vehicle ID or either coordinate.
		if msg.VehicleID == "" || msg.Lat == nil || msg.Lon == nil {
			c.logger.Warn("Ignoring malformed location update",
				logger.String("client_id", c.id))
			return
		}
		vehicleID, err := uuid.Parse(msg.VehicleID)
		if err != nil {
			c.logger.Warn("Ignoring location update with bad vehicle id",
				logger.String("client_id", c.id))
			return
		}
		c.hub.ingestLocation(context.Background(), vehicleID, *msg.Lat, *msg.Lon)
	case "ping":
		data, _ := json.Marshal(map[string]string{"type": "pong"})
		c.Deliver(data)
	default:
		c.logger.Warn("Unknown message type",
			logger.String("type", msg.Type),
			logger.String("client_id", c.id),
		)
	}
}

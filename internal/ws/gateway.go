package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"hively/internal/domain"
	"hively/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NotificationMarker is the ownership-checked mark-read path shared with the
// REST endpoint.
type NotificationMarker interface {
	MarkAsRead(ctx context.Context, userID, notificationID string) (*models.Notification, error)
}

// Gateway upgrades connections and speaks the JSON envelope protocol:
// server sends connected/notification_created/notification_read, clients
// send ping and markRead.
type Gateway struct {
	hub    *Hub
	marker NotificationMarker
	logger *zap.SugaredLogger
}

func NewGateway(hub *Hub, marker NotificationMarker, logger *zap.SugaredLogger) *Gateway {
	return &Gateway{hub: hub, marker: marker, logger: logger}
}

// Handle serves the upgrade endpoint. user_id is required before the
// upgrade happens.
func (g *Gateway) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := &Client{
			UserID: userID,
			Send:   make(chan []byte, 256),
		}
		g.hub.Register(client)
		defer client.Close()

		data, _ := json.Marshal(Envelope{Type: domain.MsgConnected})
		client.send(data)

		go writePump(client, conn)
		g.readPump(client, conn)
	}
}

type clientMessage struct {
	Type    string `json:"type"`
	Payload struct {
		NotificationID string `json:"notification_id"`
	} `json:"payload"`
}

func (g *Gateway) readPump(client *Client, conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			g.reply(client, Envelope{Type: domain.MsgError, Payload: gin.H{"error": "malformed message"}})
			continue
		}
		switch msg.Type {
		case domain.MsgPing:
			g.reply(client, Envelope{
				Type:    domain.MsgPong,
				Payload: gin.H{"time": time.Now().UTC().Format(time.RFC3339)},
			})
		case domain.MsgMarkRead:
			if msg.Payload.NotificationID == "" {
				g.reply(client, Envelope{Type: domain.MsgError, Payload: gin.H{"error": "notification_id is required"}})
				continue
			}
			// Success is announced by the service broadcast; only errors go
			// back to this connection alone.
			if _, err := g.marker.MarkAsRead(context.Background(), client.UserID, msg.Payload.NotificationID); err != nil {
				g.reply(client, Envelope{Type: domain.MsgError, Payload: gin.H{"error": "notification not found"}})
			}
		default:
			g.reply(client, Envelope{Type: domain.MsgError, Payload: gin.H{"error": "unknown message type"}})
		}
	}
}

func (g *Gateway) reply(client *Client, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	client.send(data)
}

// writePump copies messages from client.Send to the connection and keeps the
// connection alive with protocol pings.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

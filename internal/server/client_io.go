package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// writePump drains the client's send channel onto the WebSocket and
// pings every 30 seconds to detect dead connections.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("server: failed to marshal %s message: %v", msg.Type, err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("server: write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads UI messages and dispatches them until the connection
// drops, then unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()

		c.closeSend()
		log.Printf("server: UI client disconnected (%d remaining)", c.server.ClientCount())
	}()

	c.conn.SetReadLimit(512 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				log.Printf("server: read error: %v", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("server: failed to parse UI message: %v", err)
			continue
		}

		switch msg.Type {
		case MessageTypeAppStart:
			c.handleAppStart()
		case MessageTypeApproveService:
			c.handleServiceDecision(data, true)
		case MessageTypeRejectService:
			c.handleServiceDecision(data, false)
		case MessageTypeAddService:
			c.handleAddService(data)
		case MessageTypeRemoveService:
			c.handleRemoveService(data)
		case MessageTypePairedApps:
			c.server.pushPairedApps()
		case MessageTypeApproveOrigin:
			c.handleApproveOrigin(data)
		case MessageTypeDeviceInfo:
			c.handleDeviceInfo(data)
		case MessageTypeHardwareEvent:
			c.handleHardwareEvent(data)
		default:
			log.Printf("server: unhandled UI message type=%s", msg.Type)
		}
	}
}

package server

import (
	"encoding/json"
	"log"
	"time"

	"github.com/keybridge/keybridge/internal/device"
	"github.com/keybridge/keybridge/internal/storage"
)

// handleAppStart marks the UI ready, flushes queued notifications, and
// pushes the persisted service list and origin cache so the UI starts
// from current state.
func (c *Client) handleAppStart() {
	log.Printf("server: UI signaled app start")
	c.server.router.AppStarted()
	c.server.pushPairedApps()
	c.server.pushOrigins()
}

// handleServiceDecision routes an approve/reject signal to the pairing
// broker. Stale or duplicate decisions are no-ops inside the broker.
func (c *Client) handleServiceDecision(data []byte, approved bool) {
	var msg struct {
		Type    MessageType     `json:"type"`
		Payload DecisionPayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("server: failed to parse pairing decision: %v", err)
		return
	}
	if msg.Payload.Nonce == "" {
		log.Printf("server: pairing decision missing nonce")
		return
	}

	if err := c.server.broker.Resolve(msg.Payload.Nonce, approved); err != nil {
		log.Printf("server: pairing decision not applied: %v", err)
		return
	}
	if approved {
		c.server.pushPairedApps()
	}
}

// handleAddService persists a service added directly from the UI
// settings screen.
func (c *Client) handleAddService(data []byte) {
	var msg struct {
		Type    MessageType    `json:"type"`
		Payload ServicePayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("server: failed to parse add-service: %v", err)
		return
	}
	if msg.Payload.ServiceName == "" {
		log.Printf("server: add-service missing serviceName")
		return
	}

	service := &storage.Service{
		ServiceName:     msg.Payload.ServiceName,
		ServiceImageURL: msg.Payload.ServiceImageURL,
		ServiceKey:      msg.Payload.ServiceKey,
		AddedOn:         time.Now(),
	}
	if err := c.server.store.InsertService(service); err != nil {
		log.Printf("server: add-service failed: %v", err)
		return
	}
	c.server.pushPairedApps()
}

// handleRemoveService removes a paired service. An empty serviceKey
// removes every record for the name.
func (c *Client) handleRemoveService(data []byte) {
	var msg struct {
		Type    MessageType    `json:"type"`
		Payload ServicePayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("server: failed to parse remove-service: %v", err)
		return
	}
	if msg.Payload.ServiceName == "" {
		log.Printf("server: remove-service missing serviceName")
		return
	}

	removed, err := c.server.store.RemoveService(msg.Payload.ServiceName, msg.Payload.ServiceKey)
	if err != nil {
		log.Printf("server: remove-service failed: %v", err)
		return
	}
	log.Printf("server: removed %d record(s) for service %q", removed, msg.Payload.ServiceName)
	c.server.pushPairedApps()
}

// handleApproveOrigin records a browser origin in the UI-approval cache.
func (c *Client) handleApproveOrigin(data []byte) {
	var msg struct {
		Type    MessageType   `json:"type"`
		Payload OriginPayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("server: failed to parse approve-origin: %v", err)
		return
	}
	if msg.Payload.Origin == "" {
		log.Printf("server: approve-origin missing origin")
		return
	}

	if err := c.server.store.ApproveOrigin(&storage.Origin{Origin: msg.Payload.Origin, IsVerified: true}); err != nil {
		log.Printf("server: approve-origin failed: %v", err)
		return
	}
	c.server.pushOrigins()
}

// handleHardwareEvent parses a relayed controller event and hands it to
// the hardware sink. Malformed events are logged and dropped; they never
// reach the state machine.
func (c *Client) handleHardwareEvent(data []byte) {
	var msg struct {
		Type    MessageType     `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("server: failed to parse hardware event frame: %v", err)
		return
	}

	ev, err := device.ParseEvent(msg.Payload)
	if err != nil {
		log.Printf("server: dropping hardware event: %v", err)
		return
	}

	if sink := c.server.hardwareSink; sink != nil {
		sink(ev)
	}
}

// handleDeviceInfo caches the feature blob the UI read from the device.
func (c *Client) handleDeviceInfo(data []byte) {
	var msg struct {
		Type    MessageType       `json:"type"`
		Payload DeviceInfoPayload `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("server: failed to parse device info: %v", err)
		return
	}
	if c.server.machine != nil {
		c.server.machine.SetFeatures(msg.Payload.Features)
	}
}

// pushPairedApps broadcasts the current paired-service list to the UI.
func (s *Server) pushPairedApps() {
	services, err := s.store.ListServices()
	if err != nil {
		log.Printf("server: failed to list services: %v", err)
		return
	}
	s.router.Send(Message{Type: MessageTypePairedApps, Payload: services})
}

// pushOrigins broadcasts the approved-origin cache to the UI.
func (s *Server) pushOrigins() {
	origins, err := s.store.ListOrigins()
	if err != nil {
		log.Printf("server: failed to list origins: %v", err)
		return
	}
	s.router.Send(Message{Type: MessageTypeLoadOrigins, Payload: origins})
}

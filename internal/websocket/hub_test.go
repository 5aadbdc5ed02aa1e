package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerTestClient(hub *Hub, userID, role string) *Client {
	client := &Client{
		UserID:   userID,
		UserRole: role,
		hub:      hub,
		send:     make(chan []byte, 4),
	}
	hub.clients[userID] = client
	return client
}

func TestBroadcastVisitEventReachesDashboardsOnly(t *testing.T) {
	hub := NewHub()
	manager := registerTestClient(hub, "manager-1", "manager")
	admin := registerTestClient(hub, "admin-1", "admin")
	auditor := registerTestClient(hub, "auditor-1", "auditor")

	hub.BroadcastVisitEvent("visit_submitted", map[string]interface{}{"shop_id": "shop-1"})

	for _, dashboard := range []*Client{manager, admin} {
		require.Len(t, dashboard.send, 1, "%s should receive the event", dashboard.UserID)

		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(<-dashboard.send, &msg))
		assert.Equal(t, "visit_submitted", msg["type"])
		assert.NotEmpty(t, msg["timestamp"])
		data, ok := msg["data"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "shop-1", data["shop_id"])
	}

	assert.Empty(t, auditor.send, "field apps never receive dashboard events")
	assert.Equal(t, 3, hub.GetClientCount())
}

func TestBroadcastToRoleSkipsFullBuffers(t *testing.T) {
	hub := NewHub()
	stalled := &Client{
		UserID:   "manager-1",
		UserRole: "manager",
		hub:      hub,
		send:     make(chan []byte, 1),
	}
	stalled.send <- []byte("backlog")
	hub.clients[stalled.UserID] = stalled

	// Must not block or panic when the client cannot keep up.
	hub.BroadcastToRole("manager", map[string]string{"type": "audit_started"})

	assert.Len(t, stalled.send, 1)
	assert.Equal(t, "backlog", string(<-stalled.send))
}

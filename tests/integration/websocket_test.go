// Package integration contains integration tests for the trading core.
//
// WebSocket Integration Tests
// These tests verify WebSocket connection, messaging, and broadcast functionality:
// - Connection establishment and upgrade
// - Client registration/unregistration
// - Broadcast messaging to all clients
// - Typed engine event messages
//
// Run with: go test ./tests/integration/...
package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tradecore/internal/api"
	"tradecore/internal/models"
	"tradecore/internal/websocket"
	"tradecore/pkg/utils"

	gorillaws "github.com/gorilla/websocket"
)

func newWSTestServer(t *testing.T) (*websocket.Hub, *httptest.Server, string) {
	t.Helper()

	logger := utils.InitLogger(utils.LogConfig{Level: "error", Format: "text"})
	hub := websocket.NewHub(logger)
	go hub.Run()

	deps := &api.Dependencies{
		WSHandler: hub.Handler(),
		Logger:    logger,
	}
	router := api.SetupRoutes(deps)
	server := httptest.NewServer(router)

	// Convert http:// to ws://
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/stream"
	return hub, server, wsURL
}

// ============================================================
// WebSocket Connection Tests
// ============================================================

func TestWebSocket_Connection_Integration(t *testing.T) {
	hub, server, wsURL := newWSTestServer(t)
	defer server.Close()
	defer hub.Stop()

	t.Run("establishes WebSocket connection", func(t *testing.T) {
		conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("failed to connect to WebSocket: %v", err)
		}
		defer conn.Close()

		if resp.StatusCode != http.StatusSwitchingProtocols {
			t.Errorf("expected status 101, got %d", resp.StatusCode)
		}

		// Wait for registration
		time.Sleep(100 * time.Millisecond)

		if hub.ClientCount() < 1 {
			t.Errorf("expected at least 1 client, got %d", hub.ClientCount())
		}
	})

	t.Run("client count decreases on disconnect", func(t *testing.T) {
		initialCount := hub.ClientCount()

		conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("failed to connect: %v", err)
		}

		time.Sleep(100 * time.Millisecond)
		afterConnect := hub.ClientCount()

		conn.Close()
		time.Sleep(200 * time.Millisecond)

		afterDisconnect := hub.ClientCount()

		if afterConnect <= initialCount {
			t.Error("client count should increase after connect")
		}
		if afterDisconnect >= afterConnect {
			t.Error("client count should decrease after disconnect")
		}
	})
}

// ============================================================
// WebSocket Broadcast Tests
// ============================================================

func TestWebSocket_Broadcast_Integration(t *testing.T) {
	hub, server, wsURL := newWSTestServer(t)
	defer server.Close()
	defer hub.Stop()

	t.Run("broadcasts message to single client", func(t *testing.T) {
		conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("failed to connect: %v", err)
		}
		defer conn.Close()

		time.Sleep(100 * time.Millisecond)

		testMessage := map[string]string{"type": "test", "data": "hello"}
		hub.Broadcast(testMessage)

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read message: %v", err)
		}

		var received map[string]string
		if err := json.Unmarshal(message, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}

		if received["type"] != "test" {
			t.Errorf("expected type 'test', got '%s'", received["type"])
		}
		if received["data"] != "hello" {
			t.Errorf("expected data 'hello', got '%s'", received["data"])
		}
	})

	t.Run("broadcasts to multiple clients", func(t *testing.T) {
		const clientCount = 3
		conns := make([]*gorillaws.Conn, clientCount)
		var wg sync.WaitGroup

		for i := 0; i < clientCount; i++ {
			conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				t.Fatalf("failed to connect client %d: %v", i, err)
			}
			conns[i] = conn
		}
		defer func() {
			for _, conn := range conns {
				if conn != nil {
					conn.Close()
				}
			}
		}()

		time.Sleep(200 * time.Millisecond)

		testMessage := map[string]interface{}{
			"type": "multicast_test",
			"id":   12345,
		}
		hub.Broadcast(testMessage)

		received := int32(0)
		wg.Add(clientCount)

		for i, conn := range conns {
			go func(idx int, c *gorillaws.Conn) {
				defer wg.Done()
				c.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, msg, err := c.ReadMessage()
				if err != nil {
					t.Logf("client %d failed to read: %v", idx, err)
					return
				}

				var data map[string]interface{}
				if err := json.Unmarshal(msg, &data); err == nil {
					if data["type"] == "multicast_test" {
						atomic.AddInt32(&received, 1)
					}
				}
			}(i, conn)
		}

		wg.Wait()

		if received != clientCount {
			t.Errorf("expected %d clients to receive message, got %d", clientCount, received)
		}
	})
}

// ============================================================
// WebSocket Message Types Tests
// ============================================================

func TestWebSocket_MessageTypes_Integration(t *testing.T) {
	hub, server, wsURL := newWSTestServer(t)
	defer server.Close()
	defer hub.Stop()

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	readTyped := func(t *testing.T) map[string]interface{} {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("failed to read message: %v", err)
		}
		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		return msg
	}

	t.Run("broadcasts accountUpdate message", func(t *testing.T) {
		acc := &models.Account{
			UserID:  "ws-user-1",
			Balance: 1500.50,
			Equity:  1520.25,
		}
		hub.BroadcastAccountUpdate(acc)

		msg := readTyped(t)
		if msg["type"] != "accountUpdate" {
			t.Errorf("expected type 'accountUpdate', got '%v'", msg["type"])
		}
	})

	t.Run("broadcasts positionUpdate message", func(t *testing.T) {
		pos := &models.Position{
			ID:         "ws-pos-1",
			UserID:     "ws-user-1",
			Symbol:     "BTCUSDT",
			Side:       models.SideLong,
			EntryPrice: 50000,
			Quantity:   0.1,
			Leverage:   5,
		}
		hub.BroadcastPositionUpdate("ws-user-1", pos)

		msg := readTyped(t)
		if msg["type"] != "positionUpdate" {
			t.Errorf("expected type 'positionUpdate', got '%v'", msg["type"])
		}
		if msg["user_id"] != "ws-user-1" {
			t.Errorf("expected user_id 'ws-user-1', got '%v'", msg["user_id"])
		}
	})

	t.Run("broadcasts botUpdate message", func(t *testing.T) {
		b := &models.Bot{
			ID:     "ws-bot-1",
			UserID: "ws-user-1",
			Type:   models.BotTypeDCA,
			Pair:   "ETHUSDT",
			Status: models.BotStatusRunning,
		}
		hub.BroadcastBotUpdate("ws-user-1", b)

		msg := readTyped(t)
		if msg["type"] != "botUpdate" {
			t.Errorf("expected type 'botUpdate', got '%v'", msg["type"])
		}
	})

	t.Run("broadcasts notification message", func(t *testing.T) {
		notification := &models.Notification{
			ID:        1,
			Type:      models.NotificationTypeTP,
			Severity:  models.SeverityInfo,
			UserID:    "ws-user-1",
			Message:   "Take profit triggered BTCUSDT",
			Timestamp: time.Now(),
		}
		hub.BroadcastNotification(notification)

		msg := readTyped(t)
		if msg["type"] != "notification" {
			t.Errorf("expected type 'notification', got '%v'", msg["type"])
		}
	})
}

// ============================================================
// End-to-End Engine Events
// ============================================================

func TestWebSocket_EngineEvents_Integration(t *testing.T) {
	ts := SetupTestServer(t)
	if ts == nil {
		t.Skip("Skipping: test server not available")
	}
	defer ts.Cleanup()

	wsURL := "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/ws/stream"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	// Account mutation through the service layer is pushed to clients
	if _, err := ts.Services.Account.CreateAccount("ws-e2e-user"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := ts.Services.Account.Deposit("ws-e2e-user", 500); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("did not receive accountUpdate: %v", err)
		}

		var msg struct {
			Type string `json:"type"`
			Data struct {
				UserID  string  `json:"user_id"`
				Balance float64 `json:"balance"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "accountUpdate" && msg.Data.UserID == "ws-e2e-user" && msg.Data.Balance == 500 {
			return
		}
	}
}
